package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"testgen/internal/domain/entity"
	"testgen/internal/infrastructure/extractor"
	"testgen/internal/infrastructure/metrics"
	"testgen/internal/infrastructure/validator"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check a Python test module against the Allure contract",
		Long: "Prints the validation report as JSON. Exits with status 2 when the\n" +
			"module has error-severity issues.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			report := validator.NewAllureValidator().Validate(cmd.Context(), string(src))
			if err := writeIndentedJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.IsValid {
				return errInvalidCode
			}
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file|->",
		Short: "Pull Python code out of a raw model response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			code := extractor.Extract(string(src))
			if code == "" {
				return fmt.Errorf("no code found in %s", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}
}

type generateOptions struct {
	promptFile  string
	requestType string
	noCache     bool
	noValidate  bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Send one prompt through the generation client and print the code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.promptFile, "prompt-file", "", "file holding the prompt, or - for stdin")
	cmd.Flags().StringVar(&opts.requestType, "type", string(entity.RequestTypeGeneric), "request type recorded in metrics")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the generation cache")
	cmd.Flags().BoolVar(&opts.noValidate, "no-validate", false, "skip the allure import self-heal")
	_ = cmd.MarkFlagRequired("prompt-file")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.SlogLevel())

	prompt, err := readInput(cmd, opts.promptFile)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder(metrics.DefaultCapacity, logger)
	ctx, cancel := context.WithCancel(cmd.Context())
	client, err := newLLMClient(ctx, cfg, recorder, logger)
	if err != nil {
		cancel()
		return err
	}
	defer func() {
		cancel()
		if err := client.Close(cmd.Context()); err != nil {
			logger.Error("cache store close error", "err", err)
		}
	}()

	req := entity.NewGenerationRequest(string(prompt), "", entity.RequestType(opts.requestType))
	req.UseCache = !opts.noCache
	req.Validate = !opts.noValidate

	outcome, err := client.Generate(ctx, req)
	if err != nil {
		return err
	}
	for _, issue := range outcome.ValidationIssues {
		logger.Warn("generation note", "issue", issue)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(outcome.Text, "\n")); err != nil {
		return err
	}
	if !outcome.Success {
		return fmt.Errorf("generation failed, printed the fallback module")
	}
	return nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
