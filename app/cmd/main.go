package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"testgen/app/config"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2
)

// errInvalidCode marks a validate run that found error-severity issues.
var errInvalidCode = errors.New("code is not a valid test module")

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
		os.Exit(exitOK)
	case errors.Is(err, errInvalidCode):
		os.Exit(exitInvalid)
	default:
		os.Exit(exitFailure)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "testgen",
		Short:        "Generate and check pytest/Allure test code with an LLM",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to an HCL config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newValidateCmd(),
		newExtractCmd(),
	)
	return root
}

// loadConfig applies --log-level on top of the layered configuration.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.logLevel != "" {
		if err := os.Setenv("LOG_LEVEL", o.logLevel); err != nil {
			return nil, fmt.Errorf("set log level: %w", err)
		}
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// readInput reads the named file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
