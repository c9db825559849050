package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// HCL file layout. Every attribute is optional and only overrides the defaults
// it names.
//
//	log_level = "debug"
//
//	server {
//	  port = 9090
//	}
//
//	llm {
//	  model       = "gpt-4o-mini"
//	  temperature = 0.2
//	  timeout     = "30s"
//	}
//
//	cache {
//	  backend = "sqlite"
//	  ttl     = "12h"
//	}
type fileConfig struct {
	LogLevel  *string         `hcl:"log_level,optional"`
	Server    *serverBlock    `hcl:"server,block"`
	LLM       *llmBlock       `hcl:"llm,block"`
	Cache     *cacheBlock     `hcl:"cache,block"`
	Mongo     *mongoBlock     `hcl:"mongo,block"`
	SQLite    *sqliteBlock    `hcl:"sqlite,block"`
	Artifacts *artifactsBlock `hcl:"artifacts,block"`
	Metrics   *metricsBlock   `hcl:"metrics,block"`
}

type serverBlock struct {
	Host           *string  `hcl:"host,optional"`
	Port           *int     `hcl:"port,optional"`
	ReadTimeout    *string  `hcl:"read_timeout,optional"`
	WriteTimeout   *string  `hcl:"write_timeout,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
}

type llmBlock struct {
	APIKey      *string  `hcl:"api_key,optional"`
	BaseURL     *string  `hcl:"base_url,optional"`
	Model       *string  `hcl:"model,optional"`
	MaxTokens   *int     `hcl:"max_tokens,optional"`
	Temperature *float64 `hcl:"temperature,optional"`
	Timeout     *string  `hcl:"timeout,optional"`
	MaxRetries  *int     `hcl:"max_retries,optional"`
	RPS         *float64 `hcl:"rps,optional"`
}

type cacheBlock struct {
	Backend *string `hcl:"backend,optional"`
	Size    *int    `hcl:"size,optional"`
	TTL     *string `hcl:"ttl,optional"`
}

type mongoBlock struct {
	URI      *string `hcl:"uri,optional"`
	Database *string `hcl:"database,optional"`
}

type sqliteBlock struct {
	Path *string `hcl:"path,optional"`
}

type artifactsBlock struct {
	Dir *string `hcl:"dir,optional"`
}

type metricsBlock struct {
	Capacity       *int    `hcl:"capacity,optional"`
	StreamInterval *string `hcl:"stream_interval,optional"`
}

// applyHCL decodes src (named filename in diagnostics) over c.
func (c *Config) applyHCL(filename string, src []byte) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("parse config %s: %w", filename, diags)
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("decode config %s: %w", filename, diags)
	}

	var errs hcl.Diagnostics
	dur := func(name string, v *string, dst *time.Duration) {
		if v == nil {
			return
		}
		d, err := parseDuration(*v)
		if err != nil {
			errs = append(errs, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid duration",
				Detail:   fmt.Sprintf("%s: %v", name, err),
			})
			return
		}
		*dst = d
	}

	setString(&c.LogLevel, fc.LogLevel)
	if b := fc.Server; b != nil {
		setString(&c.Server.Host, b.Host)
		setInt(&c.Server.Port, b.Port)
		dur("server.read_timeout", b.ReadTimeout, &c.Server.ReadTimeout)
		dur("server.write_timeout", b.WriteTimeout, &c.Server.WriteTimeout)
		if len(b.AllowedOrigins) > 0 {
			c.Server.AllowedOrigins = b.AllowedOrigins
		}
	}
	if b := fc.LLM; b != nil {
		setString(&c.LLM.APIKey, b.APIKey)
		setString(&c.LLM.BaseURL, b.BaseURL)
		setString(&c.LLM.Model, b.Model)
		setInt(&c.LLM.MaxTokens, b.MaxTokens)
		if b.Temperature != nil {
			c.LLM.Temperature = float32(*b.Temperature)
		}
		dur("llm.timeout", b.Timeout, &c.LLM.Timeout)
		setInt(&c.LLM.MaxRetries, b.MaxRetries)
		if b.RPS != nil {
			c.LLM.RPS = *b.RPS
		}
	}
	if b := fc.Cache; b != nil {
		setString(&c.Cache.Backend, b.Backend)
		setInt(&c.Cache.Size, b.Size)
		dur("cache.ttl", b.TTL, &c.Cache.TTL)
	}
	if b := fc.Mongo; b != nil {
		setString(&c.Mongo.URI, b.URI)
		setString(&c.Mongo.Database, b.Database)
	}
	if b := fc.SQLite; b != nil {
		setString(&c.SQLite.Path, b.Path)
	}
	if b := fc.Artifacts; b != nil {
		setString(&c.Artifacts.Dir, b.Dir)
	}
	if b := fc.Metrics; b != nil {
		setInt(&c.Metrics.Capacity, b.Capacity)
		dur("metrics.stream_interval", b.StreamInterval, &c.Metrics.StreamInterval)
	}

	if errs.HasErrors() {
		return fmt.Errorf("config %s: %w", filename, errs)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
