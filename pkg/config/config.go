// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Archive sinks
const (
	SinkNone = "none"
	SinkFile = "file"
	SinkS3   = "s3"
)

// Config is the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Auth    AuthConfig    `yaml:"auth"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP host
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int           `yaml:"max_body_bytes"`
	MaxDiagrams     int           `yaml:"max_diagrams"`
	GraphQLMaxDepth int           `yaml:"graphql_max_depth"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig serves HTTPS from a key pair on disk or a generated
// self-signed certificate
type TLSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	CertFile     string   `yaml:"cert_file"`
	KeyFile      string   `yaml:"key_file"`
	CAFile       string   `yaml:"ca_file"`
	AutoGenerate bool     `yaml:"auto_generate"`
	Hosts        []string `yaml:"hosts"`
}

// EngineConfig tunes the evaluation pipeline
type EngineConfig struct {
	RiskScoring       bool `yaml:"risk_scoring"`
	MaxPathsPerThreat int  `yaml:"max_paths_per_threat"`
}

// AuthConfig enables bearer token auth when JWTSecret is set
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Enabled reports whether requests must carry a token
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// ArchiveConfig selects where exported snapshots are written
type ArchiveConfig struct {
	Sink     string `yaml:"sink"`
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Compress bool   `yaml:"compress"`

	// Static credentials; the default AWS chain is used when empty
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    4 << 20,
			MaxDiagrams:     1000,
			GraphQLMaxDepth: 4,
			TLS: TLSConfig{
				Hosts: []string{"localhost", "127.0.0.1"},
			},
		},
		Engine: EngineConfig{
			MaxPathsPerThreat: 10000,
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Archive: ArchiveConfig{
			Sink:     SinkNone,
			Dir:      "archive",
			Compress: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from PORT, LOG_LEVEL, BOWTIE_JWT_SECRET and
// BOWTIE_RISK_SCORING
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Addr = ":" + port
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
	if secret := getenv("BOWTIE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if risk := getenv("BOWTIE_RISK_SCORING"); risk != "" {
		on, err := strconv.ParseBool(risk)
		if err != nil {
			return fmt.Errorf("invalid BOWTIE_RISK_SCORING %q: %w", risk, err)
		}
		c.Engine.RiskScoring = on
	}
	return nil
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	return validation.NewConfigValidator("Config").
		Required("Server.Addr", c.Server.Addr).
		MinDuration("Server.ReadTimeout", c.Server.ReadTimeout, time.Second).
		MinDuration("Server.ShutdownTimeout", c.Server.ShutdownTimeout, time.Second).
		Positive("Server.MaxBodyBytes", c.Server.MaxBodyBytes).
		Positive("Server.MaxDiagrams", c.Server.MaxDiagrams).
		RangeInt("Server.GraphQLMaxDepth", c.Server.GraphQLMaxDepth, 1, 16).
		NonNegative("Engine.MaxPathsPerThreat", c.Engine.MaxPathsPerThreat).
		OneOf("Log.Level", c.Log.Level, []string{"debug", "info", "warn", "error"}).
		When(c.Auth.Enabled(), func(v *validation.ConfigValidator) {
			v.MinInt("Auth.JWTSecret length", len(c.Auth.JWTSecret), 32).
				MinDuration("Auth.TokenTTL", c.Auth.TokenTTL, time.Minute)
		}).
		When(c.Server.TLS.Enabled, func(v *validation.ConfigValidator) {
			v.Custom("Server.TLS", func() error {
				t := c.Server.TLS
				if (t.CertFile == "") != (t.KeyFile == "") {
					return errors.New("cert_file and key_file must be set together")
				}
				if t.CertFile == "" && !t.AutoGenerate {
					return errors.New("needs cert_file and key_file or auto_generate")
				}
				return nil
			})
		}).
		OneOf("Archive.Sink", c.Archive.Sink, []string{SinkNone, SinkFile, SinkS3}).
		When(c.Archive.Sink == SinkFile, func(v *validation.ConfigValidator) {
			v.Required("Archive.Dir", c.Archive.Dir)
		}).
		When(c.Archive.Sink == SinkS3, func(v *validation.ConfigValidator) {
			v.Required("Archive.Bucket", c.Archive.Bucket).
				Custom("Archive.SecretAccessKey", func() error {
					if (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
						return errors.New("access key id and secret must be set together")
					}
					return nil
				}).
				Custom("Archive.Prefix", func() error {
					if strings.HasPrefix(c.Archive.Prefix, "/") {
						return errors.New("must not start with /")
					}
					return nil
				})
		}).
		Validate()
}
