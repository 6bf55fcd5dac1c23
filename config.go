package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/docopt/docopt-go"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/aluedeke/go-iosbuilder/pkg/ber"
)

// Environment variables read by the CLI
const (
	envP12      = "IOSBUILDER_P12"
	envProfile  = "IOSBUILDER_PROFILE"
	envPassword = "IOSBUILDER_PASSWORD"
	envLogLevel = "IOSBUILDER_LOG_LEVEL"
	envMaxDepth = "IOSBUILDER_MAX_DEPTH"
)

// Config holds the CLI settings. Flags override the environment, which
// overrides the config file, which overrides the defaults.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"required"`
	MaxDepth int    `yaml:"max_depth" validate:"min=1"`
	Format   string `yaml:"format" validate:"oneof=text yaml cbor"`
	P12      string `yaml:"p12"`
	Profile  string `yaml:"profile"`
	Password string `yaml:"password"`
}

var configValidator = validator.New()

func defaultConfig() Config {
	return Config{
		LogLevel: "warning",
		MaxDepth: ber.DefaultMaxDepth,
		Format:   formatText,
	}
}

// loadConfig layers the optional YAML file at path and the environment over
// the defaults
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if v := getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv(envMaxDepth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s value (%s) could not be parsed: %w", envMaxDepth, v, err)
		}
		cfg.MaxDepth = n
	}
	if v := getenv(envP12); v != "" {
		cfg.P12 = v
	}
	if v := getenv(envProfile); v != "" {
		cfg.Profile = v
	}
	if v := getenv(envPassword); v != "" {
		cfg.Password = v
	}
	return cfg, nil
}

// applyFlags overrides cfg with the options given on the command line
func (c *Config) applyFlags(opts docopt.Opts) {
	if v, _ := opts.String("--format"); v != "" {
		c.Format = v
	}
	if v, _ := opts.String("--p12"); v != "" {
		c.P12 = v
	}
	if v, _ := opts.String("--profile"); v != "" {
		c.Profile = v
	}
	if v, _ := opts.String("--password"); v != "" {
		c.Password = v
	}
}

func (c Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level (%s) could not be parsed: %w", c.LogLevel, err)
	}
	return nil
}

func (c Config) decoder() ber.Decoder {
	return ber.Decoder{MaxDepth: c.MaxDepth}
}
