// Package config loads server settings from a YAML or JSON file, .env files
// and KIOKU_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultPath = "config/default.yaml"
	EnvPrefix   = "KIOKU_"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported config format")
	ErrLoadFailed        = errors.New("config: failed to load config")
	ErrParseFailed       = errors.New("config: failed to parse config")
	ErrInvalid           = errors.New("config: invalid config")
)

type Config struct {
	Server   Server   `koanf:"server" envPrefix:"SERVER_"`
	Protocol Protocol `koanf:"protocol" envPrefix:"PROTOCOL_"`
	Cache    Cache    `koanf:"cache" envPrefix:"CACHE_"`
	Log      Log      `koanf:"log" envPrefix:"LOG_"`
}

type Server struct {
	Host          string `koanf:"host" env:"HOST"`
	DefaultPort   int    `koanf:"default_port" env:"PORT"`
	MaxFrameBytes int    `koanf:"max_frame_bytes" env:"MAX_FRAME_BYTES"`
}

type Protocol struct {
	Separator string `koanf:"separator" env:"SEPARATOR"`
}

type Cache struct {
	Capacity int `koanf:"capacity" env:"CAPACITY"`
}

type Log struct {
	Level      string `koanf:"level" env:"LEVEL"`
	Format     string `koanf:"format" env:"FORMAT"`
	File       string `koanf:"file" env:"FILE"`
	MaxSizeMB  int    `koanf:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `koanf:"max_backups" env:"MAX_BACKUPS"`
}

func Default() Config {
	return Config{
		Server: Server{
			Host:          "127.0.0.1",
			DefaultPort:   1024,
			MaxFrameBytes: 1 << 20,
		},
		Protocol: Protocol{Separator: "--"},
		Cache:    Cache{Capacity: 1024},
		Log: Log{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// ListenAddr joins host and port for net.Listen.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.DefaultPort))
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.DefaultPort < 1 || c.Server.DefaultPort > 65535 {
		errs = append(errs, fmt.Errorf("server.default_port must be in 1..65535, got %d", c.Server.DefaultPort))
	}
	if c.Server.MaxFrameBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_frame_bytes must be positive, got %d", c.Server.MaxFrameBytes))
	}
	if c.Protocol.Separator == "" {
		errs = append(errs, errors.New("protocol.separator must not be empty"))
	}
	if c.Cache.Capacity < 1 {
		errs = append(errs, fmt.Errorf("cache.capacity must be at least 1, got %d", c.Cache.Capacity))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of auto, text, json", c.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

type LoadOptions struct {
	// Path is the config file. Empty means defaults only.
	Path string
	// DotEnvFiles are read before the environment. Missing files are skipped.
	DotEnvFiles []string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load builds a Config from defaults, the config file and the environment.
// The result is not validated.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.Path != "" {
		if err := loadFile(&cfg, opts.Path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, opts); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromBytes decodes data over the defaults. format is "yaml" or "json".
func FromBytes(data []byte, format string) (Config, error) {
	cfg := Default()
	if err := decode(&cfg, data, format); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	format, err := detectFormat(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return decode(cfg, data, format)
}

func decode(cfg *Config, data []byte, format string) error {
	var parser koanf.Parser
	switch format {
	case "yaml":
		parser = yaml.Parser()
	case "json":
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if len(data) == 0 {
		return nil
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}

func detectFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func applyEnv(cfg *Config, opts LoadOptions) error {
	environ := opts.Environment
	if environ != nil {
		environ = maps.Clone(environ)
	}

	for _, f := range opts.DotEnvFiles {
		if environ == nil {
			// godotenv.Load never overrides variables that are already set.
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %w", ErrLoadFailed, err)
			}
			continue
		}

		vars, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		for k, v := range vars {
			if _, set := environ[k]; !set {
				environ[k] = v
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
