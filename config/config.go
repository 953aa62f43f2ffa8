// Package config loads the server's configuration: a TOML or YAML file
// (selected by extension) read from a path given on the command line or the
// default system path, overridden by NATS3_-prefixed environment variables.
// Grounded on the teacher's config.Config{...}/Validate() shape and on
// estuary-flow/authn/main.go's yaml.NewDecoder(...).KnownFields(true) style
// for strict decoding.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/gurre/nats3/types"
)

// DefaultPath is used when no path is given on the command line.
const DefaultPath = "/etc/nats3/config.toml"

// envPrefix is prepended to every hierarchical env var key, per spec.
const envPrefix = "NATS3"

// ServerConfig configures the HTTP façade.
type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// PostgresConfig configures the metadata database connection.
type PostgresConfig struct {
	URL     string `toml:"url" yaml:"url"`
	Migrate bool   `toml:"migrate" yaml:"migrate"`
}

// NATSConfig configures the stream-server connection.
type NATSConfig struct {
	URL string `toml:"url" yaml:"url"`
}

// S3Config configures the object-store endpoint and credentials.
type S3Config struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Region   string `toml:"region" yaml:"region"`
	Access   string `toml:"access" yaml:"access"`
	Secret   string `toml:"secret" yaml:"secret"`
}

// Config is the full set of recognized keys from spec.md section 6.
type Config struct {
	Log      string              `toml:"log" yaml:"log"`
	Server   ServerConfig        `toml:"server" yaml:"server"`
	Postgres PostgresConfig      `toml:"postgres" yaml:"postgres"`
	NATS     NATSConfig          `toml:"nats" yaml:"nats"`
	S3       S3Config            `toml:"s3" yaml:"s3"`
	// StoreJobs are (re)registered with the coordinator on startup.
	// Environment overrides do not reach into this slice; it is file-only.
	StoreJobs []types.CreateStoreJob `toml:"store_jobs" yaml:"store_jobs"`
}

// defaults returns a Config pre-populated with every documented default.
func defaults() *Config {
	return &Config{
		Log: "INFO",
		Server: ServerConfig{
			Addr: "0.0.0.0:8080",
		},
	}
}

// Load reads path (or DefaultPath if empty), decodes it by extension, and
// applies the NATS3_ environment overlay on top.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := defaults()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnvOverlay(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config %q: %w", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parsing yaml config %q: %w", path, err)
		}
	case ".toml", "":
		if _, err := toml.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("parsing toml config %q: %w", path, err)
		}
	default:
		return fmt.Errorf("unrecognized config extension %q (want .toml, .yaml, or .yml)", ext)
	}
	return nil
}

// applyEnvOverlay walks cfg's struct fields and, for every leaf field whose
// NATS3_-prefixed, underscore-joined path is set in the environment,
// overwrites it. There is no config-merging library anywhere in the
// retrieved corpus, so this one piece is hand-rolled over reflect and
// os.LookupEnv rather than imported; see DESIGN.md.
func applyEnvOverlay(cfg *Config) {
	walkEnvOverlay(reflect.ValueOf(cfg).Elem(), envPrefix)
}

func walkEnvOverlay(v reflect.Value, keyPrefix string) {
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := v.Field(i)
		key := keyPrefix + "_" + strings.ToUpper(field.Name)

		switch fv.Kind() {
		case reflect.Struct:
			walkEnvOverlay(fv, key)
		case reflect.Slice:
			// slices are file-only; see the StoreJobs doc comment.
			continue
		default:
			raw, ok := os.LookupEnv(key)
			if !ok {
				continue
			}
			setScalar(fv, raw)
		}
	}
}

func setScalar(fv reflect.Value, raw string) {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			fv.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(raw); err == nil {
				fv.SetInt(int64(d))
			}
			return
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fv.SetInt(n)
		}
	}
}

// Validate ensures every recognized key required for startup is present and
// well-formed, in the teacher's sequential-fmt.Errorf style.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Log) {
	case "TRACE", "DEBUG", "INFO", "ERROR":
	default:
		return fmt.Errorf("log level must be one of TRACE, DEBUG, INFO, ERROR, got %q", c.Log)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required")
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}

	if c.S3.Endpoint == "" {
		return fmt.Errorf("s3.endpoint is required")
	}
	if c.S3.Region == "" {
		return fmt.Errorf("s3.region is required")
	}

	for i, job := range c.StoreJobs {
		if job.Name == "" {
			return fmt.Errorf("store_jobs[%d].name is required", i)
		}
		if job.Stream == "" {
			return fmt.Errorf("store_jobs[%d].stream is required", i)
		}
		if job.Subject == "" {
			return fmt.Errorf("store_jobs[%d].subject is required", i)
		}
		if job.Bucket == "" {
			return fmt.Errorf("store_jobs[%d].bucket is required", i)
		}
	}

	return nil
}
