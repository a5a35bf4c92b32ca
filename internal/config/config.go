// Package config loads the ircline daemon configuration.
//
// Values come from three layers, each overriding the previous one: built-in
// defaults, a TOML or YAML file, and IRCLINE_* environment variables. A .env
// file can seed the environment with LoadEnv.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	Server struct {
		Name    string `yaml:"name" toml:"name" env:"IRCLINE_SERVER_NAME" validate:"required,excludesall= :@!"`
		Network string `yaml:"network" toml:"network" env:"IRCLINE_NETWORK" validate:"excludesall= "`
	} `yaml:"server" toml:"server"`

	// Capabilities lists the capability names to advertise, in bit order.
	Capabilities []string `yaml:"capabilities" toml:"capabilities" env:"IRCLINE_CAPABILITIES" validate:"max=32,unique,dive,required,excludesall= "`

	Delivery struct {
		Shards     int   `yaml:"shards" toml:"shards" env:"IRCLINE_SHARDS" validate:"gte=0,lte=1024"`
		QueueSize  int   `yaml:"queue_size" toml:"queue_size" env:"IRCLINE_QUEUE_SIZE" validate:"gte=0"`
		CachePool  int32 `yaml:"cache_pool" toml:"cache_pool" env:"IRCLINE_CACHE_POOL" validate:"gte=0"`
		CacheSlots int   `yaml:"cache_slots" toml:"cache_slots" env:"IRCLINE_CACHE_SLOTS" validate:"gte=0,lte=32"`

		Breaker struct {
			Enabled     bool          `yaml:"enabled" toml:"enabled" env:"IRCLINE_BREAKER_ENABLED"`
			MaxRequests uint32        `yaml:"max_requests" toml:"max_requests" env:"IRCLINE_BREAKER_MAX_REQUESTS" validate:"required_if=Enabled true"`
			Interval    time.Duration `yaml:"interval" toml:"interval" env:"IRCLINE_BREAKER_INTERVAL" validate:"gte=0"`
			Timeout     time.Duration `yaml:"timeout" toml:"timeout" env:"IRCLINE_BREAKER_TIMEOUT" validate:"required_if=Enabled true"`
		} `yaml:"breaker" toml:"breaker"`
	} `yaml:"delivery" toml:"delivery"`

	Log struct {
		Level  string `yaml:"level" toml:"level" env:"IRCLINE_LOG_LEVEL" validate:"oneof=trace debug info warn error disabled"`
		Format string `yaml:"format" toml:"format" env:"IRCLINE_LOG_FORMAT" validate:"oneof=console json"`
	} `yaml:"log" toml:"log"`

	Metrics struct {
		// Addr is the listen address of the Prometheus endpoint. Empty disables it.
		Addr string `yaml:"addr" toml:"addr" env:"IRCLINE_METRICS_ADDR" validate:"omitempty,hostname_port"`
	} `yaml:"metrics" toml:"metrics"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "irc.local"
	cfg.Capabilities = []string{"server-time", "account-tag", "message-tags"}
	cfg.Delivery.Breaker.MaxRequests = 1
	cfg.Delivery.Breaker.Interval = time.Minute
	cfg.Delivery.Breaker.Timeout = 30 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

// Load returns the defaults overridden by the file at path, if path is not
// empty, and by the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads the given .env files into the environment. Missing files are
// skipped; variables already set are kept.
func LoadEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// loadFile decodes path over c, choosing the format from the extension.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// applyEnvOverrides sets every field with an env tag whose variable is set.
func applyEnvOverrides(cfg *Config) error {
	return applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesRecursive(v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !field.IsExported() {
			continue
		}

		if envTag := field.Tag.Get("env"); envTag != "" {
			envValue, exists := os.LookupEnv(envTag)
			if !exists {
				continue
			}
			if err := setFieldFromEnv(fieldValue, envValue); err != nil {
				return fmt.Errorf("invalid %s: %w", envTag, err)
			}
		} else if field.Type.Kind() == reflect.Struct {
			if err := applyEnvOverridesRecursive(fieldValue); err != nil {
				return err
			}
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldFromEnv parses envValue into field according to its kind.
func setFieldFromEnv(field reflect.Value, envValue string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(envValue)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(envValue, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(envValue, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var values []string
		for _, v := range strings.Split(envValue, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		field.Set(reflect.ValueOf(values))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
