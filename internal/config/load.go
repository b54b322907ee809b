package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names an explicit config file. A missing file is then an error.
const ConfigPathEnv = "CONFIG_PATH"

// Load reads the first config file found in the standard locations, applies
// environment overrides and validates the result.
func Load() (*Config, error) {
	return NewLoader().Load("")
}

// LoadFromPath is Load with an explicit file. Empty path searches as Load does.
func LoadFromPath(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Loader layers defaults, a YAML file and environment variables.
type Loader struct {
	searchPaths []string
}

// NewLoader searches ./configs, the working directory and /etc/taskflow.
func NewLoader() *Loader {
	return &Loader{searchPaths: []string{
		"configs/config.yaml",
		"config.yaml",
		"/etc/taskflow/config.yaml",
	}}
}

// WithConfigPaths replaces the search list.
func (l *Loader) WithConfigPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// Load builds the configuration. An explicit path (argument or CONFIG_PATH)
// must load; a searched file that fails to load is skipped.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path
	if explicit == "" {
		explicit = os.Getenv(ConfigPathEnv)
	}

	switch {
	case explicit != "":
		if err := readYAML(cfg, explicit); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", explicit, err)
		}
	default:
		if found := l.firstExisting(); found != "" {
			// fall back to defaults and env on a broken searched file
			_ = readYAML(cfg, found)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) firstExisting() string {
	for _, p := range l.searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func readYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

var durationType = reflect.TypeFor[time.Duration]()

// applyEnv walks the struct tree and overrides every field whose env tag
// names a non-empty variable.
func applyEnv(v reflect.Value) error {
	for i := range v.NumField() {
		field, meta := v.Field(i), v.Type().Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}

		name := meta.Tag.Get("env")
		if name == "" {
			continue
		}
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		if err := assign(field, raw); err != nil {
			return fmt.Errorf("failed to set %s from env %s: %w", meta.Name, name, err)
		}
	}
	return nil
}

func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidDuration, raw)
		}
		field.SetInt(int64(d))
		return nil
	}

	//nolint:exhaustive // config only uses these kinds
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", raw)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", raw)
		}
		field.SetInt(n)
	case reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", raw)
		}
		field.SetUint(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		field.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// splitList parses a comma separated list, dropping blanks.
func splitList(raw string) []string {
	var items []string
	for part := range strings.SplitSeq(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}
