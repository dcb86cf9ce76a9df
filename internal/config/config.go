package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for a config file with an unusable value.
var ErrInvalid = errors.New("invalid config")

const (
	JobControlAuto = "auto"
	JobControlOn   = "on"
	JobControlOff  = "off"
)

// Config is read from ~/.dsh.yaml.
type Config struct {
	Prompt          string `yaml:"prompt"`
	JobControl      string `yaml:"job_control"`
	BackgroundStdin string `yaml:"background_stdin"`
	Verbose         bool   `yaml:"verbose"`
}

func Default() *Config {
	return &Config{
		Prompt:          "dsh-{pid}$ ",
		JobControl:      JobControlAuto,
		BackgroundStdin: os.DevNull,
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dsh.yaml")
}

// Load reads the config at path over the defaults. An empty path means the
// default location, which is allowed to be missing.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.JobControl {
	case JobControlAuto, JobControlOn, JobControlOff:
	default:
		return fmt.Errorf("%w: job_control must be auto, on or off, got %q", ErrInvalid, c.JobControl)
	}
	if c.Prompt == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalid)
	}
	return nil
}

// JobControlEnabled decides whether the shell should manage the terminal
// attached to fd.
func (c *Config) JobControlEnabled(fd int) bool {
	switch c.JobControl {
	case JobControlOn:
		return true
	case JobControlOff:
		return false
	default:
		return term.IsTerminal(fd)
	}
}

// RenderPrompt substitutes {pid} in the prompt template.
func (c *Config) RenderPrompt(pid int) string {
	return strings.ReplaceAll(c.Prompt, "{pid}", strconv.Itoa(pid))
}
