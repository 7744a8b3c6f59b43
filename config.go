package rt

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"gopkg.in/yaml.v3"
)

// Config is the YAML representation of a Runtime's tunables, e.g.
//
//	task_budget: 64
//	log_level: info
//	failure_log_rate:
//	  1s: 5
//	  1m: 50
type Config struct {
	// FailureLogRate maps windows (time.ParseDuration format) to the maximum
	// number of task failures logged per window.
	FailureLogRate map[string]int `yaml:"failure_log_rate"`

	// LogLevel is the level of the logger built by Config.Logger, e.g.
	// "debug", "info", "warning", "err". Empty means info.
	LogLevel string `yaml:"log_level"`

	// TaskBudget caps the tasks polled per pass, zero being unlimited.
	TaskBudget int `yaml:"task_budget"`
}

// LoadConfig decodes a Config from r. Unknown fields are rejected. An empty
// document is the zero Config.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("rt: load config: %w", err)
	}
	return &cfg, nil
}

// Options converts the Config to runtime options. It does not include a
// logger, see Config.Logger.
func (c *Config) Options() ([]Option, error) {
	var opts []Option

	if c.TaskBudget != 0 {
		if c.TaskBudget < 0 {
			return nil, fmt.Errorf("rt: config: negative task_budget: %d", c.TaskBudget)
		}
		opts = append(opts, WithTaskBudget(c.TaskBudget))
	}

	if len(c.FailureLogRate) != 0 {
		rates := make(map[time.Duration]int, len(c.FailureLogRate))
		for k, v := range c.FailureLogRate {
			d, err := time.ParseDuration(k)
			if err != nil {
				return nil, fmt.Errorf("rt: config: failure_log_rate: %w", err)
			}
			rates[d] = v
		}
		opts = append(opts, WithFailureLogRate(rates))
	}

	if _, err := c.Level(); err != nil {
		return nil, err
	}

	return opts, nil
}

// Level parses LogLevel.
func (c *Config) Level() (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case ``, `info`, `informational`:
		return logiface.LevelInformational, nil
	case `disabled`, `off`:
		return logiface.LevelDisabled, nil
	case `emerg`, `emergency`:
		return logiface.LevelEmergency, nil
	case `alert`:
		return logiface.LevelAlert, nil
	case `crit`, `critical`:
		return logiface.LevelCritical, nil
	case `err`, `error`:
		return logiface.LevelError, nil
	case `warning`, `warn`:
		return logiface.LevelWarning, nil
	case `notice`:
		return logiface.LevelNotice, nil
	case `debug`:
		return logiface.LevelDebug, nil
	case `trace`:
		return logiface.LevelTrace, nil
	default:
		return 0, fmt.Errorf("rt: config: unknown log_level: %q", c.LogLevel)
	}
}

// Logger builds a JSON lines logger writing to w, at the configured level.
func (c *Config) Logger(w io.Writer) (*logiface.Logger[logiface.Event], error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger(), nil
}
