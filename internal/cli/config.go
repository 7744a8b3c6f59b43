package cli

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	rt "github.com/joeycumines/go-rt"
)

// ConfigResult is the normalized form of a runtime config.
type ConfigResult struct {
	TaskBudget     int            `json:"task_budget"`
	LogLevel       string         `json:"log_level"`
	FailureLogRate map[string]int `json:"failure_log_rate,omitempty"`
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the runtime config",
		Long: `Loads the config given by --config, validates it as runtime options,
and prints it in normalized form (durations and log level canonicalized).

Example:
  go-rt config --config ./runtime.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			result, fields, err := normalizeConfig(cfg)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, result, fields)
		},
	}
}

func normalizeConfig(cfg *rt.Config) (*ConfigResult, []field, error) {
	if _, err := cfg.Options(); err != nil {
		return nil, nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}

	result := &ConfigResult{
		TaskBudget: cfg.TaskBudget,
		LogLevel:   level.String(),
	}
	fields := []field{
		{"task_budget", result.TaskBudget},
		{"log_level", result.LogLevel},
	}

	windows := make([]time.Duration, 0, len(cfg.FailureLogRate))
	counts := make(map[time.Duration]int, len(cfg.FailureLogRate))
	for k, v := range cfg.FailureLogRate {
		d, err := time.ParseDuration(k)
		if err != nil {
			return nil, nil, err
		}
		windows = append(windows, d)
		counts[d] = v
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i] < windows[j] })
	for _, d := range windows {
		if result.FailureLogRate == nil {
			result.FailureLogRate = make(map[string]int, len(windows))
		}
		result.FailureLogRate[d.String()] = counts[d]
		fields = append(fields, field{"failure_log_rate." + d.String(), counts[d]})
	}

	return result, fields, nil
}
