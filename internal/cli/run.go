package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rt "github.com/joeycumines/go-rt"
	"github.com/joeycumines/go-rt/executor"
	"github.com/joeycumines/go-rt/timer"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Tasks     int
	Sleep     time.Duration
	FailEvery int
	Timeout   time.Duration
}

// RunResult summarizes a workload run.
type RunResult struct {
	Runtime   string `json:"runtime"`
	Elapsed   string `json:"elapsed"`
	Spawned   uint64 `json:"spawned"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Canceled  uint64 `json:"canceled"`
	Polls     uint64 `json:"polls"`
	Passes    uint64 `json:"passes"`
	Parks     uint64 `json:"parks"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic workload to quiescence",
		Long: `Spawns --tasks tasks on a new Runtime. Task i sleeps for (i%3+1) * --sleep
on the runtime's timer, then completes, or fails if --fail-every divides i+1.
Prints the executor's counters once the runtime is quiescent.

Example:
  go-rt run --tasks 100 --sleep 5ms --fail-every 10
  go-rt run --config ./runtime.yaml --format json -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkload(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Tasks, "tasks", "n", 10, "number of tasks to spawn")
	cmd.Flags().DurationVar(&opts.Sleep, "sleep", 10*time.Millisecond, "base sleep per task")
	cmd.Flags().IntVar(&opts.FailEvery, "fail-every", 0, "fail every nth task (0 disables)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "abandon the run after this long (0 disables)")

	return cmd
}

func runWorkload(opts *RunOptions, cmd *cobra.Command) error {
	if opts.Tasks < 0 {
		return fmt.Errorf("invalid --tasks: %d", opts.Tasks)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	runtimeOpts, err := cfg.Options()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	runtime, err := rt.New(append(runtimeOpts, rt.WithLogger(logger))...)
	if err != nil {
		return err
	}
	defer runtime.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	err = runtime.RunContext(ctx, func(en *executor.Entered) error {
		for i := 0; i < opts.Tasks; i++ {
			d, err := timer.Sleep(time.Duration(i%3+1) * opts.Sleep)
			if err != nil {
				return err
			}
			fail := opts.FailEvery > 0 && (i+1)%opts.FailEvery == 0
			en.Spawn(executor.FutureFunc(func(cx *executor.Context) (bool, error) {
				if ready, err := d.Poll(cx); !ready || err != nil {
					return ready, err
				}
				if fail {
					return true, fmt.Errorf("task %d: induced failure", i)
				}
				return true, nil
			}))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	st := runtime.Stats()
	result := &RunResult{
		Runtime:   runtime.ID(),
		Elapsed:   time.Since(start).Round(time.Millisecond).String(),
		Spawned:   st.Spawned,
		Completed: st.Completed,
		Failed:    st.Failed,
		Canceled:  st.Canceled,
		Polls:     st.Polls,
		Passes:    st.Passes,
		Parks:     st.Parks,
	}
	return writeOutput(cmd.OutOrStdout(), opts.Format, result, []field{
		{"runtime", result.Runtime},
		{"elapsed", result.Elapsed},
		{"spawned", result.Spawned},
		{"completed", result.Completed},
		{"failed", result.Failed},
		{"canceled", result.Canceled},
		{"polls", result.Polls},
		{"passes", result.Passes},
		{"parks", result.Parks},
	})
}
