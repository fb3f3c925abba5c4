package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-meetsync/internal/config"
	"github.com/alnah/go-meetsync/internal/interrupt"
	"github.com/alnah/go-meetsync/internal/watch"
)

// WatchCmd creates the watch command.
func WatchCmd(env *Env) *cobra.Command {
	var (
		flags  runFlags
		settle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process recordings as they land in a directory",
		Long: `Watch a directory and process every new recording once it stops growing,
one at a time, exactly as 'process' would.

Press Ctrl+C once to finish the recording in progress and stop.
Press Ctrl+C again to abort immediately.`,
		Example: `  meetsync watch ~/Videos/Zoom -o ~/notes
  meetsync watch ./inbox --settle 10s --mode hybrid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, env, &flags, args[0], settle)
		},
	}

	bindRunFlags(cmd.Flags(), &flags)
	cmd.Flags().DurationVar(&settle, "settle", watch.DefaultSettle, "Quiet period before a new file is processed")
	return cmd
}

func runWatch(cmd *cobra.Command, env *Env, flags *runFlags, dir string, settle time.Duration) error {
	dir = config.ExpandPath(dir)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, dir)
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	}

	// The handler owns signal handling from here on, so a first Ctrl+C
	// drains instead of canceling the recording in progress.
	h := env.NewInterrupt(context.WithoutCancel(cmd.Context()))
	defer h.Stop()

	r, err := newRunner(h.Work(), env, cmd.Flags(), flags, true)
	if err != nil {
		return err
	}
	defer r.close()

	w := watch.New(dir, watch.WithSettle(settle), watch.WithLogger(r.log))
	fmt.Fprintf(env.Stderr, "Watching %s (Ctrl+C to stop)\n", dir)

	err = w.Run(h.Intake(), func(path string) error {
		_, err := r.process(h.Work(), path)
		if err != nil && !isInterrupted(err) {
			fmt.Fprintf(env.Stderr, "Failed: %v\n", err)
		}
		return err
	})
	if h.WasInterrupted() {
		if h.Phase() == interrupt.Aborted {
			return context.Canceled
		}
		return nil
	}
	return err
}
