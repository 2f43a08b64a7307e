// Command mpevent-waiter registers as a participant in a namespace and
// blocks on a named event, printing when it is triggered. It doubles as a
// manual test harness for mpevent-notifier.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yangosoft/mpevent"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		namespace string
		name      string
		event     string
		timeout   time.Duration
		discover  bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:           "mpevent-waiter",
		Short:         "Wait for a named event, or for new participants/events to appear",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			if timeout > 0 {
				var timeoutCancel context.CancelFunc
				ctx, timeoutCancel = context.WithTimeout(ctx, timeout)
				defer timeoutCancel()
			}

			s := mpevent.NewSubscriber(name, namespace)
			defer s.Close()

			if discover {
				return runDiscover(cmd, ctx, s)
			}

			for {
				err := s.WaitOnEvent(ctx, event)
				if errors.Is(err, mpevent.ErrSpuriousWake) {
					continue
				}
				if err != nil {
					return fmt.Errorf("wait on %q: %w", event, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "event %q triggered\n", event)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "mpevent", "coordination namespace to join")
	cmd.Flags().StringVar(&name, "name", "waiter", "this participant's name")
	cmd.Flags().StringVar(&event, "event", "ping", "event name to wait on")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")
	cmd.Flags().BoolVar(&discover, "discover", false, "wait for a new participant or event instead of --event")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runDiscover(cmd *cobra.Command, ctx context.Context, s *mpevent.Subscriber) error {
	s.SetOnCreateParticipantCallback(func(id uint64) {
		fmt.Fprintf(cmd.OutOrStdout(), "new participant: id=%d\n", id)
	})
	s.SetOnCreateEventCallback(func(id uint64) {
		fmt.Fprintf(cmd.OutOrStdout(), "new event: id=%d\n", id)
	})

	errs := make(chan error, 2)
	go func() { errs <- s.WaitOnNewParticipant(ctx) }()
	go func() { errs <- s.WaitOnNewEvent(ctx) }()

	err := <-errs
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
