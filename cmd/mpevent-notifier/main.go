// Command mpevent-notifier registers as a participant in a namespace and
// triggers a named event, optionally waking only a bounded number of
// waiters. It exists as a small command-line harness for the library.
package main

import (
	"fmt"
	"math"
	"os"

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
		wakeCount uint32
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:           "mpevent-notifier",
		Short:         "Trigger a named event for other participants to observe",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			s := mpevent.NewSubscriber(name, namespace)
			defer s.Close()

			if err := s.TriggerEvent(event, wakeCount); err != nil {
				return fmt.Errorf("trigger %q: %w", event, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "triggered %q in namespace %q\n", event, namespace)
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "mpevent", "coordination namespace to join")
	cmd.Flags().StringVar(&name, "name", "notifier", "this participant's name")
	cmd.Flags().StringVar(&event, "event", "ping", "event name to trigger")
	cmd.Flags().Uint32Var(&wakeCount, "wake-count", math.MaxUint32, "maximum number of waiters to wake")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}
