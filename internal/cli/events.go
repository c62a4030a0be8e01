package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/jfrconv"
)

var eventsCmd = &cobra.Command{
	Use:   "events <recording.jfr>",
	Short: "List sample events available in a JFR recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runEvents(args[0])
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(path string) error {
	counts, err := jfrconv.Discover(path)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Println("recording carries no known sample events")
		return nil
	}
	for _, event := range jfrconv.Events() {
		if n, ok := counts[event]; ok {
			fmt.Fprintf(os.Stdout, "%-8s %d\n", event, n)
		}
	}
	return nil
}
