package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danshapiro/refinery/internal/splunk"
)

var (
	eventsCount       int
	eventsAnomalyRate float64
	eventsIndex       string
	eventsDryRun      bool
	eventsWait        bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Send synthetic events to the Splunk HEC collector",
	Long: `Generate weighted persona events (SRE, DevOps, support, infrastructure,
security) with a configurable anomaly rate and post them to the HTTP
Event Collector, stamped evenly across the past hour. With --dry-run
the envelopes are printed to stdout instead of being sent.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().IntVar(&eventsCount, "count", 50, "Number of events to generate")
	eventsCmd.Flags().Float64Var(&eventsAnomalyRate, "anomaly-rate", splunk.DefaultAnomalyRate, "Fraction of events generated in their degraded variant")
	eventsCmd.Flags().StringVar(&eventsIndex, "index", "", "Override the index on every event")
	eventsCmd.Flags().BoolVar(&eventsDryRun, "dry-run", false, "Print envelopes instead of sending them")
	eventsCmd.Flags().BoolVar(&eventsWait, "wait", false, "Wait for the collector health check before sending")
}

func runEvents(cmd *cobra.Command, args []string) error {
	gen := splunk.NewGenerator(0)

	now := time.Now()
	window := time.Hour
	events := make([]splunk.Event, 0, eventsCount)
	for i := 0; i < eventsCount; i++ {
		offset := window - time.Duration(i+1)*window/time.Duration(eventsCount)
		ev := gen.Generate(now.Add(-offset), eventsAnomalyRate)
		if eventsIndex != "" {
			ev.Index = eventsIndex
		}
		events = append(events, ev)
	}

	if eventsDryRun {
		enc := json.NewEncoder(os.Stdout)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}

	opts := splunk.EnvHECOptions(os.LookupEnv)
	opts.Out = os.Stdout
	client := splunk.NewHECClient(opts)
	ctx := cmdContext(cmd)

	if eventsWait {
		if err := client.WaitUntilReady(ctx, 0, 0); err != nil {
			return err
		}
	}

	fmt.Printf("Sending %d events to %s\n", len(events), client.URL())
	if err := client.Send(ctx, events); err != nil {
		return err
	}
	fmt.Println("Done")
	return nil
}
