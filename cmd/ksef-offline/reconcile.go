package main

import (
	"fmt"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef/api"
	"github.com/alapierre/go-ksef-offline/ksef/offline"
	"github.com/alapierre/go-ksef-offline/ksef/util"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var (
		batchSize     int
		expiringHours int
		stopOnError   bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Submit pending offline invoices to KSeF",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := environment()
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}

			client := api.New(env, api.WithToken(util.GetEnvOrFailed("KSEF_ACCESS_TOKEN")))
			coord := offline.NewCoordinator(st, client)

			result, err := coord.SubmitBatch(cmd.Context(), offline.BatchOptions{
				BatchSize:           batchSize,
				ExpiringWithinHours: expiringHours,
				StopOnError:         stopOnError,
			})
			if err != nil {
				return err
			}

			fmt.Printf("total:     %d\n", result.Total)
			fmt.Printf("submitted: %d\n", result.Submitted)
			fmt.Printf("accepted:  %d\n", result.Accepted)
			fmt.Printf("failed:    %d\n", result.Failed)
			fmt.Printf("expired:   %d\n", result.Expired)
			fmt.Printf("skipped:   %d\n", result.Skipped)

			for _, o := range result.Outcomes {
				if o.Err != nil {
					fmt.Printf("  %s %s: %s %s\n", o.RecordID, o.Status, o.Err.Code, o.Err.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "outbound call pacing chunk size")
	cmd.Flags().IntVar(&expiringHours, "expiring-within", 0, "only records expiring within this many hours (0 = all)")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "halt the batch at the first submission failure")

	return cmd
}

func extendCmd() *cobra.Command {
	var (
		windowID  string
		windowEnd string
	)

	cmd := &cobra.Command{
		Use:   "extend-deadlines",
		Short: "Extend submission deadlines from updated maintenance window data",
		RunE: func(cmd *cobra.Command, args []string) error {
			end, err := time.Parse(time.RFC3339, windowEnd)
			if err != nil {
				return fmt.Errorf("invalid --window-end: %w", err)
			}

			st, err := openStore()
			if err != nil {
				return err
			}

			// no submissions happen here, the submitter is not needed
			coord := offline.NewCoordinator(st, nil)

			extended, err := coord.ExtendDeadlines(cmd.Context(), offline.MaintenanceWindow{
				ID:  windowID,
				End: end,
			})
			if err != nil {
				return err
			}

			fmt.Printf("extended %d record(s)\n", extended)
			return nil
		},
	}

	cmd.Flags().StringVar(&windowID, "window-id", "", "maintenance window identifier (required)")
	cmd.Flags().StringVar(&windowEnd, "window-end", "", "maintenance window end, RFC3339 (required)")
	_ = cmd.MarkFlagRequired("window-id")
	_ = cmd.MarkFlagRequired("window-end")

	return cmd
}
