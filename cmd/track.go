package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/datatecnica/sampleshare/internal/domain"
)

var (
	activeOnly      bool
	filterRecipient string
	filterKind      string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track and manage shared samples",
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked shares",
	Run: func(cmd *cobra.Command, args []string) {
		views, err := shareService.ListShares(context.Background(), time.Now())
		if err != nil {
			fmt.Printf("Error listing shares: %v\n", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSUBJECTS\tRECIPIENT\tDESTINATION\tEXPIRES\tDAYS LEFT\tACTIVE")
		shown := 0
		for _, view := range views {
			if activeOnly && !view.Active {
				continue
			}
			if filterRecipient != "" && view.Recipient != filterRecipient {
				continue
			}
			if filterKind != "" && string(view.Kind) != filterKind {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%t\n",
				view.ID, view.Kind, summarizeSubjects(view.Subjects), view.Recipient,
				view.Destination.Container, view.ExpiresAt.Format("2006-01-02"),
				view.DaysRemaining, view.Active)
			shown++
		}
		w.Flush()
		if shown == 0 {
			fmt.Println("No shared samples found.")
		}
	},
}

func summarizeSubjects(subjects []string) string {
	if len(subjects) == 1 {
		return subjects[0]
	}
	if len(subjects) <= 3 {
		return strings.Join(subjects, ",")
	}
	return fmt.Sprintf("%d samples", len(subjects))
}

var trackExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Deactivate shares whose expiry has passed",
	Run: func(cmd *cobra.Command, args []string) {
		deactivated, err := shareService.Expire(context.Background(), time.Now())
		if err != nil {
			fmt.Printf("Error expiring shares: %v\n", err)
			os.Exit(1)
		}
		if len(deactivated) == 0 {
			fmt.Println("No shares to expire.")
			return
		}
		fmt.Printf("Deactivated %d expired shares:\n", len(deactivated))
		for _, id := range deactivated {
			fmt.Printf("  %s\n", id)
		}
	},
}

var trackDeactivateCmd = &cobra.Command{
	Use:   "deactivate [share-id]",
	Short: "Deactivate a share without deleting anything",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := shareService.Deactivate(context.Background(), args[0]); err != nil {
			fmt.Printf("Error deactivating share %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("Share %s deactivated\n", args[0])
	},
}

var trackDeleteCmd = &cobra.Command{
	Use:   "delete [share-id]...",
	Short: "Delete share records and clean up their stored data",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, id := range args {
			result, err := shareService.DeleteShare(context.Background(), id)
			if err != nil {
				fmt.Printf("Error deleting share %s: %v\n", id, err)
				continue
			}
			if result.CleanupSucceeded {
				fmt.Printf("Share %s deleted and stored data cleaned up\n", id)
			} else {
				fmt.Printf("Share %s deleted, but stored data cleanup failed: reconcile manually\n", id)
			}
		}
	},
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List available sample IDs in the source bucket",
	Run: func(cmd *cobra.Command, args []string) {
		samples, err := shareService.ListSamples(context.Background(), cfg.SourceBucket)
		if err != nil {
			fmt.Printf("Error listing samples: %v\n", err)
			os.Exit(1)
		}
		for _, sampleID := range samples {
			fmt.Println(sampleID)
		}
	},
}

var trackReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "List share containers on the store side to compare against records",
	Run: func(cmd *cobra.Command, args []string) {
		containers, err := shareService.ReconcileContainers(context.Background())
		if err != nil {
			fmt.Printf("Error listing share containers: %v\n", err)
			os.Exit(1)
		}

		views, err := shareService.ListShares(context.Background(), time.Now())
		if err != nil {
			fmt.Printf("Error listing shares: %v\n", err)
			os.Exit(1)
		}
		tracked := make(map[string]bool, len(views))
		for _, view := range views {
			tracked[view.Destination.Container] = true
		}

		for _, container := range containers {
			if tracked[container] {
				fmt.Printf("%s\ttracked\n", container)
			} else {
				fmt.Printf("%s\tuntracked (no record)\n", container)
			}
		}
	},
}

func init() {
	trackListCmd.Flags().BoolVar(&activeOnly, "active", false, "Show active shares only")
	trackListCmd.Flags().StringVar(&filterRecipient, "recipient", "", "Filter by recipient email")
	trackListCmd.Flags().StringVar(&filterKind, "kind", "", fmt.Sprintf("Filter by share kind (%s or %s)", domain.KindSingle, domain.KindMulti))

	trackCmd.AddCommand(trackListCmd)
	trackCmd.AddCommand(trackExpireCmd)
	trackCmd.AddCommand(trackDeactivateCmd)
	trackCmd.AddCommand(trackDeleteCmd)
	trackCmd.AddCommand(trackReconcileCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(samplesCmd)
}
