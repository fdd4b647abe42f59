package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/datatecnica/sampleshare/internal/service"
)

var (
	recipient     string
	singleTTLDays int
	multiTTLDays  int
	destination   string
	createNew     bool
	listFile      string
	listHeader    bool
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Share sample data with a recipient",
}

var shareSingleCmd = &cobra.Command{
	Use:   "single [sample-id]",
	Short: "Share one sample as a zipped download link",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sampleID := args[0]

		result, err := shareService.ShareSingle(context.Background(), cfg.SourceBucket, sampleID, recipient, singleTTLDays)
		if err != nil {
			fmt.Printf("Error sharing sample %s: %v\n", sampleID, err)
			os.Exit(1)
		}

		fmt.Printf("Sample %s has been shared with %s (%d files). The link will expire in %d days.\n",
			sampleID, recipient, result.FileCount, singleTTLDays)
		fmt.Printf("Download URL: %s\n", result.DownloadURL)
		printWarnings(result.Warnings)
	},
}

var shareMultiCmd = &cobra.Command{
	Use:   "multi [sample-id]...",
	Short: "Share multiple samples via a destination bucket",
	Run: func(cmd *cobra.Command, args []string) {
		sampleIDs := args
		if listFile != "" {
			file, err := os.Open(listFile)
			if err != nil {
				fmt.Printf("Error opening sample list: %v\n", err)
				os.Exit(1)
			}
			defer file.Close()

			fromFile, err := service.ParseSampleList(file, listHeader)
			if err != nil {
				fmt.Printf("Error reading sample list: %v\n", err)
				os.Exit(1)
			}
			sampleIDs = append(sampleIDs, fromFile...)
		}
		if len(sampleIDs) == 0 {
			fmt.Println("No sample IDs given: pass them as arguments or via --from-file")
			os.Exit(1)
		}

		result, err := shareService.ShareMultiple(context.Background(), cfg.SourceBucket, sampleIDs, recipient, destination, multiTTLDays, createNew)
		if err != nil {
			fmt.Printf("Error sharing samples: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%d samples have been shared with %s in bucket %s. The data will expire in %d days.\n",
			len(result.Successful), recipient, destination, multiTTLDays)
		printSampleResults(result.Results)
		printWarnings(result.Warnings)
	},
}

func printSampleResults(results map[string]int) {
	sampleIDs := make([]string, 0, len(results))
	for sampleID := range results {
		sampleIDs = append(sampleIDs, sampleID)
	}
	sort.Strings(sampleIDs)

	for _, sampleID := range sampleIDs {
		switch count := results[sampleID]; {
		case count > 0:
			fmt.Printf("  %s: %d files copied\n", sampleID, count)
		case count == 0:
			fmt.Printf("  %s: no files found\n", sampleID)
		default:
			fmt.Printf("  %s: copy failed\n", sampleID)
		}
	}
}

func printWarnings(warnings []string) {
	for _, warning := range warnings {
		fmt.Printf("Warning: %s\n", warning)
	}
}

func init() {
	shareCmd.PersistentFlags().StringVarP(&recipient, "recipient", "r", "", "Recipient email address")
	shareCmd.MarkPersistentFlagRequired("recipient")

	shareSingleCmd.Flags().IntVar(&singleTTLDays, "ttl", 7, "Days until the download link expires")

	shareMultiCmd.Flags().IntVar(&multiTTLDays, "ttl", 30, "Days until the shared data expires")
	shareMultiCmd.Flags().StringVarP(&destination, "dest", "d", "", "Destination bucket name")
	shareMultiCmd.MarkFlagRequired("dest")
	shareMultiCmd.Flags().BoolVar(&createNew, "create", false, "Create the destination bucket instead of using an existing one")
	shareMultiCmd.Flags().StringVar(&listFile, "from-file", "", "Read sample IDs from a CSV or TXT file")
	shareMultiCmd.Flags().BoolVar(&listHeader, "header", true, "Sample list file has a header row")

	shareCmd.AddCommand(shareSingleCmd)
	shareCmd.AddCommand(shareMultiCmd)
	rootCmd.AddCommand(shareCmd)
}
