package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/octobees/turmeric-buyers/internal/service"
)

var (
	validateInput     string
	validateThreshold string
	validateOutput    string
	validateFormat    string
	validateRejected  string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a CSV or XLSX file of candidates and export the accepted buyers",
	Example: `  buyerscan validate --input leads.xlsx --output buyers.xlsx
  buyerscan validate --input leads.csv --threshold 60 --rejected rejected.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, format, err := resolveOutput(validateOutput, validateFormat, time.Now())
		if err != nil {
			return err
		}

		candidates, err := readCandidates(validateInput, "file")
		if err != nil {
			return eris.Wrap(err, "validate: read input")
		}
		if err := service.CheckBatchSize(len(candidates)); err != nil {
			return eris.Wrapf(err, "validate: %s", validateInput)
		}

		pipeline, err := buildPipeline(validateThreshold)
		if err != nil {
			return err
		}

		batch := pipeline.Run(cmd.Context(), candidates)
		summary := service.Summarize(service.RunOutcome{Batch: batch})

		if validateRejected != "" && len(batch.Rejected) > 0 {
			rejectedPath, rejectedFormat, err := resolveOutput(validateRejected, "", time.Now())
			if err != nil {
				return err
			}
			if err := writeExport(rejectedPath, rejectedFormat, batch.Rejected); err != nil {
				return err
			}
		}

		if summary.AcceptedCount == 0 {
			printSummary(cmd.OutOrStdout(), summary, "")
			return nil
		}
		if err := writeExport(output, format, batch.Accepted); err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), summary, output)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "input", "i", "", "CSV or XLSX file of candidates")
	validateCmd.Flags().StringVar(&validateThreshold, "threshold", "", "lenient, moderate, strict or 0-100")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "", "output file (default: turmeric_buyers_<timestamp>.<format>)")
	validateCmd.Flags().StringVar(&validateFormat, "format", "", "csv, json or xlsx (default: from --output, else csv)")
	validateCmd.Flags().StringVar(&validateRejected, "rejected", "", "also write rejected records to this file")
	_ = validateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(validateCmd)
}
