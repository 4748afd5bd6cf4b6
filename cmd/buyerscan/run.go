package main

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octobees/turmeric-buyers/internal/app"
	"github.com/octobees/turmeric-buyers/internal/entity"
	"github.com/octobees/turmeric-buyers/internal/service"
	"github.com/octobees/turmeric-buyers/internal/service/dedup"
	"github.com/octobees/turmeric-buyers/internal/service/scoring"
	"github.com/octobees/turmeric-buyers/internal/source"
)

var (
	runCSV        string
	runXLSX       string
	runHTML       bool
	runWorker     string
	runTerms      []string
	runMaxPerTerm int
	runTarget     int
	runThreshold  string
	runMergeWith  string
	runOutput     string
	runFormat     string
	runPersist    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect candidates, validate them and export the accepted buyers",
	Long: `Collects candidates for each search term from the selected sources, runs
them through validation and scoring, and exports the accepted buyers.

Examples:
  # Offline run from a spreadsheet
  buyerscan run --csv leads.csv --threshold lenient

  # Search the B2B directories and merge with last week's export
  buyerscan run --html --terms "turmeric importer" --merge-with turmeric_buyers_20240301_093000.csv

  # Ask the scrape worker and keep the results in the configured store
  buyerscan run --worker https://worker.example.run.app --persist`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		output, format, err := resolveOutput(runOutput, runFormat, time.Now())
		if err != nil {
			return err
		}

		collectors, err := runCollectors()
		if err != nil {
			return err
		}
		if len(collectors) == 0 {
			return eris.New("run: no sources selected (use --csv, --xlsx, --html or --worker)")
		}

		pipeline, err := buildPipeline(runThreshold)
		if err != nil {
			return err
		}

		terms := runTerms
		if len(terms) == 0 {
			terms = cfg.Collect.Terms
		}
		if len(terms) == 0 {
			terms = source.DefaultSearchTerms
		}
		collector := &source.MultiCollector{
			Collectors: collectors,
			MaxPerTerm: firstPositive(runMaxPerTerm, cfg.Collect.MaxPerTerm),
			Target:     firstPositive(runTarget, cfg.Collect.Target),
		}
		candidates, err := collector.Collect(ctx, terms)
		if err != nil {
			return eris.Wrap(err, "run: collect")
		}
		zap.L().Info("collected candidates", zap.Int("count", len(candidates)))

		if runMergeWith != "" {
			candidates, err = mergeWithPrevious(runMergeWith, candidates, pipeline.SimilarityThreshold())
			if err != nil {
				return err
			}
		}

		outcome := service.RunOutcome{Batch: pipeline.Run(ctx, candidates)}

		if runPersist && len(outcome.Batch.Accepted) > 0 {
			repo, closeStore, err := app.OpenStore(ctx, cfg.Store)
			if err != nil {
				return eris.Wrap(err, "run: open store")
			}
			defer closeStore()
			svc := service.NewBuyersService(repo, pipeline, nil, nil)
			if outcome.Upsert, outcome.Merged, err = svc.Persist(ctx, outcome.Batch); err != nil {
				return err
			}
		}

		summary := service.Summarize(outcome)
		if summary.AcceptedCount == 0 {
			printSummary(cmd.OutOrStdout(), summary, "")
			return nil
		}
		if err := writeExport(output, format, outcome.Batch.Accepted); err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), summary, output)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCSV, "csv", "", "CSV file of candidates")
	runCmd.Flags().StringVar(&runXLSX, "xlsx", "", "XLSX workbook of candidates")
	runCmd.Flags().BoolVar(&runHTML, "html", false, "search the configured B2B directories")
	runCmd.Flags().StringVar(&runWorker, "worker", "", "scrape worker base URL (overrides config)")
	runCmd.Flags().StringSliceVar(&runTerms, "terms", nil, "search terms (default: configured or built-in terms)")
	runCmd.Flags().IntVar(&runMaxPerTerm, "max-per-term", 0, "maximum candidates per term and source")
	runCmd.Flags().IntVar(&runTarget, "target", 0, "stop collecting after this many candidates")
	runCmd.Flags().StringVar(&runThreshold, "threshold", "", "lenient, moderate, strict or 0-100")
	runCmd.Flags().StringVar(&runMergeWith, "merge-with", "", "previous export (csv or xlsx) to merge into this run")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output file (default: turmeric_buyers_<timestamp>.<format>)")
	runCmd.Flags().StringVar(&runFormat, "format", "", "csv, json or xlsx (default: from --output, else csv)")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "store accepted buyers in the configured database")
	rootCmd.AddCommand(runCmd)
}

func runCollectors() ([]source.Collector, error) {
	collect := cfg.Collect
	collect.CSVPath = runCSV
	collect.XLSXPath = runXLSX
	collect.DisableDirectories = !runHTML
	if runWorker != "" {
		collect.WorkerBaseURL = runWorker
	}
	return app.Collectors(collect, &http.Client{Timeout: collect.Timeout})
}

func buildPipeline(thresholdOverride string) (*service.Pipeline, error) {
	pipeline, err := app.Pipeline(cfg)
	if err != nil {
		return nil, err
	}
	if thresholdOverride == "" {
		return pipeline, nil
	}
	threshold, err := scoring.ParseThreshold(thresholdOverride)
	if err != nil {
		return nil, err
	}
	return pipeline.WithThreshold(threshold)
}

// mergeWithPrevious folds an earlier export into the fresh candidates so the
// most complete copy of each buyer is validated and exported again.
func mergeWithPrevious(path string, fresh []entity.CandidateRecord, threshold float64) ([]entity.CandidateRecord, error) {
	previous, err := readCandidates(path, "previous")
	if err != nil {
		return nil, eris.Wrapf(err, "run: read %s", path)
	}
	merged, dropped := dedup.Merge(previous, fresh, threshold)
	zap.L().Info("merged previous export",
		zap.String("path", path),
		zap.Int("previous", len(previous)),
		zap.Int("fresh", len(fresh)),
		zap.Int("dropped", dropped),
	)
	return merged, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
