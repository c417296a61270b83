package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dt-pm-tools/confluence-sync/internal/observability"
	"github.com/dt-pm-tools/confluence-sync/internal/source"
	"github.com/dt-pm-tools/confluence-sync/internal/syncer"
)

var (
	syncDryRun      bool
	syncWorkers     int
	syncOnly        []string
	syncOutput      string
	syncMetricsFile string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the configured documents to Confluence",
	Long: `Fetches every configured document, converts it to Confluence storage format and
creates or updates its page. Pages that already match are left alone.

Each document is handled independently: a failure is reported and the run
continues. The command exits non-zero when any document failed.

Use --dry-run to see what would change without writing to Confluence.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(true); err != nil {
			return err
		}
		switch syncOutput {
		case "text", "yaml", "json":
		default:
			return fmt.Errorf("unknown --output %q (want text, yaml or json)", syncOutput)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		wiki := newConfluenceClient()
		github := source.NewGitHub(appConfig.GitHub.APIURL, appConfig.GitHub.Token, httpClient()).WithLogger(logger)
		sources := source.NewRegistry(github)
		for _, entry := range appConfig.Sync {
			if entry.LocalDir != "" {
				sources.Register(entry.Repo(), source.NewDir(entry.LocalDir))
			}
		}

		plan := &syncer.Plan{Mappings: appConfig.Mappings()}
		planner := syncer.NewPlanner(sources, wiki, appConfig.Confluence.URL, syncDryRun, logger)
		if len(syncOnly) > 0 {
			// Filter before planning so folder pages are only created for
			// the selected documents.
			plan.Mappings = filterMappings(plan.Mappings, syncOnly)
			planner.WithFilter(func(m syncer.Mapping) bool { return matchesOnly(m, syncOnly) })
		}
		for _, tree := range appConfig.Trees() {
			plan.Add(planner.Plan(ctx, tree))
		}
		if len(syncOnly) > 0 && len(plan.Mappings) == 0 && len(plan.Failed) == 0 {
			return fmt.Errorf("no configured document matches --only %s", strings.Join(syncOnly, ", "))
		}

		workers := appConfig.Workers
		if cmd.Flags().Changed("workers") {
			workers = syncWorkers
		}
		metrics := observability.NewMetrics()
		orchestrator := syncer.NewOrchestrator(sources, wiki, syncer.Options{
			Workers:  workers,
			DryRun:   syncDryRun,
			Log:      logger,
			Recorder: metrics,
		})
		report := orchestrator.RunPlan(ctx, plan)

		if syncMetricsFile != "" {
			if err := metrics.WriteFile(syncMetricsFile); err != nil {
				logger.Error().Err(err).Str("path", syncMetricsFile).Msg("could not write metrics")
			}
		}
		if err := writeReport(os.Stdout, report, syncOutput); err != nil {
			return err
		}
		if report.Failed() {
			return fmt.Errorf("%d of %d documents failed", report.Counts()[syncer.Failed], len(report.Results))
		}
		return nil
	},
}

// filterMappings keeps the mappings whose title or source path is listed.
func filterMappings(mappings []syncer.Mapping, only []string) []syncer.Mapping {
	var out []syncer.Mapping
	for _, m := range mappings {
		if matchesOnly(m, only) {
			out = append(out, m)
		}
	}
	return out
}

func matchesOnly(m syncer.Mapping, only []string) bool {
	for _, o := range only {
		if strings.EqualFold(m.Title, o) || m.Path == strings.TrimPrefix(o, "/") {
			return true
		}
	}
	return false
}

func writeReport(w io.Writer, report *syncer.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tTITLE\tSOURCE\tPAGE\tDETAIL")
	for _, res := range report.Results {
		title := res.Mapping.Title
		if title == "" {
			title = "-"
		}
		page := res.PageID
		if page == "" {
			page = "-"
		}
		if res.Version > 0 {
			page = fmt.Sprintf("%s (v%d)", page, res.Version)
		}
		detail := ""
		if res.Outcome == syncer.Failed {
			detail = fmt.Sprintf("%s: %s", res.ErrorKind, res.Error)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s@%s:%s\t%s\t%s\n", res.Outcome, title, res.Mapping.Repo, res.Mapping.Branch, res.Mapping.Path, page, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := report.Counts()
	prefix := ""
	if report.DryRun {
		prefix = "Dry run: "
	}
	fmt.Fprintf(w, "\n%s%d created, %d updated, %d unchanged, %d failed (run %s)\n", prefix,
		counts[syncer.Created], counts[syncer.Updated], counts[syncer.Unchanged], counts[syncer.Failed], report.RunID)
	return nil
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what would change without writing to Confluence")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", syncer.DefaultWorkers, "documents to sync concurrently (overrides config)")
	syncCmd.Flags().StringSliceVar(&syncOnly, "only", nil, "sync only documents with this title or source path (repeatable)")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "text", "report format: text, yaml or json")
	syncCmd.Flags().StringVar(&syncMetricsFile, "metrics-file", "", "write Prometheus metrics to this file (textfile collector format)")
	rootCmd.AddCommand(syncCmd)
}
