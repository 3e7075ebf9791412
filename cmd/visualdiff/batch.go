package main

import (
	"fmt"
	"io"

	"visualdiff/internal/batch"
	"visualdiff/internal/shutdown"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type batchEnv struct {
	root *rootEnv

	manifest string
	outDir   string
	workers  int
}

func getBatchCmd(root *rootEnv) *cobra.Command {
	env := &batchEnv{root: root}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Compare every screen listed in a manifest",
		Long: `
Reads a YAML manifest of screens, each with a first and second image, and
compares them in parallel. Inputs and composites are written to
<out>/bulk_comparisons/<timestamp>/. Exits non-zero when any screen fails.
`,
		RunE: env.runBatchCmd,
	}

	cmd.Flags().StringVar(&env.manifest, "manifest", "", "path to the manifest")
	cmd.Flags().StringVar(&env.outDir, "out", "", "artifact root (defaults to output_dir from settings)")
	cmd.Flags().IntVar(&env.workers, "workers", 0, "parallel comparisons (defaults to workers from settings)")
	must(cmd.MarkFlagRequired("manifest"))

	return cmd
}

func (b *batchEnv) runBatchCmd(cmd *cobra.Command, _ []string) error {
	log, err := b.root.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer b.root.trackMemory(log)()

	settings, err := b.root.settings()
	if err != nil {
		return err
	}
	opts, err := settings.EngineOptions()
	if err != nil {
		return err
	}

	m, err := batch.LoadManifest(b.manifest)
	if err != nil {
		return err
	}

	workers := settings.Workers
	if b.workers > 0 {
		workers = b.workers
	}
	outDir := settings.OutputDir
	if b.outDir != "" {
		outDir = b.outDir
	}

	runner := batch.NewRunner(log, opts, workers, settings.MaxInputBytes)

	mgr := shutdown.NewManager(cmd.Context(), log)
	mgr.Register(runner)
	// Components shut down in reverse order, so this runs before the runner.
	mgr.Register(shutdown.Func(func() {
		log.Warning("Batch", "interrupted, waiting for screens in flight", map[string]interface{}{
			"manifest": b.manifest,
		})
	}))
	mgr.Listen()
	defer mgr.Stop()

	report, runErr := runner.Run(mgr.Context(), m, outDir)
	if report == nil {
		return runErr
	}

	printReport(cmd.OutOrStdout(), report)

	select {
	case <-mgr.Done():
		return fmt.Errorf("interrupted: %d of %d screens did not finish", report.Failed, len(report.Results))
	default:
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d screens failed", report.Failed, len(report.Results))
	}
	return runErr
}

func printReport(w io.Writer, report *batch.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Screen", "Similarity", "Regions", "Artifact", "Error"})
	table.SetAutoWrapText(false)

	for _, res := range report.Results {
		if res.ComparisonResult == nil {
			table.Append([]string{res.ScreenName, "-", "-", "-", res.Error})
			continue
		}
		table.Append([]string{
			res.ScreenName,
			res.Similarity + "%",
			fmt.Sprintf("%d", len(res.Regions)),
			res.ComparisonImage,
			"",
		})
	}
	table.Render()

	fmt.Fprintf(w, "Output: %s\n", report.Dir)
}
