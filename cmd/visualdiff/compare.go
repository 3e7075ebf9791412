package main

import (
	"encoding/json"
	"fmt"
	"os"

	"visualdiff/engine"
	"visualdiff/internal/batch"
	"visualdiff/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type compareEnv struct {
	root *rootEnv

	first   string
	second  string
	outDir  string
	session string
	minArea int
	format  string
	asJSON  bool
}

func getCompareCmd(root *rootEnv) *cobra.Command {
	env := &compareEnv{root: root}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two images",
		Long: `
Compares two screenshots, prints the similarity and writes the annotated
composite to <out>/single_comparisons/<session>/.
`,
		RunE: env.runCompareCmd,
	}

	cmd.Flags().StringVar(&env.first, "first", "", "path to the first image")
	cmd.Flags().StringVar(&env.second, "second", "", "path to the second image")
	cmd.Flags().StringVar(&env.outDir, "out", "", "artifact root (defaults to output_dir from settings)")
	cmd.Flags().StringVar(&env.session, "session", "", "session id (random when empty)")
	cmd.Flags().IntVar(&env.minArea, "min-area", 0, "minimum region area in pixels")
	cmd.Flags().StringVar(&env.format, "format", "", "artifact format: jpg or png")
	cmd.Flags().BoolVar(&env.asJSON, "json", false, "print the result as JSON")
	must(cmd.MarkFlagRequired("first"))
	must(cmd.MarkFlagRequired("second"))

	return cmd
}

func (c *compareEnv) runCompareCmd(cmd *cobra.Command, _ []string) error {
	log, err := c.root.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer c.root.trackMemory(log)()

	settings, err := c.root.settings()
	if err != nil {
		return err
	}
	opts, err := settings.EngineOptions()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("min-area") {
		opts.MinRegionArea = c.minArea
	}
	if cmd.Flags().Changed("format") {
		opts.ArtifactFormat = c.format
	}

	first, err := batch.ReadInput(c.first, settings.MaxInputBytes)
	if err != nil {
		return err
	}
	second, err := batch.ReadInput(c.second, settings.MaxInputBytes)
	if err != nil {
		return err
	}

	outDir := settings.OutputDir
	if c.outDir != "" {
		outDir = c.outDir
	}
	store, session, err := storage.NewSessionStore(outDir, c.session)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.WithStore(store), engine.WithLogger(log), engine.WithOptions(opts))
	if err != nil {
		return err
	}

	res, err := eng.Compare(first, second)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	path := store.Path(res.ComparisonImage)
	size := "unknown size"
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	fmt.Fprintln(out, res.Message)
	fmt.Fprintf(out, "Regions: %d\n", len(res.Regions))
	fmt.Fprintf(out, "Artifact: %s (%s)\n", path, size)
	fmt.Fprintf(out, "Session: %s\n", session)
	return nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
