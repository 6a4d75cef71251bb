package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wyniki-crawler/cmd/wyniki-crawler/globals"
	"wyniki-crawler/cmd/wyniki-crawler/utils"
	"wyniki-crawler/internal/components/chrono"
	"wyniki-crawler/internal/manifest"
	"wyniki-crawler/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runLimit int

var errNoManifest = errors.New("no manifest configured, set manifest in the config or pass --manifest")

func init() {
	manifestCmd.Flags().IntVar(&runLimit, "limit", 20, "how many runs to show")
	manifestCmd.Flags().StringVar(&manifestPath, "manifest", "", "sqlite manifest path, overrides manifest")
	rootCmd.AddCommand(manifestCmd)
}

var manifestCmd = &cobra.Command{
	Use:   "manifest [run id]",
	Short: "Show recorded runs, or the artifacts of one run.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globals.Get(cmd.Context()).Config
		path := cfg.Manifest
		if manifestPath != "" {
			path = manifestPath
		}
		if path == "" {
			return errNoManifest
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := manifest.Open(ctx, path, chrono.NewStandardTime())
		if err != nil {
			return fmt.Errorf("open manifest: %w", err)
		}
		defer store.Close()

		if len(args) == 0 {
			return listRuns(ctx, store)
		}
		return listArtifacts(ctx, store, args[0])
	},
}

func listRuns(ctx context.Context, store manifest.Store) error {
	runs, err := store.Runs(ctx, runLimit)
	if err != nil {
		return fmt.Errorf("read runs: %w", err)
	}

	t := utils.NewTable()
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Orders", "Saved", "Skipped", "Failed", "State"})
	for _, run := range runs {
		duration := ""
		state := "unfinished"
		if run.Finalized {
			duration = run.Finished.Sub(run.Started).String()
			state = "completed"
			switch {
			case run.Stopped:
				state = "stopped"
			case run.EnumerationErr != "":
				state = "partial listing"
			}
		}
		t.AppendRow(table.Row{
			run.Id,
			timezone.In(run.Started).Format(time.DateTime),
			duration,
			fmt.Sprintf("%d/%d", run.ItemsProcessed, run.ItemsFound),
			run.Saved,
			run.Skipped,
			run.Failed,
			state,
		})
	}
	t.Render()
	return nil
}

func listArtifacts(ctx context.Context, store manifest.Store, runId string) error {
	run, err := store.Run(ctx, runId)
	if err != nil {
		return fmt.Errorf("read run: %w", err)
	}
	artifacts, err := store.Artifacts(ctx, run.Id)
	if err != nil {
		return fmt.Errorf("read artifacts: %w", err)
	}

	t := utils.NewTable()
	t.AppendHeader(table.Row{"Order", "Category", "File", "Size", "Status", "Error"})
	for _, artifact := range artifacts {
		size := ""
		if artifact.Status == "saved" {
			size = utils.HumanSize(artifact.Size)
		}
		t.AppendRow(table.Row{
			artifact.Identifier,
			artifact.Category,
			artifact.FileName,
			size,
			artifact.Status,
			artifact.Error,
		})
	}
	t.Render()
	return nil
}
