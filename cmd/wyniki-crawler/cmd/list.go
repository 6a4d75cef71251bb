package cmd

import (
	"fmt"
	"wyniki-crawler/cmd/wyniki-crawler/globals"
	"wyniki-crawler/cmd/wyniki-crawler/utils"
	"wyniki-crawler/internal/crawl"
	"wyniki-crawler/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	listCmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Log in and list every order without downloading anything.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		cfg := value.Config
		if headless {
			cfg.Headless = true
		}

		ctx := osutil.SignalContext()
		chrome, err := openSession(ctx, cfg, value.Tel)
		if err != nil {
			return fmt.Errorf("log in: %w", err)
		}
		defer chrome.Close()

		enumerator, err := crawl.NewEnumerator(chrome, cfg.Enumerator(), value.Tel)
		if err != nil {
			return fmt.Errorf("invalid listing configuration: %w", err)
		}
		result, err := enumerator.Enumerate(ctx)

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Page", "#", "Order"})
		for _, ref := range result.Items {
			t.AppendRow(table.Row{ref.Page, ref.Index, ref.Url})
		}
		t.Render()

		if err != nil {
			return fmt.Errorf("listing incomplete: %w", err)
		}
		fmt.Printf("%d orders on %d pages\n", len(result.Items), result.Pages)
		return nil
	},
}
