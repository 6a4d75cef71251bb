package cmd

import (
	"fmt"
	"wyniki-crawler/cmd/wyniki-crawler/globals"
	"wyniki-crawler/internal/components/telemetry"
	"wyniki-crawler/internal/config"
	"wyniki-crawler/lib/configutil"
	"wyniki-crawler/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "wyniki-crawler",
	Short: "wyniki-crawler downloads the result files of every order on wyniki.diag.pl.",
	// errors are reported once by Execute
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		err := configutil.LoadEnv(envPath)
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		cmd.SetContext(globals.Set(cmd.Context(), &globals.Value{
			Config: cfg,
			Tel:    telemetry.SlogAPI{},
		}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "dotenv file holding WYNIKI_USERNAME and WYNIKI_PASSWORD")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
}

// Execute exits only once the command has returned, so its deferred cleanup has run.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		serviceutil.Fatal("wyniki-crawler failed", err)
	}
}
