package main

import (
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/config"
	"github.com/JonMunkholm/worldview/internal/logging"
	"github.com/JonMunkholm/worldview/internal/restcountries"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg *config.Config

	logLevel   string
	sourceFile string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "worldview",
		Short: "Browse the countries of the world",
		Long: `worldview serves a searchable, region-filterable directory of countries
fetched from the REST Countries API, or prints a page of it to the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.sourceFile, "source-file", "", "read countries from a .json or .json.gz file instead of the API")

	cmd.AddCommand(
		newServeCmd(a),
		newBrowseCmd(a),
	)
	return cmd
}

// init loads configuration with flags layered over the environment, then
// sets up logging.
func (a *app) init() error {
	cfg, err := config.LoadFrom(a.lookupEnv)
	if err != nil {
		return errors.Errorf("loading configuration: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	return nil
}

// lookupEnv answers set flags first and falls back to the environment, so
// flag values go through the same parsing and validation as variables.
func (a *app) lookupEnv(name string) (string, bool) {
	overrides := map[string]string{
		"LOG_LEVEL":   a.logLevel,
		"SOURCE_FILE": a.sourceFile,
	}
	if v := overrides[name]; v != "" {
		return v, true
	}
	return os.LookupEnv(name)
}

func (a *app) fetcher() restcountries.Fetcher {
	return restcountries.New(restcountries.SourceConfig{
		URL:     a.cfg.Source.URL,
		File:    a.cfg.Source.File,
		Timeout: a.cfg.Source.Timeout,
	})
}
