// Command patentscout searches Google Patents through SerpAPI, enriches each
// hit from its patent page and reports the most frequent assignees and
// inventors, on the command line or through a web UI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/FranksOps/patentscout/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// v holds the merged configuration sources for every command.
var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "patentscout",
	Short: "Search, enrich and summarize patents",
	Long: `patentscout queries Google Patents through SerpAPI, fetches every result's
patent page to recover its full title and abstract, and summarizes the top
assignees and inventors. Reports can be printed, exported as Word documents
and browsed through a small web UI.

The SerpAPI key is read from PATENTSCOUT_API_KEY, the API environment
variable or api_key in patentscout.yaml.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./patentscout.yaml or ~/.config/patentscout/patentscout.yaml)")
	pf.String("env-file", ".env", "dotenv file to export before reading the environment")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")

	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log.format", pf.Lookup("log-format"))
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "path", used)
	}
	return cfg, logger, nil
}

func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch lc.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
