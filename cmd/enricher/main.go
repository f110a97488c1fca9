package main

import (
	"fmt"
	"os"

	"github.com/palantir/product-attribute-enrichment/internal/app"
	"github.com/palantir/product-attribute-enrichment/internal/config"
	"github.com/palantir/product-attribute-enrichment/internal/version"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/redact"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cli holds state shared by every subcommand once the root pre-run has loaded
// configuration and built the logger.
type cli struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"store":            "store.path",
	"workers":          "pipeline.workers",
	"max-retries":      "pipeline.max_retries",
	"request-timeout":  "pipeline.request_timeout",
	"rate-limit-rps":   "pipeline.rate_limit_rps",
	"gemini-base-url":  "gemini.base_url",
	"search-model":     "gemini.search_model",
	"extraction-model": "gemini.extraction_model",
	"capture-audit":    "gemini.capture_audit",
	"addr":             "server.addr",
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "enricher",
		Short:         "Fill in missing product attributes from web search and product images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.init(cmd.Flags())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "Config file (default: enricher.yaml in ., ./config, /etc/enricher/)")
	root.PersistentFlags().String("log-level", "info", "Log level (env: ENRICHER_LOG_LEVEL)")
	root.PersistentFlags().String("log-format", "json", "Log format: json or console (env: ENRICHER_LOG_FORMAT)")
	root.PersistentFlags().String("store", "enricher.db", "SQLite product store path (env: ENRICHER_STORE_PATH)")

	root.AddCommand(newRunCmd(c), newServeCmd(c), newVersionCmd())
	return root
}

// addPipelineFlags registers the flags shared by commands that call Gemini.
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.Int("workers", 4, "Number of concurrent product workers (env: ENRICHER_PIPELINE_WORKERS)")
	fs.Int("max-retries", 0, "Max retries per product for transient failures (env: ENRICHER_PIPELINE_MAX_RETRIES)")
	fs.Duration("request-timeout", 0, "Per-call model timeout (env: ENRICHER_PIPELINE_REQUEST_TIMEOUT)")
	fs.Float64("rate-limit-rps", 0, "Global product rate limit (RPS), 0 disables (env: ENRICHER_PIPELINE_RATE_LIMIT_RPS)")
	fs.String("gemini-base-url", "", "Gemini API base URL override (env: ENRICHER_GEMINI_BASE_URL)")
	fs.String("search-model", "", "Gemini model for grounded search (env: ENRICHER_GEMINI_SEARCH_MODEL)")
	fs.String("extraction-model", "", "Gemini model for extraction (env: ENRICHER_GEMINI_EXTRACTION_MODEL)")
	fs.Bool("capture-audit", false, "Keep grounding sources/queries on outcomes (env: ENRICHER_GEMINI_CAPTURE_AUDIT)")
}

func (c *cli) init(fs *pflag.FlagSet) error {
	c.v = config.New(c.cfgFile)
	for name, key := range flagKeys {
		// Only explicitly set flags override file and environment values.
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := c.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(c.v)
	if err != nil {
		return fmt.Errorf("config error: %s", redact.Secrets(err.Error()))
	}
	c.cfg = cfg

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the enricher version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, redact.Secrets(err.Error()))
		os.Exit(1)
	}
}
