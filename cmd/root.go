package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/evidence/internal/aggregate"
	"github.com/joescharf/evidence/internal/capture"
	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/output"
	"github.com/joescharf/evidence/internal/store"
	"github.com/joescharf/evidence/internal/tracker/jira"
	"github.com/joescharf/evidence/internal/tracker/redmine"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	appLog    *slog.Logger

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Monthly work evidence from Jira and Redmine",
	Long: `evidence collects the Jira and Redmine issues a user worked on in a month,
captures a screenshot of each one and writes a dated .docx evidence document.
It can repeat the process for every month of a year and keep a local copy of
Redmine issues in sync.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/evidence/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "evidence"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("EVIDENCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "evidence"), home)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every configuration key with its default.
func setDefaults(stateDir, home string) {
	viper.SetDefault("state_dir", stateDir)

	viper.SetDefault("db.driver", store.DriverSQLite)
	viper.SetDefault("db_path", filepath.Join(stateDir, "evidence.db"))
	viper.SetDefault("db.dsn", "")

	viper.SetDefault("jira.base_url", "")
	viper.SetDefault("jira.search_endpoint", jira.DefaultSearchEndpoint)
	viper.SetDefault("jira.jql_template", jira.DefaultJQLTemplate)
	viper.SetDefault("jira.max_results", jira.DefaultMaxResults)
	viper.SetDefault("jira.timeout", "5s")

	viper.SetDefault("redmine.base_url", "")
	viper.SetDefault("redmine.issues_endpoint", redmine.DefaultIssuesEndpoint)
	viper.SetDefault("redmine.page_size", redmine.DefaultPageSize)
	viper.SetDefault("redmine.status_id", redmine.DefaultStatusID)
	viper.SetDefault("redmine.timeout", "5s")

	viper.SetDefault("aggregate.fallback_mode", string(aggregate.FallbackLegacy))

	viper.SetDefault("evidence.output_dir", filepath.Join(home, "Evidencias"))
	viper.SetDefault("evidence.role", "")

	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.exec_path", "")
	viper.SetDefault("browser.redmine_scroll_offset", capture.DefaultRedmineScrollY)

	viper.SetDefault("sync.cron", "")

	viper.SetDefault("artifact.gcs_bucket", "")
	viper.SetDefault("artifact.gcs_prefix", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(stateDir, "evidence.log"))
	viper.SetDefault("log.console", false)

	viper.SetDefault("auth.username", "")
	viper.SetDefault("auth.password", "")

	viper.SetDefault("port", 8080)
	viper.SetDefault("api.cors_origins", []string{})
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	appLog = newLogger()

	// Store is opened lazily so config/version run without a database.
}

func newLogger() *slog.Logger {
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	return logger.New(logger.Config{
		Level:      level,
		File:       viper.GetString("log.file"),
		Console:    viper.GetBool("log.console"),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := store.Open(ctx, store.Config{
		Driver: viper.GetString("db.driver"),
		Path:   viper.GetString("db_path"),
		DSN:    viper.GetString("db.dsn"),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}
