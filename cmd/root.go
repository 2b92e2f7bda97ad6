package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/projectops/internal/archive"
	"github.com/joescharf/projectops/internal/auth"
	"github.com/joescharf/projectops/internal/backup"
	"github.com/joescharf/projectops/internal/output"
	"github.com/joescharf/projectops/internal/snapshot"
	"github.com/joescharf/projectops/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

// Build metadata, set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "projectops",
	Short: "Project Ops - track projects and back them up to Google Drive",
	Long: `projectops keeps a personal catalog of software projects with their
issues, credentials, team members and goals. It serves a JSON API for the
web dashboard, exposes MCP tools, and exports project snapshots to a
Google Drive backup folder.`,
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

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/projectops/config.yaml)")
}

func initConfig() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PROJECTOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default, rooted at dir.
func setDefaults(dir string) {
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "projectops.db"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("web_dir", "")

	viper.SetDefault("auth.username", "")
	viper.SetDefault("auth.password", "")
	viper.SetDefault("auth.session_ttl", auth.DefaultTTL)
	viper.SetDefault("auth.secure_cookies", false)

	viper.SetDefault("archive.root_folder", archive.DefaultRootFolder)
	viper.SetDefault("archive.timeout", archive.DefaultTimeout)
	viper.SetDefault("archive.access_token", "")
	viper.SetDefault("archive.credentials_file", "")
	viper.SetDefault("archive.connector_url", "")
	viper.SetDefault("archive.connector_token", "")
	viper.SetDefault("archive.connector_header", archive.DefaultConnectorHeader)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// rootRun handles bare `projectops`: list projects when a database exists,
// otherwise print help.
func rootRun(cmd *cobra.Command) error {
	if _, err := os.Stat(viper.GetString("db_path")); err != nil {
		return cmd.Help()
	}
	return projectListRun("")
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// tokenProvider picks the archive credential source from config. A
// credentials file wins over a connector, which wins over a static token.
func tokenProvider(ctx context.Context) (archive.TokenProvider, error) {
	if path := viper.GetString("archive.credentials_file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read archive credentials: %v", archive.ErrNotConnected, err)
		}
		return archive.NewServiceAccountTokenProvider(ctx, data)
	}
	if url := viper.GetString("archive.connector_url"); url != "" {
		return &archive.ConnectorTokenProvider{
			URL:      url,
			Identity: viper.GetString("archive.connector_token"),
			Header:   viper.GetString("archive.connector_header"),
		}, nil
	}
	return archive.StaticTokenProvider{AccessToken: viper.GetString("archive.access_token")}, nil
}

// archiveFunc builds the remote archive, replaceable in tests.
var archiveFunc = defaultArchive

// Unusable credentials do not stop startup; backup calls fail with
// ErrNotConnected instead.
func defaultArchive(ctx context.Context) (backup.Archive, error) {
	tokens, err := tokenProvider(ctx)
	if err != nil {
		slog.Warn("archive credentials unusable, backups will fail", "error", err)
		tokens = archive.UnavailableTokenProvider{Err: err}
	}
	return archive.New(archive.NewDriveRemote(tokens), archive.Options{
		RootFolder: viper.GetString("archive.root_folder"),
		Timeout:    viper.GetDuration("archive.timeout"),
	}), nil
}

// newBackupService wires the store and the configured archive together.
func newBackupService(ctx context.Context) (*backup.Service, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	a, err := archiveFunc(ctx)
	if err != nil {
		return nil, err
	}
	return backup.NewService(snapshot.FromStore(s), a, time.Now), nil
}
