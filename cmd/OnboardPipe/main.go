package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/OnboardPipe/internal/config"
	"github.com/BTreeMap/OnboardPipe/internal/docfetch"
	"github.com/BTreeMap/OnboardPipe/internal/flow"
	"github.com/BTreeMap/OnboardPipe/internal/genai"
	"github.com/BTreeMap/OnboardPipe/internal/lockfile"
	"github.com/BTreeMap/OnboardPipe/internal/slackbot"
	"github.com/BTreeMap/OnboardPipe/internal/store"
	"github.com/BTreeMap/OnboardPipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for OnboardPipe state data
	DefaultStateDir = "/var/lib/onboardpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "onboardpipe.db"
	// DefaultConfigDir is the default directory for the YAML team/channel/error maps
	DefaultConfigDir = "config"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	envCfg := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(envCfg)

	// Hold the state directory lock for the lifetime of the process.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping OnboardPipe with configured modules")
	if err := run(flags); err != nil {
		slog.Error("OnboardPipe failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("OnboardPipe exited successfully")
}

// run wires the modules together and serves until interrupted.
func run(flags Flags) error {
	cfg, err := config.Load(*flags.configDir)
	if err != nil {
		return err
	}

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	fetcher := docfetch.NewFetcher(buildFetcherOptions(flags)...)

	bot, err := slackbot.NewBot(slackbot.BotConfig{
		BotToken:      *flags.slackBotToken,
		AppToken:      *flags.slackAppToken,
		SyncChannelID: *flags.syncChannelID,
		Debug:         *flags.slackDebug,
	})
	if err != nil {
		return err
	}

	// The bot serves as both the engine's messenger and its workspace view,
	// so the engine is attached after the bot exists.
	states := flow.NewStoreBasedStateManager(st)
	bot.SetEngine(flow.NewEngine(states, bot, bot, genaiClient, fetcher, cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return bot.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	SlackBotToken  string
	SlackAppToken  string
	SyncChannelID  string
	OpenAIKey      string
	AtlassianEmail string
	AtlassianToken string
	ConfluenceURL  string
	GoogleCreds    string
	DatabaseURL    string
	StateDir       string
	ConfigDir      string
	SlackDebug     bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	configDir      *string
	dbDSN          *string
	slackBotToken  *string
	slackAppToken  *string
	syncChannelID  *string
	openaiKey      *string
	atlassianEmail *string
	atlassianToken *string
	confluenceURL  *string
	googleCreds    *string
	slackDebug     *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	envCfg := Config{
		SlackBotToken:  os.Getenv("SLACK_BOT_TOKEN"),
		SlackAppToken:  os.Getenv("SLACK_APP_TOKEN"),
		SyncChannelID:  os.Getenv("SYNC_CHANNEL_ID"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		AtlassianEmail: os.Getenv("ATLASSIAN_EMAIL"),
		AtlassianToken: os.Getenv("ATLASSIAN_API_TOKEN"),
		ConfluenceURL:  os.Getenv("CONFLUENCE_BASE_URL"),
		GoogleCreds:    os.Getenv("GOOGLE_CREDENTIALS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("ONBOARDPIPE_STATE_DIR"),
		ConfigDir:      os.Getenv("ONBOARDPIPE_CONFIG_DIR"),
		SlackDebug:     util.ParseBoolEnv("SLACK_DEBUG", false),
	}

	if envCfg.StateDir == "" {
		envCfg.StateDir = DefaultStateDir
		slog.Debug("No ONBOARDPIPE_STATE_DIR set, using default", "default_state_dir", envCfg.StateDir)
	}
	if envCfg.ConfigDir == "" {
		envCfg.ConfigDir = DefaultConfigDir
		slog.Debug("No ONBOARDPIPE_CONFIG_DIR set, using default", "default_config_dir", envCfg.ConfigDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if envCfg.DatabaseURL == "" {
		envCfg.DatabaseURL = filepath.Join(envCfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", envCfg.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"SLACK_BOT_TOKEN_SET", envCfg.SlackBotToken != "",
		"SLACK_APP_TOKEN_SET", envCfg.SlackAppToken != "",
		"SYNC_CHANNEL_ID", envCfg.SyncChannelID,
		"OPENAI_API_KEY_SET", envCfg.OpenAIKey != "",
		"ATLASSIAN_EMAIL_SET", envCfg.AtlassianEmail != "",
		"ATLASSIAN_API_TOKEN_SET", envCfg.AtlassianToken != "",
		"CONFLUENCE_BASE_URL", envCfg.ConfluenceURL,
		"GOOGLE_CREDENTIALS_PATH", envCfg.GoogleCreds,
		"DATABASE_URL_SET", envCfg.DatabaseURL != "",
		"ONBOARDPIPE_STATE_DIR", envCfg.StateDir,
		"ONBOARDPIPE_CONFIG_DIR", envCfg.ConfigDir,
		"SLACK_DEBUG", envCfg.SlackDebug)

	return envCfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(envCfg Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", envCfg.StateDir, "state directory for OnboardPipe data (overrides $ONBOARDPIPE_STATE_DIR)"),
		configDir:      flag.String("config-dir", envCfg.ConfigDir, "directory with team, channel, error and resource YAML maps (overrides $ONBOARDPIPE_CONFIG_DIR)"),
		dbDSN:          flag.String("db-dsn", envCfg.DatabaseURL, "database DSN for the state store (overrides $DATABASE_URL)"),
		slackBotToken:  flag.String("slack-bot-token", envCfg.SlackBotToken, "Slack bot token (overrides $SLACK_BOT_TOKEN)"),
		slackAppToken:  flag.String("slack-app-token", envCfg.SlackAppToken, "Slack app-level token for Socket Mode (overrides $SLACK_APP_TOKEN)"),
		syncChannelID:  flag.String("sync-channel-id", envCfg.SyncChannelID, "channel or user that receives the sync button (overrides $SYNC_CHANNEL_ID)"),
		openaiKey:      flag.String("openai-api-key", envCfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		atlassianEmail: flag.String("atlassian-email", envCfg.AtlassianEmail, "Atlassian account email for Confluence access (overrides $ATLASSIAN_EMAIL)"),
		atlassianToken: flag.String("atlassian-api-token", envCfg.AtlassianToken, "Atlassian API token for Confluence access (overrides $ATLASSIAN_API_TOKEN)"),
		confluenceURL:  flag.String("confluence-base-url", envCfg.ConfluenceURL, "Confluence site base URL (overrides $CONFLUENCE_BASE_URL)"),
		googleCreds:    flag.String("google-credentials", envCfg.GoogleCreds, "path to Google API credentials JSON (overrides $GOOGLE_CREDENTIALS_PATH)"),
		slackDebug:     flag.Bool("slack-debug", envCfg.SlackDebug, "enable slack-go debug logging (overrides $SLACK_DEBUG)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"configDir", *flags.configDir,
		"dbDSN_set", *flags.dbDSN != "",
		"slackBotTokenSet", *flags.slackBotToken != "",
		"slackAppTokenSet", *flags.slackAppToken != "",
		"syncChannelID", *flags.syncChannelID,
		"openaiKeySet", *flags.openaiKey != "",
		"confluenceURL", *flags.confluenceURL,
		"slackDebug", *flags.slackDebug)

	// Follow the state directory when the DSN was defaulted from it
	if *flags.dbDSN == envCfg.DatabaseURL && envCfg.DatabaseURL == filepath.Join(envCfg.StateDir, DefaultDBFileName) && *flags.stateDir != envCfg.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", envCfg.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// openStore selects a store backend based on the DSN
func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}

	// Assume SQLite for file paths and make sure its directory exists
	if !strings.Contains(dsn, "://") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, err
		}
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	return opts
}

// buildFetcherOptions constructs document fetcher configuration options
func buildFetcherOptions(flags Flags) []docfetch.Option {
	var opts []docfetch.Option
	if *flags.confluenceURL != "" {
		opts = append(opts, docfetch.WithConfluenceBaseURL(*flags.confluenceURL))
	}
	if *flags.atlassianEmail != "" && *flags.atlassianToken != "" {
		opts = append(opts, docfetch.WithConfluenceAuth(*flags.atlassianEmail, *flags.atlassianToken))
	}
	if *flags.googleCreds != "" {
		opts = append(opts, docfetch.WithGoogleCredentials(*flags.googleCreds))
	}
	return opts
}
