package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdp/qrterminal/v3"

	"github.com/BTreeMap/Parabola/internal/api"
	"github.com/BTreeMap/Parabola/internal/companion"
	"github.com/BTreeMap/Parabola/internal/genai"
	"github.com/BTreeMap/Parabola/internal/lockfile"
	"github.com/BTreeMap/Parabola/internal/store"
	"github.com/BTreeMap/Parabola/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Parabola state data
	DefaultStateDir = "/var/lib/parabola"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "parabola.db"
)

// logLevel is raised to debug once flags are parsed.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	initializeLogger()

	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(config, args)
	if err != nil {
		return 2
	}
	if *flags.debug {
		logLevel.Set(slog.LevelDebug)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		return 1
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir, *flags.apiAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer lock.Release()

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	if *flags.printQR {
		printAPIQRCode(os.Stdout, *flags.apiAddr)
	}

	slog.Info("Bootstrapping Parabola with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("Parabola failed to run", "error", err)
		return 1
	}
	slog.Info("Parabola exited successfully")
	return 0
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	APIAddr       string
	GenAIProvider string
	GenAIModel    string
	GeminiKey     string
	OpenAIKey     string
	MaxRetries    int
	BaseDelay     time.Duration
	Debug         bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	apiAddr       *string
	genaiProvider *string
	genaiModel    *string
	geminiKey     *string
	openaiKey     *string
	maxRetries    *int
	baseDelay     *time.Duration
	focusPreset   *string
	debug         *bool
	printQR       *bool
}

// initializeLogger sets up structured logging; the level starts at info.
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      util.GetEnvDefault("PARABOLA_STATE_DIR", DefaultStateDir),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		APIAddr:       util.GetEnvDefault("API_ADDR", api.DefaultAddr),
		GenAIProvider: util.GetEnvDefault("GENAI_PROVIDER", genai.ProviderGemini),
		GenAIModel:    os.Getenv("GENAI_MODEL"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		MaxRetries:    util.ParseIntEnv("GENAI_MAX_RETRIES", genai.DefaultMaxRetries),
		BaseDelay:     util.ParseDurationEnv("GENAI_BASE_DELAY", genai.DefaultBaseDelay),
		Debug:         util.ParseBoolEnv("PARABOLA_DEBUG", false),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"PARABOLA_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"GENAI_PROVIDER", config.GenAIProvider,
		"GENAI_MODEL", config.GenAIModel,
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GENAI_MAX_RETRIES", config.MaxRetries,
		"GENAI_BASE_DELAY", config.BaseDelay)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	fs := flag.NewFlagSet("parabola", flag.ContinueOnError)
	flags := Flags{
		stateDir:      fs.String("state-dir", config.StateDir, "state directory for Parabola data (overrides $PARABOLA_STATE_DIR)"),
		dbDSN:         fs.String("db-dsn", config.DatabaseURL, "SQLite path or Postgres DSN for session history (overrides $DATABASE_URL)"),
		apiAddr:       fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		genaiProvider: fs.String("genai-provider", config.GenAIProvider, "text generation backend: gemini or openai (overrides $GENAI_PROVIDER)"),
		genaiModel:    fs.String("genai-model", config.GenAIModel, "model name (overrides $GENAI_MODEL)"),
		geminiKey:     fs.String("gemini-api-key", config.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)"),
		openaiKey:     fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		maxRetries:    fs.Int("genai-max-retries", config.MaxRetries, "retries after a rate-limited request (overrides $GENAI_MAX_RETRIES)"),
		baseDelay:     fs.Duration("genai-base-delay", config.BaseDelay, "wait before the first retry, doubled each retry (overrides $GENAI_BASE_DELAY)"),
		focusPreset:   fs.String("focus-preset", companion.DefaultPreset, "initial focus preset: 25/5, 50/10 or 90/20"),
		debug:         fs.Bool("debug", config.Debug, "enable debug logging and GenAI debug files (overrides $PARABOLA_DEBUG)"),
		printQR:       fs.Bool("print-qr", false, "print a QR code of the API URL on startup"),
	}

	if err := fs.Parse(args); err != nil {
		return flags, err
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"genaiProvider", *flags.genaiProvider,
		"geminiKeySet", *flags.geminiKey != "",
		"openaiKeySet", *flags.openaiKey != "",
		"focusPreset", *flags.focusPreset)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags, nil
}

// ensureDirectoriesExist creates the state directory and, for a file-based
// DSN, the database directory.
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{*flags.stateDir}
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == store.DSNTypeSQLite {
		dirs = append(dirs, filepath.Dir(*flags.dbDSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == store.DSNTypePostgres {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options. The API key is
// taken from the flag matching the selected provider.
func buildGenAIOptions(flags Flags) []genai.Option {
	provider := strings.ToLower(strings.TrimSpace(*flags.genaiProvider))
	genaiOpts := []genai.Option{
		genai.WithProvider(provider),
		genai.WithMaxRetries(*flags.maxRetries),
		genai.WithBaseDelay(*flags.baseDelay),
	}
	key := *flags.geminiKey
	if provider == genai.ProviderOpenAI {
		key = *flags.openaiKey
	}
	if key != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(key))
	}
	if *flags.genaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.genaiModel))
	}
	if *flags.debug {
		genaiOpts = append(genaiOpts, genai.WithDebugDir(*flags.stateDir))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.focusPreset != "" {
		apiOpts = append(apiOpts, api.WithPreset(*flags.focusPreset))
	}
	return apiOpts
}

// apiURL turns a listen address into a URL a phone on the same network can
// open. Wildcard hosts are replaced by the first non-loopback IPv4 address.
func apiURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = outboundIPv4()
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func outboundIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return "localhost"
}

func printAPIQRCode(w io.Writer, addr string) {
	url := apiURL(addr)
	fmt.Fprintf(w, "Parabola API: %s\n", url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
}
