package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/BTreeMap/IntakeRelay/internal/admin"
	"github.com/BTreeMap/IntakeRelay/internal/api"
	"github.com/BTreeMap/IntakeRelay/internal/flow"
	"github.com/BTreeMap/IntakeRelay/internal/ledger"
	"github.com/BTreeMap/IntakeRelay/internal/lockfile"
	"github.com/BTreeMap/IntakeRelay/internal/messaging"
	"github.com/BTreeMap/IntakeRelay/internal/scheduler"
	"github.com/BTreeMap/IntakeRelay/internal/session"
	"github.com/BTreeMap/IntakeRelay/internal/store"
	"github.com/BTreeMap/IntakeRelay/internal/twiliowhatsapp"
	"github.com/BTreeMap/IntakeRelay/internal/util"
	"github.com/BTreeMap/IntakeRelay/internal/validation"
	"github.com/BTreeMap/IntakeRelay/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for IntakeRelay state data
	DefaultStateDir = "/var/lib/intakerelay"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "intakerelay.db"
	// BackendWhatsmeow selects the device-paired WhatsApp transport
	BackendWhatsmeow = "whatsmeow"
	// BackendTwilio selects the Twilio REST transport
	BackendTwilio = "twilio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping IntakeRelay with configured modules")
	if err := run(config, flags); err != nil {
		slog.Error("IntakeRelay failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("IntakeRelay exited successfully")
}

// Config holds environment configuration
type Config struct {
	WhatsAppDSN  string
	DatabaseURL  string
	StateDir     string
	AdminID      string
	APIAddr      string
	Backend      string
	DigestCron   string
	PhonePrefix  string
	PhoneDigits  int
	PhoneLenient bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput   *string
	numeric    *bool
	stateDir   *string
	dbDSN      *string
	adminID    *string
	apiAddr    *string
	backend    *string
	digestCron *string
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

	config := Config{
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("INTAKERELAY_STATE_DIR"),
		AdminID:      os.Getenv("ADMIN_CHAT_ID"),
		APIAddr:      os.Getenv("API_ADDR"),
		Backend:      os.Getenv("MESSAGING_BACKEND"),
		DigestCron:   os.Getenv("DIGEST_SCHEDULE"),
		PhonePrefix:  util.EnvOrDefault("PHONE_PREFIX", validation.DefaultPhoneRule.Prefix),
		PhoneDigits:  util.ParseIntEnv("PHONE_DIGITS", validation.DefaultPhoneRule.Digits),
		PhoneLenient: util.ParseBoolEnv("PHONE_LENIENT", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No INTAKERELAY_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Backend == "" {
		config.Backend = BackendWhatsmeow
	}

	// Fall back from the dedicated store DSN to the shared one, then to
	// SQLite in the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = config.WhatsAppDSN
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"INTAKERELAY_STATE_DIR", config.StateDir,
		"ADMIN_CHAT_ID_SET", config.AdminID != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend,
		"DIGEST_SCHEDULE", config.DigestCron,
		"PHONE_LENIENT", config.PhoneLenient)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:   flag.String("qr-output", "", "path to write login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for IntakeRelay data (overrides $INTAKERELAY_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the submission store (overrides $DATABASE_URL)"),
		adminID:    flag.String("admin-id", config.AdminID, "administrator chat identity (overrides $ADMIN_CHAT_ID)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		backend:    flag.String("backend", config.Backend, "messaging backend: whatsmeow or twilio (overrides $MESSAGING_BACKEND)"),
		digestCron: flag.String("digest-cron", config.DigestCron, "cron schedule for the unprocessed digest (overrides $DIGEST_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"adminID_set", *flags.adminID != "",
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend,
		"digestCron", *flags.digestCron)

	// Keep the default SQLite path in step with a relocated state directory.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildWhatsAppOptions constructs WhatsApp client configuration options
func buildWhatsAppOptions(config Config, flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if config.WhatsAppDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(config.WhatsAppDSN))
	}
	return waOpts
}

// buildMessagingService selects and constructs the messaging backend.
func buildMessagingService(config Config, flags Flags) (messaging.Service, error) {
	switch *flags.backend {
	case BackendTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case BackendWhatsmeow:
		client, err := whatsapp.NewClient(buildWhatsAppOptions(config, flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown messaging backend %q", *flags.backend)
	}
}

// run wires the modules together and blocks until shutdown.
func run(config Config, flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.NewStore(buildStoreOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to open submission store: %w", err)
	}
	defer st.Close()

	lg := ledger.New(st)

	svc, err := buildMessagingService(config, flags)
	if err != nil {
		return err
	}

	phoneRule := validation.PhoneRule{
		Prefix:  config.PhonePrefix,
		Digits:  config.PhoneDigits,
		Lenient: config.PhoneLenient,
	}

	adminID := canonicalAdminID(svc, *flags.adminID)
	sessions := session.NewStore()
	dialogue := flow.NewController(sessions, svc, lg, adminID, phoneRule)

	var commands messaging.CommandHandler
	if adminID != "" {
		commands = admin.NewController(lg, svc, adminID)
	} else {
		slog.Warn("run: no administrator identity configured, operator commands disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer svc.Stop()

	dispatcher := messaging.NewDispatcher(svc, commands, dialogue)
	go dispatcher.Run(ctx)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(lg, apiOpts...)
	if twilioSvc, ok := svc.(*messaging.TwilioService); ok {
		server.MountWebhook("/twilio/webhook", twilioSvc.WebhookHandler)
	}
	server.Start()
	defer server.Stop()

	var sched *scheduler.Scheduler
	if *flags.digestCron != "" && adminID != "" {
		sched = scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.AddJob(*flags.digestCron, scheduler.DigestJob(lg, svc, adminID)); err != nil {
			return fmt.Errorf("invalid digest schedule %q: %w", *flags.digestCron, err)
		}
		slog.Info("run: digest scheduled", "cron", *flags.digestCron)
	}

	slog.Info("run: IntakeRelay is up", "backend", *flags.backend, "admin_set", adminID != "")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	slog.Info("run: shutdown signal received", "signal", received.String())
	cancel()
	return nil
}

// canonicalAdminID normalizes the configured admin identity with the
// same rule applied to inbound senders, so comparisons line up.
func canonicalAdminID(svc messaging.Service, raw string) string {
	if raw == "" {
		return ""
	}
	canonical, err := svc.ValidateAndCanonicalizeRecipient(raw)
	if err != nil {
		slog.Error("canonicalAdminID: invalid administrator identity, operator commands disabled", "error", err)
		return ""
	}
	return canonical
}
