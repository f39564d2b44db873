package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicworks/remedy/agent"
	"github.com/civicworks/remedy/config"
	"github.com/civicworks/remedy/db"
	"github.com/civicworks/remedy/executor"
	"github.com/civicworks/remedy/logger"
	"github.com/civicworks/remedy/mailbox"
	"github.com/civicworks/remedy/mailer"
	"github.com/civicworks/remedy/server/httpapi"
)

func main() {
	// Initialize with application defaults
	cfg := config.NewDefaultConfig()

	// --- Define Command-Line Flags ---
	// These flags will override values from the config file if set.
	// Their default values are set from the initial `cfg` for consistent -help messages.

	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")

	// Logging flags
	fLogOutput := flag.String("logoutput", cfg.Logging.Output, "Log output: 'stdout', 'stderr', or a file path (overrides config)")
	fLogFormat := flag.String("logformat", cfg.Logging.Format, "Log format: 'console' or 'json' (overrides config)")
	fLogLevel := flag.String("loglevel", cfg.Logging.Level, "Log level: debug, info, warn, error (overrides config)")

	// Mail account flags
	fMailUsername := flag.String("mailusername", cfg.Mail.Username, "Mail account address (overrides config)")
	fMailPassword := flag.String("mailpassword", cfg.Mail.Password, "Mail account app password (overrides config)")
	fMailRecipient := flag.String("mailrecipient", cfg.Mail.Recipient, "Notification recipient address (overrides config)")
	fSMTPHost := flag.String("smtphost", cfg.Mail.SMTPHost, "SMTP submission host:port (overrides config)")
	fIMAPHost := flag.String("imaphost", cfg.Mail.IMAPHost, "IMAP host:port (overrides config)")
	fIMAPMailbox := flag.String("imapmailbox", cfg.Mail.IMAPMailbox, "Mailbox scanned for replies (overrides config)")

	// Database flags
	fDbURI := flag.String("dburi", cfg.Database.URI, "Document store connection URI (overrides config)")
	fDbName := flag.String("dbname", cfg.Database.Name, "Database name (overrides config)")

	// Agent flags
	fWorkers := flag.Int("workers", cfg.Agent.Workers, "Number of concurrent workflow workers (overrides config)")
	fBatchLimit := flag.Int("batchlimit", cfg.Agent.BatchLimit, "Unread replies examined per pass (overrides config)")
	fCheckInterval := flag.String("checkinterval", cfg.Agent.CheckInterval, "Time between background reply checks (overrides config)")

	// HTTP API flags
	fStartAPI := flag.Bool("httpapi", cfg.HTTPAPI.Start, "Start the HTTP API server (overrides config)")
	fAPIAddr := flag.String("httpapiaddr", cfg.HTTPAPI.Addr, "HTTP API server address (overrides config)")
	fAPIKey := flag.String("httpapikey", cfg.HTTPAPI.APIKey, "HTTP API bearer token (overrides config)")

	flag.Parse()

	// --- Load Configuration from TOML File ---
	// Values from the TOML file override the application defaults.
	if err := config.LoadConfigFromFile(*configPath, &cfg); err != nil {
		if os.IsNotExist(err) {
			if isFlagSet("config") { // User explicitly set -config
				log.Fatalf("Error: Specified configuration file '%s' not found: %v", *configPath, err)
			} else {
				log.Printf("WARNING: Default configuration file '%s' not found. Using application defaults and command-line flags.", *configPath)
			}
		} else {
			log.Fatalf("Error parsing configuration file '%s': %v", *configPath, err)
		}
	} else {
		log.Printf("Loaded configuration from %s", *configPath)
	}

	// --- Apply Command-Line Flag Overrides ---
	// If a flag was explicitly set on the command line, its value overrides
	// both application defaults and values from the TOML file.

	if isFlagSet("logoutput") {
		cfg.Logging.Output = *fLogOutput
	}
	if isFlagSet("logformat") {
		cfg.Logging.Format = *fLogFormat
	}
	if isFlagSet("loglevel") {
		cfg.Logging.Level = *fLogLevel
	}

	if isFlagSet("mailusername") {
		cfg.Mail.Username = *fMailUsername
	}
	if isFlagSet("mailpassword") {
		cfg.Mail.Password = *fMailPassword
	}
	if isFlagSet("mailrecipient") {
		cfg.Mail.Recipient = *fMailRecipient
	}
	if isFlagSet("smtphost") {
		cfg.Mail.SMTPHost = *fSMTPHost
	}
	if isFlagSet("imaphost") {
		cfg.Mail.IMAPHost = *fIMAPHost
	}
	if isFlagSet("imapmailbox") {
		cfg.Mail.IMAPMailbox = *fIMAPMailbox
	}

	if isFlagSet("dburi") {
		cfg.Database.URI = *fDbURI
	}
	if isFlagSet("dbname") {
		cfg.Database.Name = *fDbName
	}

	if isFlagSet("workers") {
		cfg.Agent.Workers = *fWorkers
	}
	if isFlagSet("batchlimit") {
		cfg.Agent.BatchLimit = *fBatchLimit
	}
	if isFlagSet("checkinterval") {
		cfg.Agent.CheckInterval = *fCheckInterval
	}

	if isFlagSet("httpapi") {
		cfg.HTTPAPI.Start = *fStartAPI
	}
	if isFlagSet("httpapiaddr") {
		cfg.HTTPAPI.Addr = *fAPIAddr
	}
	if isFlagSet("httpapikey") {
		cfg.HTTPAPI.APIKey = *fAPIKey
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// --- Initialize Logging ---
	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT and SIGTERM for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	// --- Connect to the Document Store ---
	connectTimeout, err := cfg.Database.GetConnectTimeout()
	if err != nil {
		logger.Fatal("invalid database connect_timeout duration", "error", err)
	}
	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	logger.Info("connecting to document store", "uri", cfg.Database.URI, "database", cfg.Database.Name)
	database, err := db.NewDatabase(connectCtx, cfg.Database)
	connectCancel()
	if err != nil {
		logger.Fatal("failed to connect to document store", "error", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := database.Close(closeCtx); err != nil {
			logger.Error("error closing document store connection", "error", err)
		}
	}()

	// --- Build the Workflow Agent ---
	manualTimeout, err := cfg.Agent.GetManualTimeout()
	if err != nil {
		logger.Fatal("invalid agent manual_timeout duration", "error", err)
	}
	checkTimeout, err := cfg.Agent.GetCheckTimeout()
	if err != nil {
		logger.Fatal("invalid agent check_timeout duration", "error", err)
	}
	checkInterval, err := cfg.Agent.GetCheckInterval()
	if err != nil {
		logger.Fatal("invalid agent check_interval duration", "error", err)
	}
	errorBackoff, err := cfg.Agent.GetErrorBackoff()
	if err != nil {
		logger.Fatal("invalid agent error_backoff duration", "error", err)
	}

	smtpMailer := mailer.NewSMTPMailer(cfg.Mail)
	imapScanner := mailbox.NewIMAPScanner(cfg.Mail, cfg.Agent.BodyLimit)
	workflowAgent := agent.New(database, smtpMailer, imapScanner, cfg.Mail.SubjectPrefix, cfg.Agent.BatchLimit)

	pool := executor.NewPool(workflowAgent, cfg.Agent.Workers)
	defer pool.Close()

	scheduler := executor.NewScheduler(pool, checkInterval, checkTimeout, errorBackoff)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	errChan := make(chan error, 1)

	if cfg.HTTPAPI.Start {
		go httpapi.Start(ctx, pool, httpapi.ServerOptions{
			Addr:          cfg.HTTPAPI.Addr,
			APIKey:        cfg.HTTPAPI.APIKey,
			ManualTimeout: manualTimeout,
			TLS:           cfg.HTTPAPI.TLS,
			TLSCertFile:   cfg.HTTPAPI.TLSCertFile,
			TLSKeyFile:    cfg.HTTPAPI.TLSKeyFile,
		}, errChan)
	}

	logger.Info("remedy agent started",
		"workers", cfg.Agent.Workers,
		"check_interval", checkInterval,
		"http_api", cfg.HTTPAPI.Start)

	select {
	case <-ctx.Done():
		logger.Info("shutting down remedy agent")
	case err := <-errChan:
		logger.Fatal("server error", "error", err)
	}
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	isSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			isSet = true
		}
	})
	return isSet
}
