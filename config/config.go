package config

import (
	"fmt"
	"net/mail"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Output string `toml:"output"` // "stdout", "stderr", or a file path
	Format string `toml:"format"` // "console" or "json"
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
}

// MailConfig holds the credentials and endpoints for both mail directions.
// The same account sends notifications and receives replies.
type MailConfig struct {
	Username      string `toml:"username"`       // account address, also the envelope sender
	Password      string `toml:"password"`       // app password for SMTP and IMAP
	Recipient     string `toml:"recipient"`      // fixed notification recipient
	SubjectPrefix string `toml:"subject_prefix"` // subject is "<prefix> #<id>"

	SMTPHost     string `toml:"smtp_host"` // host:port
	SMTPStartTLS bool   `toml:"smtp_starttls"`

	IMAPHost    string `toml:"imap_host"` // host:port
	IMAPNoTLS   bool   `toml:"imap_no_tls"`
	IMAPMailbox string `toml:"imap_mailbox"`
}

// DatabaseConfig holds the document store configuration
type DatabaseConfig struct {
	URI                string `toml:"uri"`
	Name               string `toml:"name"`
	ActiveCollection   string `toml:"active_collection"`
	ResolvedCollection string `toml:"resolved_collection"`
	ConnectTimeout     string `toml:"connect_timeout"`
}

// GetConnectTimeout parses the connection timeout duration
func (d *DatabaseConfig) GetConnectTimeout() (time.Duration, error) {
	if d.ConnectTimeout == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(d.ConnectTimeout)
}

// AgentConfig holds workflow tuning knobs
type AgentConfig struct {
	BatchLimit    int    `toml:"batch_limit"`    // unread replies examined per reconciliation pass
	BodyLimit     int    `toml:"body_limit"`     // bytes of body kept per reply
	Workers       int    `toml:"workers"`        // concurrent workflow executions
	ManualTimeout string `toml:"manual_timeout"` // wait for manually triggered runs
	CheckTimeout  string `toml:"check_timeout"`  // wait for scheduled runs
	CheckInterval string `toml:"check_interval"` // time between scheduled runs
	ErrorBackoff  string `toml:"error_backoff"`  // pause after a failed scheduled run
}

// GetManualTimeout parses the manual trigger timeout duration
func (a *AgentConfig) GetManualTimeout() (time.Duration, error) {
	if a.ManualTimeout == "" {
		return 45 * time.Second, nil
	}
	return time.ParseDuration(a.ManualTimeout)
}

// GetCheckTimeout parses the background check timeout duration
func (a *AgentConfig) GetCheckTimeout() (time.Duration, error) {
	if a.CheckTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(a.CheckTimeout)
}

// GetCheckInterval parses the background check interval duration
func (a *AgentConfig) GetCheckInterval() (time.Duration, error) {
	if a.CheckInterval == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(a.CheckInterval)
}

// GetErrorBackoff parses the scheduler error backoff duration
func (a *AgentConfig) GetErrorBackoff() (time.Duration, error) {
	if a.ErrorBackoff == "" {
		return time.Minute, nil
	}
	return time.ParseDuration(a.ErrorBackoff)
}

// HTTPAPIConfig holds configuration for the trigger/metrics HTTP server
type HTTPAPIConfig struct {
	Start       bool   `toml:"start"`
	Addr        string `toml:"addr"`
	APIKey      string `toml:"api_key"`
	TLS         bool   `toml:"tls"`
	TLSCertFile string `toml:"tls_cert_file"`
	TLSKeyFile  string `toml:"tls_key_file"`
}

// Config is the top-level configuration
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Mail     MailConfig     `toml:"mail"`
	Database DatabaseConfig `toml:"database"`
	Agent    AgentConfig    `toml:"agent"`
	HTTPAPI  HTTPAPIConfig  `toml:"http_api"`
}

// NewDefaultConfig returns a configuration with application defaults
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "info",
		},
		Mail: MailConfig{
			SubjectPrefix: "Pothole Complaint",
			SMTPHost:      "smtp.gmail.com:465",
			IMAPHost:      "imap.gmail.com:993",
			IMAPMailbox:   "INBOX",
		},
		Database: DatabaseConfig{
			URI:                "mongodb://localhost:27017",
			Name:               "pothole_app",
			ActiveCollection:   "complaints",
			ResolvedCollection: "resolved_complaints",
		},
		Agent: AgentConfig{
			BatchLimit:    3,
			BodyLimit:     500,
			Workers:       2,
			ManualTimeout: "45s",
			CheckTimeout:  "30s",
			CheckInterval: "5m",
			ErrorBackoff:  "60s",
		},
		HTTPAPI: HTTPAPIConfig{
			Start: true,
			Addr:  ":8080",
		},
	}
}

// LoadConfigFromFile loads configuration from a TOML file on top of cfg.
// A missing file at the default path is not an error; explicit paths must
// exist.
func LoadConfigFromFile(configPath string, cfg *Config) error {
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to parse config file '%s': %w", configPath, err)
	}
	return nil
}

// Validate checks the configuration for fatal problems. It is called once
// at startup; the agent refuses to start on any error returned here.
func (c *Config) Validate() error {
	if c.Mail.Username == "" {
		return fmt.Errorf("mail.username is required")
	}
	if _, err := mail.ParseAddress(c.Mail.Username); err != nil {
		return fmt.Errorf("mail.username is not a valid address: %w", err)
	}
	if c.Mail.Password == "" {
		return fmt.Errorf("mail.password is required")
	}
	if c.Mail.Recipient == "" {
		return fmt.Errorf("mail.recipient is required")
	}
	if _, err := mail.ParseAddress(c.Mail.Recipient); err != nil {
		return fmt.Errorf("mail.recipient is not a valid address: %w", err)
	}
	if c.Mail.SubjectPrefix == "" {
		return fmt.Errorf("mail.subject_prefix is required")
	}
	if c.Mail.SMTPHost == "" {
		return fmt.Errorf("mail.smtp_host is required")
	}
	if c.Mail.IMAPHost == "" {
		return fmt.Errorf("mail.imap_host is required")
	}

	if c.Database.URI == "" {
		return fmt.Errorf("database.uri is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.ActiveCollection == "" || c.Database.ResolvedCollection == "" {
		return fmt.Errorf("database.active_collection and database.resolved_collection are required")
	}
	if c.Database.ActiveCollection == c.Database.ResolvedCollection {
		return fmt.Errorf("active and resolved collections must be distinct")
	}
	if _, err := c.Database.GetConnectTimeout(); err != nil {
		return fmt.Errorf("invalid database.connect_timeout: %w", err)
	}

	if c.Agent.BatchLimit <= 0 {
		return fmt.Errorf("agent.batch_limit must be positive")
	}
	if c.Agent.BodyLimit <= 0 {
		return fmt.Errorf("agent.body_limit must be positive")
	}
	if c.Agent.Workers <= 0 {
		return fmt.Errorf("agent.workers must be positive")
	}
	for name, get := range map[string]func() (time.Duration, error){
		"agent.manual_timeout": c.Agent.GetManualTimeout,
		"agent.check_timeout":  c.Agent.GetCheckTimeout,
		"agent.check_interval": c.Agent.GetCheckInterval,
		"agent.error_backoff":  c.Agent.GetErrorBackoff,
	} {
		d, err := get()
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.HTTPAPI.Start {
		if c.HTTPAPI.Addr == "" {
			return fmt.Errorf("http_api.addr is required when http_api.start is true")
		}
		if c.HTTPAPI.APIKey == "" {
			return fmt.Errorf("http_api.api_key is required when http_api.start is true")
		}
		if c.HTTPAPI.TLS && (c.HTTPAPI.TLSCertFile == "" || c.HTTPAPI.TLSKeyFile == "") {
			return fmt.Errorf("http_api.tls_cert_file and http_api.tls_key_file are required when TLS is enabled")
		}
	}

	return nil
}
