package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/oauth2/microsoft"
)

// envPrefix is prepended to every environment override, e.g.
// OTPMAIL_SERVER_ADDR overrides server.addr.
const envPrefix = "OTPMAIL"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`

	// MaxBodyBytes caps the size of a request body.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`

	// ReadTimeoutSec bounds reading a request, not the poll itself.
	ReadTimeoutSec int `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
}

// OAuthConfig holds the identity provider settings.
type OAuthConfig struct {
	TokenURL       string `mapstructure:"token_url" yaml:"token_url"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
}

// IMAPConfig holds the mail server settings.
type IMAPConfig struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           int    `mapstructure:"port" yaml:"port"`
	DialTimeoutSec int    `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec"`
	Debug          bool   `mapstructure:"debug" yaml:"debug"`
}

// Addr returns host:port for dialing.
func (c IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ScanConfig controls which folders are scanned and which messages qualify.
type ScanConfig struct {
	// Mailboxes are scanned in order; the order is also the tie-break
	// when two folders yield matches with the same timestamp.
	Mailboxes []string `mapstructure:"mailboxes" yaml:"mailboxes"`

	// SubjectKeywords feed the server-side search. One keyword is a
	// substring search, several are OR-ed, none means all messages.
	SubjectKeywords []string `mapstructure:"subject_keywords" yaml:"subject_keywords"`

	// SenderDomains, when set, require the sender address to contain
	// one of the domains.
	SenderDomains []string `mapstructure:"sender_domains" yaml:"sender_domains"`

	// SubjectMarkers, when set, require the decoded subject to contain
	// one of the markers.
	SubjectMarkers []string `mapstructure:"subject_markers" yaml:"subject_markers"`

	// Strictness selects the extractor rule set: "strict" or "loose".
	Strictness string `mapstructure:"strictness" yaml:"strictness"`
}

// AuditConfig controls the request audit log.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	OAuth  OAuthConfig  `mapstructure:"oauth" yaml:"oauth"`
	IMAP   IMAPConfig   `mapstructure:"imap" yaml:"imap"`
	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan"`
	Limits PollLimits   `mapstructure:"limits" yaml:"limits"`
	Audit  AuditConfig  `mapstructure:"audit" yaml:"audit"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// DefaultConfigDir returns ~/.config/otpmail, falling back to the
// working directory when the home directory is unknown.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "otpmail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/otpmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:           ":8080",
			MaxBodyBytes:   64 << 10,
			ReadTimeoutSec: 15,
		},
		OAuth: OAuthConfig{
			TokenURL:       microsoft.AzureADEndpoint("common").TokenURL,
			HTTPTimeoutSec: 15,
		},
		IMAP: IMAPConfig{
			Host:           "outlook.office365.com",
			Port:           993,
			DialTimeoutSec: 15,
		},
		Scan: ScanConfig{
			Mailboxes:       []string{"INBOX", "Junk"},
			SubjectKeywords: []string{"验证码"},
			Strictness:      "strict",
		},
		Limits: DefaultPollLimits(),
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(DefaultConfigDir(), "audit.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults mirrors DefaultAppConfig into viper so that env overrides
// resolve for keys absent from the file.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.read_timeout_sec", d.Server.ReadTimeoutSec)
	v.SetDefault("oauth.token_url", d.OAuth.TokenURL)
	v.SetDefault("oauth.http_timeout_sec", d.OAuth.HTTPTimeoutSec)
	v.SetDefault("imap.host", d.IMAP.Host)
	v.SetDefault("imap.port", d.IMAP.Port)
	v.SetDefault("imap.dial_timeout_sec", d.IMAP.DialTimeoutSec)
	v.SetDefault("imap.debug", d.IMAP.Debug)
	v.SetDefault("scan.mailboxes", d.Scan.Mailboxes)
	v.SetDefault("scan.subject_keywords", d.Scan.SubjectKeywords)
	v.SetDefault("scan.sender_domains", d.Scan.SenderDomains)
	v.SetDefault("scan.subject_markers", d.Scan.SubjectMarkers)
	v.SetDefault("scan.strictness", d.Scan.Strictness)
	v.SetDefault("limits.default_timeout_sec", d.Limits.DefaultTimeoutSec)
	v.SetDefault("limits.min_timeout_sec", d.Limits.MinTimeoutSec)
	v.SetDefault("limits.max_timeout_sec", d.Limits.MaxTimeoutSec)
	v.SetDefault("limits.default_interval_sec", d.Limits.DefaultIntervalSec)
	v.SetDefault("limits.min_interval_sec", d.Limits.MinIntervalSec)
	v.SetDefault("limits.max_interval_sec", d.Limits.MaxIntervalSec)
	v.SetDefault("limits.default_list_per_folder", d.Limits.DefaultListPerFolder)
	v.SetDefault("limits.default_poll_per_folder", d.Limits.DefaultPollPerFolder)
	v.SetDefault("limits.max_per_folder", d.Limits.MaxPerFolder)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.path", d.Audit.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults are used. OTPMAIL_* environment
// variables override both.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Scan.Mailboxes) == 0 {
		return nil, fmt.Errorf("config %s: scan.mailboxes must not be empty", path)
	}
	cfg.Limits = cfg.Limits.normalize()

	return cfg, nil
}
