package common

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database for minimal CI images

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Tickers  TickersConfig  `toml:"tickers" yaml:"tickers"`
	Provider ProviderConfig `toml:"provider" yaml:"provider"`
	Report   ReportConfig   `toml:"report" yaml:"report"`
	SMTP     SMTPConfig     `toml:"smtp" yaml:"smtp"`
	Schedule ScheduleConfig `toml:"schedule" yaml:"schedule"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
}

// TickersConfig locates the watchlist file
type TickersConfig struct {
	File string `toml:"file" yaml:"file" validate:"required"` // One ticker per line, '#' comments allowed
}

// ProviderConfig selects and tunes the market data provider
type ProviderConfig struct {
	Name        string `toml:"name" yaml:"name" validate:"oneof=yahoo eodhd"`      // "yahoo" (default) or "eodhd"
	BaseURL     string `toml:"base_url" yaml:"base_url" validate:"omitempty,url"` // Override the provider API base URL
	APIKey      string `toml:"api_key" yaml:"api_key" validate:"required_if=Name eodhd"`
	HistoryDays int    `toml:"history_days" yaml:"history_days" validate:"min=90"` // Calendar days of daily bars to request (default: 183, ~6 months)
	Timeout     string `toml:"timeout" yaml:"timeout"`                             // Per-ticker fetch timeout (default: "15s")
	RateLimit   int    `toml:"rate_limit" yaml:"rate_limit" validate:"min=1"`      // Requests per second
	Concurrency int    `toml:"concurrency" yaml:"concurrency" validate:"min=1,max=16"`
	UserAgent   string `toml:"user_agent" yaml:"user_agent"`
}

// ReportConfig controls rendering and the output directory
type ReportConfig struct {
	OutputDir string   `toml:"output_dir" yaml:"output_dir" validate:"required"`
	Formats   []string `toml:"formats" yaml:"formats" validate:"min=1,dive,oneof=csv html pdf"`
	Title     string   `toml:"title" yaml:"title" validate:"required"`
	Subject   string   `toml:"subject" yaml:"subject" validate:"required"` // Subject prefix, the local run time is appended
	Timezone  string   `toml:"timezone" yaml:"timezone" validate:"omitempty,timezone"`
	TopN      int      `toml:"top_n" yaml:"top_n" validate:"min=0"` // Rows in the email body summary (0 disables)
	CSVBOM    bool     `toml:"csv_bom" yaml:"csv_bom"`              // Prefix the CSV with a UTF-8 BOM for spreadsheet apps
	Intro     string   `toml:"intro" yaml:"intro"`                  // Markdown shown above the summary in the email body
}

// SMTPConfig holds the mail server and recipients. Credentials usually come
// from SMTP_USER / SMTP_PASS / SMTP_TO.
type SMTPConfig struct {
	Host     string   `toml:"host" yaml:"host" validate:"required,hostname|ip"`
	Port     int      `toml:"port" yaml:"port" validate:"min=1,max=65535"`
	Username string   `toml:"username" yaml:"username" validate:"required"`
	Password string   `toml:"password" yaml:"password" validate:"required"`
	To       []string `toml:"to" yaml:"to" validate:"min=1,dive,email"`
	From     string   `toml:"from" yaml:"from" validate:"omitempty,email"` // Defaults to the username
	FromName string   `toml:"from_name" yaml:"from_name"`
	TLS      string   `toml:"tls" yaml:"tls" validate:"oneof=starttls tls none"`
	Timeout  string   `toml:"timeout" yaml:"timeout"`
}

// ScheduleConfig documents the external trigger. Nothing is scheduled in-process.
type ScheduleConfig struct {
	Cron     string `toml:"cron" yaml:"cron"`                                         // 5-field cron in UTC, as used by the CI scheduler
	Timezone string `toml:"timezone" yaml:"timezone" validate:"omitempty,timezone"` // Zone used when printing upcoming runs
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" yaml:"output" validate:"dive,oneof=console stdout file"`
	TimeFormat string   `toml:"time_format" yaml:"time_format"`
	Dir        string   `toml:"dir" yaml:"dir"` // Log directory when output includes "file" (default: <output_dir>/logs)
}

// envFieldNames maps struct namespaces to the variable users set, so errors
// point at SMTP_USER rather than Config.SMTP.Username.
var envFieldNames = map[string]string{
	"Config.SMTP.Username":   "SMTP_USER",
	"Config.SMTP.Password":   "SMTP_PASS",
	"Config.SMTP.To":         "SMTP_TO",
	"Config.SMTP.Host":       "SMTP_HOST",
	"Config.SMTP.Port":       "SMTP_PORT",
	"Config.SMTP.From":       "SMTP_FROM",
	"Config.Provider.APIKey": "DAILYSCAN_EODHD_API_KEY",
}

// NewDefaultConfig returns the configuration used when no file is given
func NewDefaultConfig() *Config {
	return &Config{
		Tickers: TickersConfig{
			File: "tickers.txt",
		},
		Provider: ProviderConfig{
			Name:        "yahoo",
			HistoryDays: 183,
			Timeout:     "15s",
			RateLimit:   2,
			Concurrency: 1,
			UserAgent:   UserAgent(),
		},
		Report: ReportConfig{
			OutputDir: "output",
			Formats:   []string{"csv", "html"},
			Title:     "Daily Stock Scan",
			Subject:   "Daily Stock Scan",
			Timezone:  "Asia/Taipei",
			TopN:      10,
			CSVBOM:    true,
			Intro:     "This is the automated **daily stock scan**. The full results are attached.",
		},
		SMTP: SMTPConfig{
			Host:     "smtp.gmail.com",
			Port:     587,
			FromName: "Daily Scan",
			TLS:      "starttls",
			Timeout:  "30s",
		},
		Schedule: ScheduleConfig{
			Cron:     "30 0 * * *", // 08:30 Asia/Taipei
			Timezone: "Asia/Taipei",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"console"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env.
// CLI flags are applied afterwards by the caller via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "config", Reason: fmt.Sprintf("read %s", path), Err: err}
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, &ConfigError{
				Field:  "config",
				Reason: fmt.Sprintf("parse %s (file %d of %d)", path, i+1, len(paths)),
				Err:    err,
			}
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// envInt sets dst from an integer environment variable. Unset leaves dst
// alone; a malformed value is a *ConfigError naming the variable.
func envInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return &ConfigError{Field: name, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	*dst = n
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) error {
	// Mail credentials and recipients
	if user := os.Getenv("SMTP_USER"); user != "" {
		config.SMTP.Username = user
	}
	if pass := os.Getenv("SMTP_PASS"); pass != "" {
		config.SMTP.Password = pass
	}
	if to := os.Getenv("SMTP_TO"); to != "" {
		config.SMTP.To = splitString(to, ",")
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		config.SMTP.Host = host
	}
	if err := envInt("SMTP_PORT", &config.SMTP.Port); err != nil {
		return err
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		config.SMTP.From = from
	}
	if tlsMode := os.Getenv("SMTP_TLS"); tlsMode != "" {
		config.SMTP.TLS = strings.ToLower(tlsMode)
	}

	// Watchlist and output
	if file := os.Getenv("DAILYSCAN_TICKERS_FILE"); file != "" {
		config.Tickers.File = file
	}
	if dir := os.Getenv("DAILYSCAN_OUTPUT_DIR"); dir != "" {
		config.Report.OutputDir = dir
	}
	if formats := os.Getenv("DAILYSCAN_REPORT_FORMATS"); formats != "" {
		config.Report.Formats = splitString(strings.ToLower(formats), ",")
	}
	if tz := os.Getenv("DAILYSCAN_TIMEZONE"); tz != "" {
		config.Report.Timezone = tz
		config.Schedule.Timezone = tz
	}
	if err := envInt("DAILYSCAN_TOP_N", &config.Report.TopN); err != nil {
		return err
	}

	// Provider
	if name := os.Getenv("DAILYSCAN_PROVIDER"); name != "" {
		config.Provider.Name = strings.ToLower(name)
	}
	if baseURL := os.Getenv("DAILYSCAN_PROVIDER_BASE_URL"); baseURL != "" {
		config.Provider.BaseURL = baseURL
	}
	if apiKey := os.Getenv("DAILYSCAN_EODHD_API_KEY"); apiKey != "" {
		config.Provider.APIKey = apiKey
	} else if apiKey := os.Getenv("EODHD_API_KEY"); apiKey != "" {
		config.Provider.APIKey = apiKey
	}
	if err := envInt("DAILYSCAN_HISTORY_DAYS", &config.Provider.HistoryDays); err != nil {
		return err
	}
	if timeout := os.Getenv("DAILYSCAN_FETCH_TIMEOUT"); timeout != "" {
		config.Provider.Timeout = timeout
	}
	if err := envInt("DAILYSCAN_FETCH_CONCURRENCY", &config.Provider.Concurrency); err != nil {
		return err
	}

	// Schedule
	if cronExpr := os.Getenv("DAILYSCAN_SCHEDULE"); cronExpr != "" {
		config.Schedule.Cron = cronExpr
	}

	// Logging
	if level := os.Getenv("DAILYSCAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("DAILYSCAN_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitString(output, ",")
	}

	return nil
}

// FlagOverrides carries command-line values; zero values leave config untouched
type FlagOverrides struct {
	TickersFile string
	OutputDir   string
	Provider    string
	LogLevel    string
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.TickersFile != "" {
		config.Tickers.File = flags.TickersFile
	}
	if flags.OutputDir != "" {
		config.Report.OutputDir = flags.OutputDir
	}
	if flags.Provider != "" {
		config.Provider.Name = strings.ToLower(flags.Provider)
	}
	if flags.LogLevel != "" {
		config.Logging.Level = strings.ToLower(flags.LogLevel)
	}
}

// Validate checks the whole configuration. Mail settings are skipped when
// requireMail is false (dry runs). The first problem is returned as a
// *ConfigError.
func (c *Config) Validate(requireMail bool) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	var err error
	if requireMail {
		err = validate.Struct(c)
	} else {
		err = validate.StructExcept(c, "SMTP")
	}
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := fe.Namespace()
			if name, ok := envFieldNames[field]; ok {
				field = name
			} else if idx := strings.Index(field, "["); idx > 0 {
				if name, ok := envFieldNames[field[:idx]]; ok {
					field = name
				}
			}
			return &ConfigError{Field: field, Reason: describeTag(fe)}
		}
		return &ConfigError{Field: "config", Err: err}
	}

	if _, err := parseDuration(c.Provider.Timeout); err != nil {
		return &ConfigError{Field: "provider.timeout", Err: err}
	}
	if requireMail {
		if _, err := parseDuration(c.SMTP.Timeout); err != nil {
			return &ConfigError{Field: "smtp.timeout", Err: err}
		}
		// net/smtp refuses PLAIN auth over plaintext except to loopback
		if c.SMTP.TLS == "none" && c.SMTP.Username != "" && !isLoopbackHost(c.SMTP.Host) {
			return &ConfigError{Field: "SMTP_TLS", Reason: fmt.Sprintf("\"none\" cannot authenticate to %s, use starttls or tls", c.SMTP.Host)}
		}
	}
	if c.Schedule.Cron != "" {
		if err := ValidateSchedule(c.Schedule.Cron); err != nil {
			return &ConfigError{Field: "schedule.cron", Err: err}
		}
	}

	return nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "min":
		if fe.Kind().String() == "slice" || fe.Tag() != "min" {
			return "is required"
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "email":
		return fmt.Sprintf("%q is not a valid email address", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "timezone":
		return fmt.Sprintf("%q is not a known time zone", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// FetchTimeout returns the per-ticker fetch timeout
func (p ProviderConfig) FetchTimeout() time.Duration {
	d, err := parseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// DialTimeout returns the SMTP connection timeout
func (s SMTPConfig) DialTimeout() time.Duration {
	d, err := parseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Location returns the report time zone, falling back to UTC
func (r ReportConfig) Location() *time.Location {
	return loadLocation(r.Timezone)
}

// Location returns the schedule display time zone, falling back to UTC
func (s ScheduleConfig) Location() *time.Location {
	return loadLocation(s.Timezone)
}

// HasFormat reports whether the given report format is enabled
func (r ReportConfig) HasFormat(format string) bool {
	for _, f := range r.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// splitString splits a string by separator, trimming whitespace and dropping empty parts
func splitString(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
