package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded at startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Analyzer AnalyzerConfig
	Pricing  PricingConfig
	Webhook  WebhookConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AnalyzerConfig configures the generative-text collaborator used for
// transcript analysis. The client is built once at boot; a missing key in a
// deployment that enables analysis is a startup error, not a first-request one.
type AnalyzerConfig struct {
	BaseURL string
	APIKey  string
	Model   string

	RequestTimeout  time.Duration
	MaxRetryElapsed time.Duration
}

// Enabled reports whether transcript analysis is configured at all.
// A deployment without an analyzer still completes calls (with the
// degraded fallback analysis).
func (a AnalyzerConfig) Enabled() bool {
	return a.BaseURL != "" || a.APIKey != "" || a.Model != ""
}

// PricingConfig is the flat per-minute rate applied when a provider event
// carries no cost of its own.
type PricingConfig struct {
	Currency                string
	RatePerMinuteMinor      int64
	MinimumBillableSeconds  int
	BillingIncrementSeconds int
}

type WebhookConfig struct {
	// DedupeTTL bounds how long processed delivery markers are kept.
	// It should cover the provider's redelivery horizon.
	DedupeTTL time.Duration

	// Single-tenant deployments map every dialed number to one agent and
	// owner. Leave unset to reject callbacks until a resolver is wired.
	// DefaultAgentName is the agent's display name, used in analysis
	// prompts; optional.
	DefaultAgentID   string
	DefaultAgentName string
	DefaultUserID    string
	DefaultOrgID     string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optionalDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optionalDuration("JWT_REFRESH_TTL")

	c.Analyzer.BaseURL = strings.TrimSpace(os.Getenv("ANALYZER_BASE_URL"))
	c.Analyzer.APIKey = os.Getenv("ANALYZER_API_KEY")
	c.Analyzer.Model = strings.TrimSpace(os.Getenv("ANALYZER_MODEL"))
	c.Analyzer.RequestTimeout = optionalDuration("ANALYZER_REQUEST_TIMEOUT")
	c.Analyzer.MaxRetryElapsed = optionalDuration("ANALYZER_MAX_RETRY_ELAPSED")

	c.Pricing.Currency = strings.TrimSpace(os.Getenv("PRICING_CURRENCY"))
	c.Pricing.RatePerMinuteMinor = optionalInt64("PRICING_RATE_PER_MINUTE_MINOR")
	c.Pricing.MinimumBillableSeconds = int(optionalInt64("PRICING_MIN_BILLABLE_SECONDS"))
	c.Pricing.BillingIncrementSeconds = int(optionalInt64("PRICING_BILLING_INCREMENT_SECONDS"))

	c.Webhook.DedupeTTL = optionalDuration("WEBHOOK_DEDUPE_TTL")
	c.Webhook.DefaultAgentID = strings.TrimSpace(os.Getenv("WEBHOOK_DEFAULT_AGENT_ID"))
	c.Webhook.DefaultAgentName = strings.TrimSpace(os.Getenv("WEBHOOK_DEFAULT_AGENT_NAME"))
	c.Webhook.DefaultUserID = strings.TrimSpace(os.Getenv("WEBHOOK_DEFAULT_USER_ID"))
	c.Webhook.DefaultOrgID = strings.TrimSpace(os.Getenv("WEBHOOK_DEFAULT_ORG_ID"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	// Analyzer is optional, but a partial configuration is a deployment
	// mistake that should fail at boot.
	if c.Analyzer.Enabled() {
		if c.Analyzer.BaseURL == "" {
			errs = append(errs, errors.New("ANALYZER_BASE_URL is required when the analyzer is configured"))
		}
		if c.Analyzer.APIKey == "" {
			errs = append(errs, errors.New("ANALYZER_API_KEY is required when the analyzer is configured"))
		}
		if c.Analyzer.Model == "" {
			errs = append(errs, errors.New("ANALYZER_MODEL is required when the analyzer is configured"))
		}
	}

	if c.Pricing.RatePerMinuteMinor < 0 {
		errs = append(errs, errors.New("PRICING_RATE_PER_MINUTE_MINOR must be >= 0"))
	}
	if c.Pricing.RatePerMinuteMinor > 0 && c.Pricing.Currency == "" {
		errs = append(errs, errors.New("PRICING_CURRENCY is required when a rate is set"))
	}

	if c.Webhook.DedupeTTL <= 0 {
		c.Webhook.DedupeTTL = 24 * time.Hour
	}
	if c.Webhook.DefaultAgentID != "" && c.Webhook.DefaultUserID == "" {
		errs = append(errs, errors.New("WEBHOOK_DEFAULT_USER_ID is required when WEBHOOK_DEFAULT_AGENT_ID is set"))
	}

	return joinErrors(errs)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c *Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt64(key string) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func optionalDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
