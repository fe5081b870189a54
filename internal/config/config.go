// Package config loads ShopChat's runtime configuration from the environment
// and an optional .env file. Components receive values through their
// constructors; nothing reads the environment after Load.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/ShopChat/internal/genai"
	"github.com/BTreeMap/ShopChat/internal/util"
)

// Defaults for values absent from the environment.
const (
	DefaultStateDir          = "/var/lib/shopchat"
	DefaultDBFileName        = "shopchat.db"
	DefaultWhatsmeowFileName = "whatsmeow.db"
	DefaultSeedDir           = "data"
	DefaultAPIVersion        = "v18.0"
	DefaultPort              = "5000"
	DefaultLogLevel          = "info"
)

// Messaging providers.
const (
	ProviderCloud     = "cloud"
	ProviderTwilio    = "twilio"
	ProviderWhatsmeow = "whatsmeow"
	// ProviderMock records sends without delivering them.
	ProviderMock = "mock"
)

var (
	ErrMissingConfig   = errors.New("missing required configuration")
	ErrInvalidProvider = errors.New("invalid messaging provider")
)

// Config is the resolved runtime configuration.
type Config struct {
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	GenAIDebug        bool

	Provider              string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppAPIVersion    string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	PublicURL        string

	WhatsmeowDSN string

	DatabaseURL  string
	StateDir     string
	SeedDir      string
	PriceListURL string
	Addr         string
	LogLevel     string
}

// Load reads the given .env files (default ".env"; missing files are not an
// error) and then the process environment.
func Load(envFiles ...string) Config {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("Config.Load: no .env file loaded", "error", err)
	} else {
		slog.Debug("Config.Load: .env file loaded")
	}

	cfg := Config{
		OpenRouterAPIKey:      os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:       util.Getenv("OPENROUTER_MODEL", genai.DefaultModel),
		OpenRouterBaseURL:     util.Getenv("OPENROUTER_BASE_URL", genai.DefaultBaseURL),
		GenAIDebug:            util.ParseBoolEnv("GENAI_DEBUG", false),
		Provider:              strings.ToLower(util.Getenv("MESSAGING_PROVIDER", ProviderCloud)),
		WhatsAppToken:         os.Getenv("WHATSAPP_TOKEN"),
		WhatsAppPhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppVerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		WhatsAppAppSecret:     os.Getenv("WHATSAPP_APP_SECRET"),
		WhatsAppAPIVersion:    util.Getenv("WHATSAPP_API_VERSION", DefaultAPIVersion),
		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:      os.Getenv("TWILIO_FROM_NUMBER"),
		PublicURL:             os.Getenv("PUBLIC_URL"),
		WhatsmeowDSN:          os.Getenv("WHATSMEOW_DB_DSN"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		StateDir:              util.Getenv("SHOPCHAT_STATE_DIR", DefaultStateDir),
		SeedDir:               util.Getenv("SEED_DIR", DefaultSeedDir),
		PriceListURL:          os.Getenv("PRICE_LIST_URL"),
		Addr:                  resolveAddr(),
		LogLevel:              util.Getenv("LOG_LEVEL", DefaultLogLevel),
	}

	slog.Debug("Config.Load: environment loaded",
		"provider", cfg.Provider,
		"OPENROUTER_API_KEY_SET", cfg.OpenRouterAPIKey != "",
		"WHATSAPP_TOKEN_SET", cfg.WhatsAppToken != "",
		"TWILIO_AUTH_TOKEN_SET", cfg.TwilioAuthToken != "",
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"state_dir", cfg.StateDir,
		"seed_dir", cfg.SeedDir,
		"addr", cfg.Addr)
	return cfg
}

// resolveAddr prefers API_ADDR, then PORT.
func resolveAddr() string {
	if addr := os.Getenv("API_ADDR"); addr != "" {
		return addr
	}
	return ":" + util.Getenv("PORT", DefaultPort)
}

// StoreDSN returns DATABASE_URL, or a SQLite file in the state directory.
func (c Config) StoreDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.StateDir, DefaultDBFileName)
}

// WhatsmeowStoreDSN returns the whatsmeow device database, defaulting to a
// foreign-key-enabled SQLite file in the state directory.
func (c Config) WhatsmeowStoreDSN() string {
	if c.WhatsmeowDSN != "" {
		return c.WhatsmeowDSN
	}
	return "file:" + filepath.Join(c.StateDir, DefaultWhatsmeowFileName) + "?_foreign_keys=on"
}

// AIConfigured reports whether an OpenRouter key is present.
func (c Config) AIConfigured() bool {
	return c.OpenRouterAPIKey != ""
}

// Validate checks that the selected provider has its credentials. A missing
// AI key is not an error; replies then come from the fallback responder.
func (c Config) Validate() error {
	var missing []string
	need := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	switch c.Provider {
	case ProviderCloud:
		need("WHATSAPP_TOKEN", c.WhatsAppToken)
		need("WHATSAPP_PHONE_NUMBER_ID", c.WhatsAppPhoneNumberID)
		need("WHATSAPP_VERIFY_TOKEN", c.WhatsAppVerifyToken)
	case ProviderTwilio:
		need("TWILIO_ACCOUNT_SID", c.TwilioAccountSID)
		need("TWILIO_AUTH_TOKEN", c.TwilioAuthToken)
		need("TWILIO_FROM_NUMBER", c.TwilioFromNumber)
		if strings.TrimSpace(c.PublicURL) == "" {
			slog.Warn("Config.Validate: PUBLIC_URL not set, Twilio signatures are checked against the request host")
		}
	case ProviderWhatsmeow, ProviderMock:
	default:
		return fmt.Errorf("%w: %q (want %s, %s, %s or %s)", ErrInvalidProvider, c.Provider,
			ProviderCloud, ProviderTwilio, ProviderWhatsmeow, ProviderMock)
	}

	if c.Provider != ProviderMock {
		need("PRICE_LIST_URL", c.PriceListURL)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	if !c.AIConfigured() {
		slog.Warn("Config.Validate: OPENROUTER_API_KEY not set, replies will use the keyword fallback")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
