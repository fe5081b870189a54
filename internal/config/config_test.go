package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BTreeMap/ShopChat/internal/genai"
)

var configKeys = []string{
	"OPENROUTER_API_KEY", "OPENROUTER_MODEL", "OPENROUTER_BASE_URL", "GENAI_DEBUG",
	"MESSAGING_PROVIDER", "WHATSAPP_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_VERIFY_TOKEN",
	"WHATSAPP_APP_SECRET", "WHATSAPP_API_VERSION", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN",
	"TWILIO_FROM_NUMBER", "PUBLIC_URL", "WHATSMEOW_DB_DSN", "DATABASE_URL", "SHOPCHAT_STATE_DIR",
	"SEED_DIR", "PRICE_LIST_URL", "API_ADDR", "PORT", "LOG_LEVEL",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func loadNoFile(t *testing.T) Config {
	t.Helper()
	return Load(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := loadNoFile(t)

	if cfg.OpenRouterModel != genai.DefaultModel || cfg.OpenRouterBaseURL != genai.DefaultBaseURL {
		t.Errorf("unexpected AI defaults %q %q", cfg.OpenRouterModel, cfg.OpenRouterBaseURL)
	}
	if cfg.Provider != ProviderCloud {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.WhatsAppAPIVersion != DefaultAPIVersion {
		t.Errorf("WhatsAppAPIVersion = %q", cfg.WhatsAppAPIVersion)
	}
	if cfg.StateDir != DefaultStateDir || cfg.SeedDir != DefaultSeedDir {
		t.Errorf("unexpected dirs %q %q", cfg.StateDir, cfg.SeedDir)
	}
	if cfg.Addr != ":5000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.GenAIDebug || cfg.AIConfigured() {
		t.Error("AI should be unconfigured with debug off")
	}
	if got := cfg.StoreDSN(); got != filepath.Join(DefaultStateDir, DefaultDBFileName) {
		t.Errorf("StoreDSN() = %q", got)
	}
	if got := cfg.WhatsmeowStoreDSN(); !strings.HasSuffix(got, DefaultWhatsmeowFileName+"?_foreign_keys=on") {
		t.Errorf("WhatsmeowStoreDSN() = %q", got)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or")
	t.Setenv("MESSAGING_PROVIDER", "Twilio")
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("PORT", "8080")
	t.Setenv("GENAI_DEBUG", "yes")
	t.Setenv("PRICE_LIST_URL", "https://example.com/lista.pdf")

	cfg := loadNoFile(t)
	if !cfg.AIConfigured() || !cfg.GenAIDebug {
		t.Error("AI key or debug flag not loaded")
	}
	if cfg.Provider != ProviderTwilio {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.StoreDSN() != "postgres://localhost/shop" {
		t.Errorf("StoreDSN() = %q", cfg.StoreDSN())
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.PriceListURL != "https://example.com/lista.pdf" {
		t.Errorf("PriceListURL = %q", cfg.PriceListURL)
	}

	t.Setenv("API_ADDR", "127.0.0.1:9000")
	if cfg := loadNoFile(t); cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("API_ADDR should win over PORT, got %q", cfg.Addr)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables already present, even when empty.
	os.Unsetenv("WHATSAPP_VERIFY_TOKEN")
	os.Unsetenv("SEED_DIR")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("WHATSAPP_VERIFY_TOKEN=from-file\nSEED_DIR=/srv/seed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("WHATSAPP_VERIFY_TOKEN")
		os.Unsetenv("SEED_DIR")
	})

	cfg := Load(path)
	if cfg.WhatsAppVerifyToken != "from-file" || cfg.SeedDir != "/srv/seed" {
		t.Errorf("values from .env not loaded: %q %q", cfg.WhatsAppVerifyToken, cfg.SeedDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		missing []string
	}{
		{
			name:    "cloud complete",
			cfg:     Config{Provider: ProviderCloud, WhatsAppToken: "t", WhatsAppPhoneNumberID: "1", WhatsAppVerifyToken: "v", PriceListURL: "https://example.com/precios.pdf"},
			wantErr: nil,
		},
		{
			name:    "cloud missing",
			cfg:     Config{Provider: ProviderCloud, WhatsAppToken: "t"},
			wantErr: ErrMissingConfig,
			missing: []string{"WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_VERIFY_TOKEN", "PRICE_LIST_URL"},
		},
		{
			name:    "twilio missing",
			cfg:     Config{Provider: ProviderTwilio, TwilioAccountSID: "AC"},
			wantErr: ErrMissingConfig,
			missing: []string{"TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "PRICE_LIST_URL"},
		},
		{
			name:    "cloud without price list",
			cfg:     Config{Provider: ProviderCloud, WhatsAppToken: "t", WhatsAppPhoneNumberID: "1", WhatsAppVerifyToken: "v"},
			wantErr: ErrMissingConfig,
			missing: []string{"PRICE_LIST_URL"},
		},
		{
			name:    "whatsmeow needs only the price list",
			cfg:     Config{Provider: ProviderWhatsmeow, PriceListURL: "https://example.com/precios.pdf"},
			wantErr: nil,
		},
		{
			name:    "whatsmeow without price list",
			cfg:     Config{Provider: ProviderWhatsmeow},
			wantErr: ErrMissingConfig,
			missing: []string{"PRICE_LIST_URL"},
		},
		{
			name:    "mock",
			cfg:     Config{Provider: ProviderMock},
			wantErr: nil,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "telegram"},
			wantErr: ErrInvalidProvider,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			for _, name := range tt.missing {
				if !strings.Contains(err.Error(), name) {
					t.Errorf("error %q does not name %s", err, name)
				}
			}
		})
	}
}

func TestValidateDoesNotRequireAIKey(t *testing.T) {
	cfg := Config{Provider: ProviderMock}
	if err := cfg.Validate(); err != nil {
		t.Errorf("missing AI key must not fail validation: %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug, "DEBUG": slog.LevelDebug, "warn": slog.LevelWarn,
		"warning": slog.LevelWarn, "error": slog.LevelError, "info": slog.LevelInfo, "bogus": slog.LevelInfo, "": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
