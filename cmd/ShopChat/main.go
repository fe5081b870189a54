// Command ShopChat runs the Zapatillas Dolores WhatsApp responder.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/ShopChat/internal/api"
	"github.com/BTreeMap/ShopChat/internal/cloudapi"
	"github.com/BTreeMap/ShopChat/internal/config"
	"github.com/BTreeMap/ShopChat/internal/genai"
	"github.com/BTreeMap/ShopChat/internal/lockfile"
	"github.com/BTreeMap/ShopChat/internal/messaging"
	"github.com/BTreeMap/ShopChat/internal/models"
	"github.com/BTreeMap/ShopChat/internal/responder"
	"github.com/BTreeMap/ShopChat/internal/router"
	"github.com/BTreeMap/ShopChat/internal/store"
	"github.com/BTreeMap/ShopChat/internal/twiliowhatsapp"
	"github.com/BTreeMap/ShopChat/internal/whatsapp"
)

// Flags holds command line values that override the environment.
type Flags struct {
	envFile     string
	addr        string
	dbDSN       string
	seedDir     string
	stateDir    string
	qrOutput    string
	numericCode bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &Flags{}
	root := &cobra.Command{
		Use:   "shopchat",
		Short: "WhatsApp assistant for Zapatillas Dolores",
		Long: `ShopChat answers WhatsApp customers of Zapatillas Dolores.
It receives webhook events, replies with AI-generated or canned text,
and serves the catalog, store profile and conversation history over HTTP.

Running without a subcommand is the same as "shopchat serve".`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&flags.addr, "addr", "", "API listen address (overrides $API_ADDR and $PORT)")
	pf.StringVar(&flags.dbDSN, "db-dsn", "", "application store DSN; empty means in-memory (overrides $DATABASE_URL)")
	pf.StringVar(&flags.seedDir, "seed-dir", "", "directory holding tienda and productos seed files (overrides $SEED_DIR)")
	pf.StringVar(&flags.stateDir, "state-dir", "", "state directory for SQLite files (overrides $SHOPCHAT_STATE_DIR)")

	root.AddCommand(serveCmd(flags), askCmd(flags), catalogCmd(flags))
	return root
}

func serveCmd(flags *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.qrOutput, "qr-output", "", "path to write the whatsmeow login QR code")
	cmd.Flags().BoolVar(&flags.numericCode, "numeric-code", false, "use a numeric whatsmeow login code instead of a QR code")
	return cmd
}

func askCmd(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Print the reply the assistant would give to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dsn := loadConfig(cmd, flags)
			st, err := openStore(cfg, dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			gen, err := newGenerator(cfg, st)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			fmt.Fprintln(cmd.OutOrStdout(), gen.Generate(cmd.Context(), question, ""))
			return nil
		},
	}
}

func catalogCmd(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the store card and catalog as customers see them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dsn := loadConfig(cmd, flags)
			st, err := openStore(cfg, dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			profile, err := st.GetStoreProfile()
			if err != nil {
				return fmt.Errorf("read store profile: %w", err)
			}
			products, err := st.GetProducts(models.ProductFilter{})
			if err != nil {
				return fmt.Errorf("read products: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, messaging.FormatStoreInfo(profile))
			fmt.Fprintln(out)
			fmt.Fprintln(out, messaging.FormatCatalog(products))
			return nil
		},
	}
}

// loadConfig resolves the environment, applies flag overrides and installs the
// default logger. It returns the application store DSN.
func loadConfig(cmd *cobra.Command, flags *Flags) (config.Config, string) {
	cfg := config.Load(flags.envFile)
	if changed(cmd, "addr") {
		cfg.Addr = flags.addr
	}
	if changed(cmd, "seed-dir") {
		cfg.SeedDir = flags.seedDir
	}
	if changed(cmd, "state-dir") {
		cfg.StateDir = flags.stateDir
	}
	dsn := cfg.StoreDSN()
	if changed(cmd, "db-dsn") {
		dsn = flags.dbDSN
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Debug("loadConfig: configuration resolved", "provider", cfg.Provider, "addr", cfg.Addr,
		"state_dir", cfg.StateDir, "seed_dir", cfg.SeedDir, "dsn_set", dsn != "")
	return cfg, dsn
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

// ensureStateDir creates the parent directory of a file-based DSN.
func ensureStateDir(dsn string) error {
	if dsn == "" || store.DetectDSNType(dsn) == "postgres" {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	slog.Debug("ensureStateDir: creating directory for file-based database", "dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("ensureStateDir: failed to create directory", "dir", dir, "error", err)
		return err
	}
	return nil
}

// usesStateDir reports whether serve writes files under the state directory.
func usesStateDir(cfg config.Config, dsn string) bool {
	if cfg.Provider == config.ProviderWhatsmeow {
		return true
	}
	return dsn != "" && cfg.DatabaseURL == "" && store.DetectDSNType(dsn) == "sqlite3"
}

// openStore opens the application store and applies the seed files.
func openStore(cfg config.Config, dsn string) (store.Store, error) {
	if err := ensureStateDir(dsn); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	st, err := store.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	res, err := store.LoadSeed(st, cfg.SeedDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load seed data: %w", err)
	}
	slog.Info("openStore: store ready", "products", res.Products, "profile_file", res.ProfileFile)
	return st, nil
}

func newGenerator(cfg config.Config, st store.Store) (*responder.Generator, error) {
	client, err := genai.NewClient(
		genai.WithAPIKey(cfg.OpenRouterAPIKey),
		genai.WithModel(cfg.OpenRouterModel),
		genai.WithBaseURL(cfg.OpenRouterBaseURL),
		genai.WithDebugMode(cfg.GenAIDebug),
		genai.WithStateDir(cfg.StateDir),
	)
	if err != nil {
		return nil, fmt.Errorf("create AI client: %w", err)
	}
	return responder.NewGenerator(st, client), nil
}

// newTransport builds the configured transport. The returned cleanup is never nil.
func newTransport(ctx context.Context, cfg config.Config, flags *Flags) (messaging.Transport, func(), error) {
	noop := func() {}
	switch cfg.Provider {
	case config.ProviderCloud:
		c, err := cloudapi.NewClient(
			cloudapi.WithAccessToken(cfg.WhatsAppToken),
			cloudapi.WithPhoneNumberID(cfg.WhatsAppPhoneNumberID),
			cloudapi.WithAPIVersion(cfg.WhatsAppAPIVersion),
		)
		return c, noop, err
	case config.ProviderTwilio:
		c, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID),
			twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken),
			twiliowhatsapp.WithFromWhats(cfg.TwilioFromNumber),
		)
		return c, noop, err
	case config.ProviderWhatsmeow:
		if err := ensureStateDir(cfg.WhatsmeowStoreDSN()); err != nil {
			return nil, noop, err
		}
		opts := []whatsapp.Option{whatsapp.WithDBDSN(cfg.WhatsmeowStoreDSN())}
		if flags.qrOutput != "" {
			opts = append(opts, whatsapp.WithQRCodeOutput(flags.qrOutput))
		}
		if flags.numericCode {
			opts = append(opts, whatsapp.WithNumericCode())
		}
		c, err := whatsapp.NewClient(ctx, opts...)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Disconnect, nil
	case config.ProviderMock:
		slog.Warn("newTransport: mock transport selected, replies are recorded but not delivered")
		return messaging.NewMockTransport(), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

func runServe(cmd *cobra.Command, flags *Flags) error {
	cfg, dsn := loadConfig(cmd, flags)
	if err := cfg.Validate(); err != nil {
		slog.Error("runServe: invalid configuration", "error", err)
		return err
	}

	if usesStateDir(cfg, dsn) {
		lock, err := lockfile.Acquire(cfg.StateDir)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	gen, err := newGenerator(cfg, st)
	if err != nil {
		return err
	}
	transport, cleanup, err := newTransport(ctx, cfg, flags)
	if err != nil {
		return fmt.Errorf("create %s transport: %w", cfg.Provider, err)
	}
	defer cleanup()

	delivery := messaging.NewDelivery(transport)
	rt := router.New(gen, delivery, st, router.WithPriceList(router.PriceList{URL: cfg.PriceListURL}))

	apiOpts := []api.Option{
		api.WithAddr(cfg.Addr),
		api.WithVerifyToken(cfg.WhatsAppVerifyToken),
		api.WithAppSecret(cfg.WhatsAppAppSecret),
	}
	if cfg.Provider == config.ProviderTwilio {
		apiOpts = append(apiOpts, api.WithTwilioValidation(cfg.TwilioAuthToken, cfg.PublicURL))
	}
	server := api.NewServer(st, rt, delivery, gen, apiOpts...)

	if wa, ok := transport.(*whatsapp.Client); ok {
		if err := wa.OnMessage(func(msg models.InboundMessage) {
			server.Dispatch(context.WithoutCancel(ctx), msg)
		}); err != nil {
			return fmt.Errorf("register whatsmeow handler: %w", err)
		}
	}

	slog.Info("runServe: ShopChat starting", "provider", transport.Name(), "addr", cfg.Addr, "ai_configured", gen.AIConfigured())
	if err := server.Run(ctx); err != nil {
		slog.Error("runServe: server stopped with error", "error", err)
		return err
	}
	slog.Info("runServe: ShopChat exited successfully")
	return nil
}
