package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bhandras/netconsole/internal/api"
	"github.com/bhandras/netconsole/internal/bridge"
	"github.com/bhandras/netconsole/internal/config"
	"github.com/bhandras/netconsole/internal/crypto"
	"github.com/bhandras/netconsole/internal/database"
	"github.com/bhandras/netconsole/internal/netconf"
	"github.com/bhandras/netconsole/internal/rendezvous"
	"github.com/bhandras/netconsole/internal/session"
	"github.com/bhandras/netconsole/internal/store"
	"github.com/bhandras/netconsole/internal/websocket"
	"github.com/bhandras/netconsole/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Errorf("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("netconsole", pflag.ContinueOnError)
	configFile := flags.String("config", "", "YAML config file")
	addr := flags.String("addr", "", "listen address (default :5555)")
	dbPath := flags.String("db", "", "SQLite database path")
	schemaRoot := flags.String("schema-dir", "", "directory for per-user schema files")
	debug := flags.Bool("debug", false, "enable debug logging and gin debug mode")
	logLevel := flags.String("log-level", "", "trace, debug, info, warn or error")
	tlsCert := flags.String("tls-cert", "", "PEM certificate chain for HTTPS")
	tlsKey := flags.String("tls-key", "", "PEM private key for HTTPS")
	issueToken := flags.String("issue-token", "", "print a bearer token for USER and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var overrides config.Overrides
	if flags.Changed("config") {
		overrides.ConfigFile = configFile
	}
	if flags.Changed("addr") {
		overrides.Addr = addr
	}
	if flags.Changed("db") {
		overrides.DatabasePath = dbPath
	}
	if flags.Changed("schema-dir") {
		overrides.SchemaRoot = schemaRoot
	}
	if flags.Changed("debug") {
		overrides.Debug = debug
	}
	if flags.Changed("log-level") {
		overrides.LogLevel = logLevel
	}
	if flags.Changed("tls-cert") || flags.Changed("tls-key") {
		overrides.TLS = &config.TLSConfig{CertFile: *tlsCert, KeyFile: *tlsKey}
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Debug {
		logger.SetLevel(logger.LevelDebug)
	}
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtManager, err := crypto.NewJWTManager(cfg.MasterSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("create JWT manager: %w", err)
	}
	if *issueToken != "" {
		token, err := jwtManager.CreateToken(*issueToken)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	logger.Infof("Opening database: %s", cfg.DatabasePath)
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	devices := store.NewDeviceStore(db.DB)
	profiles := store.NewProfileStore(db.DB)
	schemas := store.NewSchemaDir(cfg.SchemaRoot)

	answers := rendezvous.New[bridge.Answer]()
	socketIOServer := websocket.NewSocketIOServer(jwtManager, answers, cfg.AllowedOrigins)
	defer socketIOServer.Close()

	prompts := bridge.New(answers, socketIOServer, devices, schemas, bridge.Timeouts{
		HostKey:     cfg.Prompts.HostKey,
		Credentials: cfg.Prompts.Credentials,
		Schema:      cfg.Prompts.Schema,
	})
	manager := session.NewManager(
		netconf.NewSSHRuntime(cfg.DialTimeout),
		session.NewRegistry(),
		devices,
		prompts,
		schemas,
	)
	defer manager.Shutdown()

	router := api.NewRouter(api.Deps{
		JWT:            jwtManager,
		Sessions:       manager,
		Devices:        devices,
		Profiles:       profiles,
		Socket:         socketIOServer,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.TLS != nil {
			logger.Infof("netconsole listening on https://%s", cfg.Addr)
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			logger.Infof("netconsole listening on http://%s", cfg.Addr)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Infof("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
