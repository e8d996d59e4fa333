// Package servecmder provides the serve command that runs the chatrelay
// API server and, when configured, the MCP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/api/mcp"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/sqlitepath"
	"github.com/papercomputeco/chatrelay/pkg/assembler"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
	"github.com/papercomputeco/chatrelay/pkg/uploads"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/header"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// servedFlags are the registry flags bound to viper by serve.
var servedFlags = []string{
	config.FlagAPIListen,
	config.FlagIdentityHeader,
	config.FlagMCPListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagProvider,
	config.FlagVision,
	config.FlagUpstreamTimeout,
	config.FlagUploadsDir,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagEventWorkers,
}

type ServeCommander struct {
	flags serveFlags

	configDir string
	debug     bool

	v      *viper.Viper
	logger *slog.Logger
}

// serveFlags hold the flag targets. Values are read back through viper so
// the precedence chain applies.
type serveFlags struct {
	apiListen       string
	identityHeader  string
	mcpListen       string
	storageDriver   string
	sqlitePath      string
	postgresDSN     string
	provider        string
	vision          bool
	upstreamTimeout string
	uploadsDir      string
	kafkaBrokers    string
	kafkaTopic      string
	eventWorkers    uint
}

const serveLongDesc string = `Run the chatrelay servers.

The API server exposes conversations, uploads, credentials and the send
relay under /v1. When mcp.listen is set, an MCP server exposing read-only
conversation tools runs alongside it.

Settings come from flags, CHATRELAY_* environment variables and
config.toml in the .chatrelay/ directory, in that order. Changes to
relay.enable_vision in config.toml apply without a restart.

Examples:
  chatrelay serve
  chatrelay serve --storage-driver postgres --postgres postgres://localhost/chatrelay
  chatrelay serve --kafka-brokers localhost:9092 --vision`

const serveShortDesc string = "Run the chatrelay servers"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, servedFlags)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagIdentityHeader, &f.identityHeader)
	config.AddStringFlag(cmd, config.Flags, config.FlagMCPListen, &f.mcpListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &f.provider)
	config.AddBoolFlag(cmd, config.Flags, config.FlagVision, &f.vision)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstreamTimeout, &f.upstreamTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagUploadsDir, &f.uploadsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.kafkaTopic)
	config.AddUintFlag(cmd, config.Flags, config.FlagEventWorkers, &f.eventWorkers)

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(term.IsTerminal(int(os.Stdout.Fd()))),
	)

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving chatrelay directory: %w", err)
	}

	storer, err := c.newStorageDriver(ctx, dir)
	if err != nil {
		return err
	}
	defer storer.Close()

	uploadsDir := c.v.GetString("relay.uploads_dir")
	if uploadsDir == "" {
		uploadsDir = filepath.Join(dir, "uploads")
	}
	uploadStore, err := uploads.New(uploadsDir)
	if err != nil {
		return fmt.Errorf("opening uploads directory: %w", err)
	}

	m := metrics.New()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	pool, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: c.v.GetUint("events.workers"),
		OnDrop:     m.ObserveEventDropped,
		Logger:     c.logger,
	})
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("creating event worker pool: %w", err)
	}
	defer pool.Close()

	timeout, err := time.ParseDuration(c.v.GetString("relay.upstream_timeout"))
	if err != nil {
		return fmt.Errorf("invalid relay.upstream_timeout: %w", err)
	}

	live := config.NewLive(c.v, c.logger)
	live.Watch()

	identityHeader := c.v.GetString("api.identity_header")

	engine, err := relay.New(&relay.Config{
		Store:    storer,
		Resolver: credential.NewResolver(storer, c.logger),
		Assembler: assembler.New(&assembler.Config{
			Loader: uploadStore,
			Logger: c.logger,
		}),
		Builder: upstream.NewBuilder(&upstream.Config{
			Endpoints: config.UpstreamEndpoints(c.v),
		}),
		Events:          pool,
		Metrics:         m,
		HTTPClient:      &http.Client{Timeout: timeout},
		Headers:         header.NewHandler(identityHeader),
		DefaultProvider: c.v.GetString("relay.default_provider"),
		Vision:          live.Vision,
		Logger:          c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating relay engine: %w", err)
	}

	apiListen := c.v.GetString("api.listen")
	apiServer, err := api.NewServer(api.Config{
		ListenAddr:     apiListen,
		IdentityHeader: identityHeader,
		Uploads:        uploadStore,
		Metrics:        m,
	}, storer, engine, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	c.logger.Info("starting api server",
		"api_addr", apiListen,
		"default_provider", c.v.GetString("relay.default_provider"),
		"vision", live.Vision(),
	)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	var mcpServer *http.Server
	if mcpListen := c.v.GetString("mcp.listen"); mcpListen != "" {
		mcpServer, err = c.newMCPServer(mcpListen, storer)
		if err != nil {
			return err
		}

		c.logger.Info("starting mcp server", "mcp_addr", mcpListen)
		go func() {
			if err := mcpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("MCP server error: %w", err)
			}
		}()
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	}

	if mcpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mcpServer.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("mcp server shutdown", "error", err)
		}
	}
	return apiServer.Shutdown()
}

func (c *ServeCommander) newStorageDriver(ctx context.Context, dir string) (storage.Driver, error) {
	switch driver := c.v.GetString("storage.driver"); driver {
	case config.DriverPostgres:
		dsn := c.v.GetString("storage.postgres_dsn")
		if dsn == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		storer, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return storer, nil

	case config.DriverMemory:
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.DriverSQLite, "":
		path := sqlitepath.ResolveSQLitePath(c.v.GetString("storage.sqlite_path"), dir)
		storer, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", path)
		return storer, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := config.KafkaBrokers(c.v)
	if len(brokers) == 0 {
		c.logger.Debug("turn events disabled, no kafka brokers configured")
		return nop.NewPublisher(), nil
	}

	topic := c.v.GetString("events.kafka_topic")
	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing turn events to kafka",
		"brokers", brokers,
		"topic", topic,
	)
	return publisher, nil
}

func (c *ServeCommander) newMCPServer(listen string, store storage.ConversationStore) (*http.Server, error) {
	server, err := mcp.NewServer(mcp.Config{
		Store:  store,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mcp server: %w", err)
	}

	return &http.Server{
		Addr:              listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
