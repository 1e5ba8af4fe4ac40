// Package app wires the relay together: definitions, client handles, the
// broadcast consumer with its sinks, and the HTTP front.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"botrelay/internal/config"
	"botrelay/internal/metrics"
	"botrelay/internal/microservices/broadcast"
	"botrelay/internal/microservices/http-api/handler"
	"botrelay/internal/microservices/http-api/middleware"
	"botrelay/internal/microservices/http-api/service"
	"botrelay/internal/microservices/rpc"
	"botrelay/internal/microservices/websocket"
	"botrelay/internal/protodef"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	catalog  *protodef.Catalog
	clients  *rpc.Clients
	metrics  *metrics.Metrics
	hub      *websocket.Hub
	redis    *redis.Client
	consumer *broadcast.Consumer
	router   *gin.Engine

	server   *http.Server
	listener net.Listener

	closeOnce sync.Once
}

// New loads the definitions and builds every component. Only a definition
// or client construction failure is an error; an unreachable Redis is
// logged and skipped.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := protodef.Load(ctx, cfg.ProtoPaths, LoaderOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	logger.Info("definitions loaded", "files", len(catalog.Files()), "services", catalog.Services())

	clients, err := rpc.NewClients(catalog, cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("create clients: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		catalog: catalog,
		clients: clients,
	}

	if cfg.PrometheusEnabled {
		a.metrics = metrics.New()
	}

	sinks := broadcast.MultiSink{broadcast.NewLogSink(logger)}
	if cfg.RedisURL != "" {
		client, err := broadcast.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis relay disabled", "error", err)
		} else {
			a.redis = client
			sinks = append(sinks, broadcast.NewRedisSink(client, cfg.RedisChannel, logger))
		}
	}
	if cfg.WebsocketEnabled {
		a.hub = websocket.NewHub(logger, a.metrics)
		sinks = append(sinks, a.hub)
	}

	a.consumer = broadcast.NewConsumer(
		broadcast.ClientSource(clients.Broadcast),
		sinks,
		broadcast.WithLogger(logger),
		broadcast.WithMetrics(a.metrics),
		broadcast.WithReconnect(broadcast.ReconnectPolicy{
			Enabled:     cfg.ReconnectEnabled,
			BaseDelay:   cfg.ReconnectBaseDelay,
			MaxDelay:    cfg.ReconnectMaxDelay,
			MaxAttempts: cfg.ReconnectMaxAttempts,
		}),
	)

	a.router = a.setupRouter()
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// LoaderOptions maps the PROTO_* settings onto loader options.
func LoaderOptions(cfg *config.Config) protodef.Options {
	return protodef.Options{
		KeepCase:      cfg.ProtoKeepCase,
		LongsAsString: cfg.ProtoLongsAsString,
		EnumsAsString: cfg.ProtoEnumsAsString,
		Defaults:      cfg.ProtoDefaults,
		Oneofs:        cfg.ProtoOneofs,
	}
}

func (a *App) setupRouter() *gin.Engine {
	// gin's route dump goes to stdout next to the startup line
	if !a.cfg.IsDevelopment() || a.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Observe(a.logger, a.metrics))

	botService := service.NewBotService(a.clients.Bot, a.cfg.BotID, a.cfg.UpstreamTimeout, a.metrics, a.logger)
	botHandler := handler.NewBotHandler(botService)
	botHandler.RegisterRoutes(r.Group("/", middleware.RateLimit(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)))

	if a.metrics != nil {
		r.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}
	if a.hub != nil {
		r.GET("/ws", websocket.WSHandler(a.hub))
	}
	return r
}

// Handler exposes the HTTP front without a listener.
func (a *App) Handler() http.Handler {
	return a.router
}

// Catalog returns the loaded definitions.
func (a *App) Catalog() *protodef.Catalog {
	return a.catalog
}

// Consumer returns the broadcast consumer.
func (a *App) Consumer() *broadcast.Consumer {
	return a.consumer
}

// Listen binds the HTTP listener and prints the startup line.
func (a *App) Listen() error {
	lis, err := net.Listen("tcp", a.cfg.HTTPAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.HTTPAddr(), err)
	}
	a.listener = lis

	if a.out != nil {
		fmt.Fprintf(a.out, "Live at http://%s\n", lis.Addr())
	}
	a.logger.Info("http front listening", "addr", lis.Addr().String())
	return nil
}

// Addr is the bound HTTP address, empty before Listen.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Serve runs the HTTP front, the consumer and the websocket hub until ctx is
// cancelled or the HTTP server fails. The consumer finishing, for any
// reason, leaves the HTTP front running.
func (a *App) Serve(ctx context.Context) error {
	defer a.Close()

	if a.listener == nil {
		if err := a.Listen(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown incomplete", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		// the sinks already reported the outcome
		err := a.consumer.Run(gctx)
		a.logger.Debug("broadcast consumer stopped", "state", a.consumer.State().String(), "error", err)
		return nil
	})

	if a.hub != nil {
		g.Go(func() error {
			a.hub.Run(gctx)
			return nil
		})
	}

	err := g.Wait()
	a.logger.Info("relay stopped")
	return err
}

// Close releases the client handles and the Redis connection.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.clients.Close()
		if a.redis != nil {
			err = errors.Join(err, a.redis.Close())
		}
	})
	return err
}
