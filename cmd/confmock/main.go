// Command confmock serves the conference backend used by confsync during
// development: the schedule comes from a JSON fixture on disk, votes and
// favorites live in memory, and edits to the fixture file are picked up
// while the server runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/confsync/confsync/internal/config"
	"github.com/confsync/confsync/internal/confmock"
	"github.com/confsync/confsync/internal/logger"

	"github.com/enrichman/httpgrace"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	logger.SetLevel(cfg.Misc.LogLevel)
	logger.WithComponent("main").Infof("Mock conference service will run on port: %d", cfg.Server.Port)

	fixture, err := confmock.NewFixtureStore(cfg.Misc.FixturePath)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot open fixture: %v", err)
	}

	doc, err := fixture.Load()
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot load fixture: %v", err)
	}
	logger.WithComponent("main").Infof("Loaded %d sessions from %s", len(doc.Sessions), cfg.Misc.FixturePath)

	state := confmock.NewState(*doc, nil)
	api := confmock.NewAPI(state, fixture)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := fixture.StartWatcher(ctx, state); err != nil {
		logger.WithComponent("main").Fatalf("cannot watch fixture: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := confmock.SetupRoutes(api, cfg.Server.RequestTimeout, cfg.Server.CORSAllowedOrigins)
	srv := createGraceHttpServer(ctx, "confmock", cfg.Server, r)

	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Fatal(err)
	}
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
