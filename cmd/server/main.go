package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/enrichman/httpgrace"

	route "github.com/oculairmedia/Bookstack-MCP/internal/api/route"
	appctx "github.com/oculairmedia/Bookstack-MCP/internal/app"
	"github.com/oculairmedia/Bookstack-MCP/internal/bookstack"
	"github.com/oculairmedia/Bookstack-MCP/internal/config"
	"github.com/oculairmedia/Bookstack-MCP/internal/logger"
	"github.com/oculairmedia/Bookstack-MCP/internal/tools"
)

const version = "1.0.0"

func main() {
	confPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*confPath)
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	// Set log level from configuration
	logLevel, err := logrus.ParseLevel(cfg.Misc.LogLevel)
	if err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', using 'info': %v", cfg.Misc.LogLevel, err)
		logLevel = logrus.InfoLevel
	}
	logger.Logger.SetLevel(logLevel)
	logger.WithComponent("main").Debugf("log level set to: %s", logLevel.String())
	logger.WithComponent("main").Infof("BookStack endpoint: %s", cfg.BookStack.URL)
	logger.WithComponent("main").Infof("transport: %s", cfg.Misc.Transport)

	metrics := bookstack.NewMetrics()
	client := bookstack.NewClient(bookstack.ClientOptions{
		BaseURL:        cfg.BookStack.URL,
		TokenID:        cfg.BookStack.TokenID,
		TokenSecret:    cfg.BookStack.TokenSecret,
		RequestTimeout: cfg.BookStack.RequestTimeout,
		UploadTimeout:  cfg.BookStack.UploadTimeout,
		FetchTimeout:   cfg.BookStack.FetchTimeout,
		MaxRetries:     cfg.BookStack.MaxRetries,
		Metrics:        metrics,
	})
	listCache := bookstack.NewListCache(cfg.Cache.ListTTL, metrics)
	service := bookstack.NewService(client, listCache, metrics)

	app, err := appctx.New(cfg, service, listCache, metrics)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	app.StartConfigWatcher(*confPath)

	server := tools.NewServer(service, version)

	switch cfg.Misc.Transport {
	case "stdio":
		runStdio(app, server)
	default:
		runHTTP(app, server)
	}
}

// runStdio serves MCP over stdin/stdout. All logging goes to stderr; stdout
// carries only the protocol stream.
func runStdio(app *appctx.App, server *mcp.Server) {
	logger.WithComponent("main").Info("serving MCP over stdio")
	if err := server.Run(app.BaseCtx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithComponent("main").Fatalf("stdio server error: %v", err)
	}
}

func runHTTP(app *appctx.App, server *mcp.Server) {
	gin.SetMode(app.Config.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(app, server)
	srv := createGraceHTTPServer(app.BaseCtx, "mcp-server", app.Config.Server, r)

	logger.WithComponent("main").Infof("serving MCP over HTTP on port %d", app.Config.Server.Port)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", app.Config.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Fatal(err)
	}
}

func createGraceHTTPServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s....", name)
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
