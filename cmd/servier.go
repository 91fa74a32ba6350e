package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/logx"
)

func main() {
	cfg := config.Load()

	switch cfg.Server.LogLevel {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	logx.Info("starting pierre")

	container := NewContainer(cfg)
	defer container.Cleanup()
	container.StartBackgroundServices(context.Background())

	app := fiber.New(fiber.Config{
		AppName:               "pierre",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		BodyLimit:             1 * 1024 * 1024,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.Server.CORSOrigins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}))

	registerRoutes(app, container)

	app.Use(notFoundHandler)

	wsServer := startWSServer(container, cfg.Server)
	startServer(app, cfg.Server, wsServer)
}

// registerRoutes mounts every protocol surface C4-C7 expose on the
// fiber app. MCP/A2A/REST tool endpoints sit behind C8's Authenticate
// middleware; the OAuth2 authorization-server endpoints are public by
// RFC 6749's own design (the authorize/token endpoints authenticate
// the caller themselves, via ResourceOwnerResolver or client
// credentials). The WebSocket transport is not mounted here — see
// startWSServer.
func registerRoutes(app *fiber.App, c *Container) {
	c.Health.RegisterRoutes(app)

	c.OAuth2AS.Handlers.RegisterRoutes(app)
	logx.Info("oauth2as routes registered")

	authed := app.Group("", c.AuthMW.Authenticate())
	c.MCP.RegisterHTTPRoute(authed, "/mcp")
	authed.Post("/mcp/sse", c.MCP.SSEHandler())
	c.A2A.RegisterRoutes(authed, "/a2a")
	c.Tools.RegisterRoutes(authed)
	logx.Info("mcp/a2a/rest tool routes registered")
}

// startWSServer runs mcp's WebSocket transport on its own net/http
// listener (see ServerConfig.WSPort's doc comment for why it can't
// share the fiber app) and returns it unstarted so the caller can pair
// its shutdown with the main app's.
func startWSServer(c *Container, cfg config.ServerConfig) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/ws", c.MCP.WSHandler(c.AuthMW.AuthenticateHTTP))
	srv := &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.WSPort),
		Handler: mux,
	}
	go func() {
		logx.Infof("mcp websocket listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatalf("websocket server error: %v", err)
		}
	}()
	return srv
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Get("X-Request-ID"),
	})
}

// globalErrorHandler converts internal errors to standard HTTP
// responses — kept from the teacher's own error-handling shape
// (fiber.Error / errx.Error / unknown-error branches), generalized to
// Pierre's own errx.Error fields.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"request_id": c.Get("X-Request-ID"),
	}).Errorf("request error: %v", err)

	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error":      e.Message,
			"code":       "FIBER_ERROR",
			"request_id": c.Get("X-Request-ID"),
		})
	}

	if e, ok := err.(*errx.Error); ok {
		response := fiber.Map{
			"error":      e.Message,
			"code":       e.Code,
			"type":       string(e.Type),
			"request_id": c.Get("X-Request-ID"),
		}
		if len(e.Details) > 0 {
			response["details"] = e.Details
		}
		return c.Status(e.HTTPStatus).JSON(response)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "internal server error",
		"code":       "INTERNAL_ERROR",
		"request_id": c.Get("X-Request-ID"),
	})
}

func startServer(app *fiber.App, cfg config.ServerConfig, wsServer *http.Server) {
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)
	go func() {
		logx.Infof("listening on %s", addr)
		if err := app.Listen(addr); err != nil && err != http.ErrServerClosed {
			logx.Fatalf("server error: %v", err)
		}
	}()
	gracefulShutdown(app, wsServer)
}

func gracefulShutdown(app *fiber.App, wsServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logx.Infof("received signal: %v, shutting down", sig)

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("server forced to shutdown: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := wsServer.Shutdown(ctx); err != nil {
		logx.Errorf("websocket server forced to shutdown: %v", err)
	}
	logx.Info("server exited")
}

