package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const picturesRoute = "/static/profile_pics"

type WebServer struct {
	tracker  *Tracker
	tokens   *TokenIssuer
	pictures *PictureStore
	metrics  *Metrics
	logger   *slog.Logger
	router   *gin.Engine
}

func NewWebServer(tracker *Tracker, tokens *TokenIssuer, pictures *PictureStore, metrics *Metrics, logger *slog.Logger) *WebServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), metrics.Middleware(), noCache())

	server := &WebServer{
		tracker:  tracker,
		tokens:   tokens,
		pictures: pictures,
		metrics:  metrics,
		logger:   logger,
		router:   router,
	}

	server.setupRoutes()
	return server
}

func (ws *WebServer) setupRoutes() {
	ws.router.Static(picturesRoute, ws.pictures.Dir())
	ws.router.GET("/metrics", gin.WrapH(ws.metrics.Handler()))

	// API routes
	api := ws.router.Group("/api", ws.tokens.Identify())
	{
		api.POST("/register", RequireAnonymous(), ws.register)
		api.POST("/login", ws.login)
		api.GET("/home", ws.home)

		// Account
		account := api.Group("/account", RequireUser())
		account.GET("", ws.getAccount)
		account.PUT("", ws.updateAccount)
		account.POST("/picture", ws.uploadPicture)

		// Stocks
		api.GET("/stocks", ws.listStocks)
		api.POST("/stocks", RequireUser(), ws.createStock)
		api.GET("/stocks/:id", ws.getStock)
		api.PUT("/stocks/:id", RequireUser(), ws.updateStock)
		api.DELETE("/stocks/:id", RequireUser(), ws.deleteStock)

		// Analyses and price history
		api.GET("/stocks/:id/analyses", ws.listStockAnalyses)
		api.POST("/stocks/:id/analyses", RequireUser(), ws.createAnalysis)
		api.GET("/stocks/:id/diagrams", ws.listDiagrams)
		api.POST("/stocks/:id/diagrams", RequireUser(), ws.createDiagram)
		api.POST("/stocks/:id/quote", RequireUser(), ws.recordQuote)
		api.POST("/stocks/:id/history", RequireUser(), ws.importHistory)

		api.GET("/analyses/:id", ws.getAnalysis)
		api.PUT("/analyses/:id", RequireUser(), ws.updateAnalysis)
		api.DELETE("/analyses/:id", RequireUser(), ws.deleteAnalysis)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ws.logger.Info("web server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	ws.logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (ws *WebServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request tagged with a request id, which is
// also echoed back in the X-Request-ID header.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		logger.Info("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func noCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
