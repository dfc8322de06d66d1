package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/homegraph/helper"
	"github.com/siherrmann/homegraph/model"
)

// Querier is the query surface served over HTTP and websocket.
// QueryNeighborhood wraps graph.ErrFocusNotFound when the focus does not
// resolve. Any other error is a failure of the query itself.
type Querier interface {
	QueryNeighborhood(ctx context.Context, focusID string, maxDepth int, filters model.Filters) (model.NeighborhoodResult, error)
	Search(ctx context.Context, fragment string, limit int) []model.SearchResult
	Statistics(ctx context.Context) model.GraphStatistics
}

// Options configures request defaults and limits.
type Options struct {
	DefaultDepth int
	SearchLimit  int
	// RateLimit is the number of websocket commands per second allowed
	// per connection, RateBurst the bucket size.
	RateLimit float64
	RateBurst int
}

// DefaultOptions returns the options used for zero values.
func DefaultOptions() Options {
	return Options{
		DefaultDepth: model.DefaultDepth,
		SearchLimit:  model.DefaultSearchLimit,
		RateLimit:    20,
		RateBurst:    40,
	}
}

// Server exposes a Querier over HTTP and websocket.
type Server struct {
	graph    Querier
	opts     Options
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewServer creates a new server. Zero options fall back to DefaultOptions.
func NewServer(graph Querier, opts Options, logger *slog.Logger) *Server {
	defaults := DefaultOptions()
	if opts.DefaultDepth == 0 {
		opts.DefaultDepth = defaults.DefaultDepth
	}
	if opts.SearchLimit == 0 {
		opts.SearchLimit = defaults.SearchLimit
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = defaults.RateLimit
	}
	if opts.RateBurst == 0 {
		opts.RateBurst = defaults.RateBurst
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		graph: graph,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger,
	}
}

// SetupRouter registers all routes on a new gin engine.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/neighborhood", s.HandleNeighborhood)
	api.GET("/search", s.HandleSearch)
	api.GET("/statistics", s.HandleStatistics)
	api.GET("/websocket", s.HandleWebsocket)

	return r
}

// Run serves on address until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, address string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Serving", slog.String("address", address))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return helper.NewError("serve", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return helper.NewError("shutdown", err)
	}
	s.log.Info("Server stopped")
	return nil
}

const requestIDHeader = "X-Request-ID"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		s.log.Debug("Handled request",
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
