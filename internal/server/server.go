package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/contribpulse/contribpulse/internal/config"
	apperrors "github.com/contribpulse/contribpulse/internal/errors"
	"github.com/contribpulse/contribpulse/internal/monitoring"
	"github.com/contribpulse/contribpulse/internal/pipeline"
	"github.com/contribpulse/contribpulse/internal/types"
)

// Store is the read surface the HTTP API queries.
type Store interface {
	Leaderboard(ctx context.Context, limit int) ([]types.UserProfile, []int, error)
	UserStatsByUsername(ctx context.Context, username string) (*types.UserStats, error)
	TagScoresByUser(ctx context.Context, username string) ([]types.TagScore, error)
	SummariesForDate(ctx context.Context, date string, interval types.IntervalType) ([]types.UserSummary, error)
}

// Server exposes the pipeline over HTTP.
type Server struct {
	cfg      *config.Config
	store    Store
	pipeline *pipeline.Pipeline
	logger   *monitoring.Logger
	registry *prometheus.Registry
	router   *gin.Engine
	srv      *http.Server
}

// New builds the HTTP server with its middleware stack and routes.
func New(cfg *config.Config, store Store, p *pipeline.Pipeline, logger *monitoring.Logger, registry *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		store:    store,
		pipeline: p,
		logger:   logger,
		registry: registry,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.rateLimiter())

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	api.POST("/process", s.handleProcess)
	api.GET("/leaderboard", s.handleLeaderboard)
	api.GET("/summaries", s.handleSummaries)
	api.GET("/users/:username/stats", s.handleUserStats)
	api.GET("/users/:username/expertise", s.handleUserExpertise)

	s.router = r
	s.srv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start begins serving and blocks until the listener fails or closes.
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.HTTPRequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(),
			c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) rateLimiter() gin.HandlerFunc {
	rps := s.cfg.Server.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := s.cfg.Server.RateBurst
	if burst <= 0 {
		burst = 20
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

type processRequest struct {
	Repository string `json:"repository" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
	Interval   string `json:"interval"`
	Force      bool   `json:"force"`
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	for _, d := range []string{req.StartDate, req.EndDate} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
			return
		}
	}
	if req.StartDate > req.EndDate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must not be after end_date"})
		return
	}

	interval := types.IntervalDay
	switch req.Interval {
	case "", string(types.IntervalDay):
	case string(types.IntervalWeek):
		interval = types.IntervalWeek
	case string(types.IntervalMonth):
		interval = types.IntervalMonth
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be day, week, or month"})
		return
	}

	result, err := s.pipeline.ProcessTimeframe(c.Request.Context(), pipeline.Options{
		Repository: req.Repository,
		Window:     types.DateRange{StartDate: req.StartDate, EndDate: req.EndDate},
		Interval:   interval,
		Force:      req.Force,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	profiles, scores, err := s.store.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, gin.H{
			"rank":     i + 1,
			"username": p.Username,
			"score":    scores[i],
		})
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (s *Server) handleSummaries(c *gin.Context) {
	date := c.Query("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	interval := types.IntervalType(c.DefaultQuery("interval", string(types.IntervalDay)))
	switch interval {
	case types.IntervalDay, types.IntervalWeek, types.IntervalMonth:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be day, week, or month"})
		return
	}

	summaries, err := s.store.SummariesForDate(c.Request.Context(), date, interval)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": date, "interval": interval, "summaries": summaries})
}

func (s *Server) handleUserStats(c *gin.Context) {
	stats, err := s.store.UserStatsByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleUserExpertise(c *gin.Context) {
	scores, err := s.store.TagScoresByUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": c.Param("username"), "expertise": scores})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
