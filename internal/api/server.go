// Package api exposes the operator interface over HTTP. Handlers only send
// commands to the engine and render the replies; no trading state lives here.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirphl/cycle-trader/internal/engine"
	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/position"
)

// Controller is the command surface the server drives. *engine.Engine
// implements it.
type Controller interface {
	Pause(ctx context.Context, minutes int) (string, error)
	Resume(ctx context.Context) (string, error)
	SetTradeAmount(ctx context.Context, amountUSD float64) (string, error)
	SetSymbol(ctx context.Context, symbol string) (string, error)
	ToggleAlerts(ctx context.Context) (string, error)
	ManualTrade(ctx context.Context, symbol string, side position.Side, amountUSD float64) (string, error)
	Snapshot(ctx context.Context) (*engine.Report, error)
}

// Server HTTP API server
type Server struct {
	router *gin.Engine
	ctrl   Controller
	log    *logger.Logger
	http   *http.Server
}

// NewServer creates the API server around a command controller.
func NewServer(ctrl Controller, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		ctrl:   ctrl,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/pause", s.handlePause)
		api.POST("/resume", s.handleResume)
		api.POST("/trade-amount", s.handleTradeAmount)
		api.POST("/symbol", s.handleSymbol)
		api.POST("/alerts/toggle", s.handleToggleAlerts)
		api.POST("/trade", s.handleManualTrade)
	}
}

// Start serves until Stop is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithComponent("api").Infof("listening on %s", addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	report, err := s.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handlePause(c *gin.Context) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.ctrl.Pause(c.Request.Context(), req.Minutes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) handleResume(c *gin.Context) {
	msg, err := s.ctrl.Resume(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) handleTradeAmount(c *gin.Context) {
	var req struct {
		AmountUSD float64 `json:"amount_usd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.ctrl.SetTradeAmount(c.Request.Context(), req.AmountUSD)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) handleSymbol(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.ctrl.SetSymbol(c.Request.Context(), req.Symbol)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) handleToggleAlerts(c *gin.Context) {
	msg, err := s.ctrl.ToggleAlerts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) handleManualTrade(c *gin.Context) {
	var req struct {
		Symbol    string  `json:"symbol"`
		Side      string  `json:"side"`
		AmountUSD float64 `json:"amount_usd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.ctrl.ManualTrade(c.Request.Context(), req.Symbol, position.Side(req.Side), req.AmountUSD)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// fail maps command errors onto HTTP codes: invalid parameters are the
// caller's fault, everything else is reported as an internal failure.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, engine.ErrInvalidCommand) {
		status = http.StatusBadRequest
	}
	s.log.WithComponent("api").WithError(err).Warnf("%s %s failed", c.Request.Method, c.Request.URL.Path)
	c.JSON(status, gin.H{"error": err.Error()})
}
