// Package api exposes the session engine to a local UI shell over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gyani-interview/client/internal/eventloop"
	"gyani-interview/client/internal/notify"
	"gyani-interview/client/internal/session"
	"gyani-interview/client/internal/transcript"
	apperrors "gyani-interview/client/pkg/errors"
)

// Controller is the session surface the API drives. All calls happen on the
// event loop.
type Controller interface {
	Start() string
	End(reason session.EndReason)
	SubmitText(text string) error
	StartListening() error
	StopListening()
	SetMicMuted(muted bool)
	SetVoiceEnabled(enabled bool)
	SetAudioMuted(muted bool)
	TestConnection()
	Transcript(n int) []transcript.Message
	Snapshot() session.Snapshot
}

// AlertSource lists the alerts currently on screen
type AlertSource interface {
	Active() []notify.Alert
}

// Server routes HTTP requests onto the event loop
type Server struct {
	ctrl   Controller
	loop   eventloop.Caller
	alerts AlertSource
	logger *zap.Logger
}

// NewServer creates the control API
func NewServer(ctrl Controller, loop eventloop.Caller, alerts AlertSource, logger *zap.Logger) *Server {
	return &Server{
		ctrl:   ctrl,
		loop:   loop,
		alerts: alerts,
		logger: logger.With(zap.String("component", "api")),
	}
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

type toggleRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

type voiceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Router builds the gin engine
func (s *Server) Router(production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(s.logger))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/alerts", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"alerts": s.alerts.Active()})
		})

		sess := api.Group("/session")
		sess.GET("", s.getSession)
		sess.POST("/start", s.startSession)
		sess.POST("/end", s.endSession)
		sess.POST("/messages", s.postMessage)
		sess.POST("/ping", s.ping)
		sess.PUT("/mic", s.setMic)
		sess.PUT("/voice", s.setVoice)
		sess.PUT("/audio", s.setAudio)
		sess.POST("/listen", s.startListening)
		sess.DELETE("/listen", s.stopListening)
		sess.GET("/transcript", s.getTranscript)
	}

	return router
}

func (s *Server) getSession(c *gin.Context) {
	var snap session.Snapshot
	if !s.call(c, func() { snap = s.ctrl.Snapshot() }) {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) startSession(c *gin.Context) {
	var snap session.Snapshot
	if !s.call(c, func() {
		s.ctrl.Start()
		snap = s.ctrl.Snapshot()
	}) {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) endSession(c *gin.Context) {
	var snap session.Snapshot
	if !s.call(c, func() {
		s.ctrl.End(session.EndByUser)
		snap = s.ctrl.Snapshot()
	}) {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	if !s.call(c, func() { err = s.ctrl.SubmitText(req.Message) }) {
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func (s *Server) ping(c *gin.Context) {
	if !s.call(c, s.ctrl.TestConnection) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "ok"})
}

func (s *Server) setMic(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.toggle(c, func() { s.ctrl.SetMicMuted(*req.Muted) })
}

func (s *Server) setVoice(c *gin.Context) {
	var req voiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.toggle(c, func() { s.ctrl.SetVoiceEnabled(*req.Enabled) })
}

func (s *Server) setAudio(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.toggle(c, func() { s.ctrl.SetAudioMuted(*req.Muted) })
}

func (s *Server) toggle(c *gin.Context, fn func()) {
	var snap session.Snapshot
	if !s.call(c, func() {
		fn()
		snap = s.ctrl.Snapshot()
	}) {
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) startListening(c *gin.Context) {
	var err error
	if !s.call(c, func() { err = s.ctrl.StartListening() }) {
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "listening"})
}

func (s *Server) stopListening(c *gin.Context) {
	if !s.call(c, s.ctrl.StopListening) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) getTranscript(c *gin.Context) {
	last := 0
	if raw := c.Query("last"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "last must be a non-negative integer"})
			return
		}
		last = n
	}

	var msgs []transcript.Message
	if !s.call(c, func() { msgs = s.ctrl.Transcript(last) }) {
		return
	}
	if msgs == nil {
		msgs = []transcript.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// call runs fn on the event loop, writing an error response if the loop
// could not take it
func (s *Server) call(c *gin.Context, fn func()) bool {
	if err := s.loop.Call(c.Request.Context(), fn); err != nil {
		s.logger.Error("Event loop call failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session engine unavailable"})
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrSessionInactive),
		apperrors.IsErrorType(err, apperrors.ErrorTypeTurn):
		return http.StatusConflict
	case apperrors.IsErrorType(err, apperrors.ErrorTypeSend),
		apperrors.IsErrorType(err, apperrors.ErrorTypeConnection):
		return http.StatusServiceUnavailable
	case apperrors.IsErrorType(err, apperrors.ErrorTypeCapture):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
