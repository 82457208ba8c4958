// Package httpapi exposes registry and entries calls over HTTP with gin.
//
// The authenticated caller id is taken from the X-Caller-ID header, which the
// fronting proxy sets after authentication. Mutating calls go through the
// engine's single-writer loop; queries read committed state directly.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roach88/dmap/internal/engine"
	"github.com/roach88/dmap/internal/entries"
	"github.com/roach88/dmap/internal/eventlog"
	"github.com/roach88/dmap/internal/ir"
	"github.com/roach88/dmap/internal/registry"
)

// CallerHeader carries the authenticated caller id.
const CallerHeader = "X-Caller-ID"

// CallIDHeader optionally carries a client-chosen correlation id.
const CallIDHeader = "X-Call-ID"

const callerKey = "caller"

// Server holds the handlers' dependencies.
type Server struct {
	Engine   *engine.Engine
	Registry *registry.Registry
	Entries  *entries.Entries
	Events   eventlog.Log
	Log      zerolog.Logger
}

// NewRouter builds the gin engine. mode is a gin mode: debug, release or test.
func NewRouter(s *Server, mode string) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": ir.EngineVersion})
	})

	v1 := r.Group("/v1")

	v1.GET("/members", s.listMembers)
	v1.GET("/members/:id/group", s.getGroup)
	v1.GET("/members/:id/score", s.getScore)
	v1.GET("/groups/:group/scores", s.listGroupScores)
	v1.GET("/events", s.listEvents)

	calls := v1.Group("", requireCaller())
	calls.POST("/members", s.join)
	calls.DELETE("/members/me", s.removeMember)
	calls.PUT("/members/me/group", s.assignToGroup)
	calls.DELETE("/groups/:group/scores", s.removeGroupScores)
	calls.PUT("/entries/me", s.setEntry)
	calls.DELETE("/entries/me", s.takeEntry)
	calls.POST("/entries/me/increase", s.increaseEntry)
	calls.GET("/entries/:account", s.getEntry)

	s.Log.Info().Str("mode", mode).Msg("router setup")
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.Log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("request")
	}
}

// requireCaller rejects requests without a valid caller id header.
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(CallerHeader)
		id, err := strconv.ParseUint(raw, 10, 64)
		if raw == "" || err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("UNAUTHENTICATED", "missing or invalid "+CallerHeader))
			return
		}
		c.Set(callerKey, ir.AccountID(id))
		c.Next()
	}
}

func caller(c *gin.Context) ir.AccountID {
	return c.MustGet(callerKey).(ir.AccountID)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(code, msg string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: msg}}
}

// statusFor maps an engine error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case engine.CodeAlreadyMember:
		return http.StatusConflict
	case engine.CodeNotAMember, engine.CodeNoValueStored:
		return http.StatusNotFound
	case engine.CodeNotInGroup:
		return http.StatusForbidden
	case engine.CodeArithmeticOverflow:
		return http.StatusUnprocessableEntity
	case engine.CodeUnknownOp:
		return http.StatusBadRequest
	case engine.CodeStopped:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := engine.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, errorBody(code, err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody("BAD_REQUEST", msg))
}

var errBadParam = errors.New("invalid path parameter")

func parseUint(c *gin.Context, name string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, bits)
	if err != nil {
		return 0, errBadParam
	}
	return v, nil
}
