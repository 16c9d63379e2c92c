package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agenthands/jmaptodo/internal/config"
	"github.com/agenthands/jmaptodo/internal/core/model"
	"github.com/agenthands/jmaptodo/internal/jmap"
	"github.com/agenthands/jmaptodo/internal/logging"
	"github.com/agenthands/jmaptodo/internal/repository"
)

const (
	// AccountID is the only account the server exposes.
	AccountID = "primary"

	MaxSizeRequest    = 10_000_000
	MaxCallsInRequest = 16
	MaxObjectsInGet   = 500
	MaxObjectsInSet   = 500
)

type Server struct {
	repo    repository.TodoRepository
	cfg     config.ServerConfig
	log     zerolog.Logger
	methods map[string]methodHandler

	// setMu serializes Todo/set so oldState and newState describe one change.
	setMu sync.Mutex
	state atomic.Uint64
}

func NewServer(repo repository.TodoRepository, cfg config.ServerConfig, log zerolog.Logger) *Server {
	s := &Server{
		repo: repo,
		cfg:  cfg,
		log:  log.With().Str("component", "server").Logger(),
	}
	s.methods = map[string]methodHandler{
		model.MethodCoreEcho:            s.coreEcho,
		model.MethodCoreGetCapabilities: s.coreGetCapabilities,
		model.MethodCoreGetSession:      s.coreGetSession,
		model.MethodTodoQuery:           s.todoQuery,
		model.MethodTodoGet:             s.todoGet,
		model.MethodTodoSet:             s.todoSet,
	}
	return s
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())

	r.POST("/jmap", s.HandleJMAP)
	r.OPTIONS("/jmap", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/.well-known/jmap", s.HandleSession)

	return r
}

// State is the current Todo state string.
func (s *Server) State() string {
	return strconv.FormatUint(s.state.Load(), 10)
}

func (s *Server) HandleJMAP(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxSizeRequest))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.problem(c, model.ProblemDetails{Type: model.ProblemLimit, Limit: "maxSizeRequest", Detail: "request body too large"})
			return
		}
		s.problem(c, model.ProblemDetails{Type: model.ProblemNotRequest, Detail: "failed to read request body"})
		return
	}

	if !json.Valid(body) {
		s.problem(c, model.ProblemDetails{Type: model.ProblemNotJSON, Detail: "request body is not valid JSON"})
		return
	}
	var req model.Request
	if err := json.Unmarshal(body, &req); err != nil || req.MethodCalls == nil {
		detail := "missing methodCalls"
		if err != nil {
			detail = err.Error()
		}
		s.problem(c, model.ProblemDetails{Type: model.ProblemNotRequest, Detail: detail})
		return
	}
	if len(req.MethodCalls) > MaxCallsInRequest {
		s.problem(c, model.ProblemDetails{
			Type:   model.ProblemLimit,
			Limit:  "maxCallsInRequest",
			Detail: "too many method calls: " + strconv.Itoa(len(req.MethodCalls)),
		})
		return
	}

	ctx := context.WithValue(c.Request.Context(), apiURLKey{}, apiURL(c.Request))
	c.JSON(http.StatusOK, s.Execute(ctx, &req))
}

func (s *Server) HandleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.session(apiURL(c.Request)))
}

// Execute runs the calls of req left to right. References are resolved
// against the responses produced so far in the same request.
func (s *Server) Execute(ctx context.Context, req *model.Request) *model.ResponseEnvelope {
	results := jmap.NewResults()
	env := &model.ResponseEnvelope{
		MethodResponses: make([]model.Response, 0, len(req.MethodCalls)),
		SessionState:    sessionState,
	}
	for _, call := range req.MethodCalls {
		resp := s.invoke(ctx, call, results)
		if err := results.Add(resp); err != nil {
			s.log.Warn().Str("call_id", call.CallID).Msg("Duplicate call id in request, later references see the first response")
		}
		env.MethodResponses = append(env.MethodResponses, resp)
	}
	return env
}

func (s *Server) invoke(ctx context.Context, call model.Invocation, results *jmap.Results) model.Response {
	log := logging.FromContext(ctx, &s.log).With().Str("method", call.Name).Str("call_id", call.CallID).Logger()

	resolved, err := jmap.Resolve(call, results)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to resolve result reference")
		return model.NewErrorResponse(call.CallID, model.ErrorObject{
			Type:        model.ErrorInvalidResultReference,
			Description: err.Error(),
		})
	}

	handler, ok := s.methods[call.Name]
	if !ok {
		log.Info().Msg("Unknown JMAP method")
		return model.NewErrorResponse(call.CallID, model.ErrorObject{Type: model.ErrorUnknownMethod})
	}

	result, err := handler(ctx, resolved.Args)
	if err != nil {
		var me *methodError
		if errors.As(err, &me) {
			return model.NewErrorResponse(call.CallID, me.obj)
		}
		log.Error().Err(err).Msg("Method failed")
		return model.NewErrorResponse(call.CallID, model.ErrorObject{Type: model.ErrorServerFail, Description: err.Error()})
	}

	resp, err := model.NewResponse(call.Name, result, call.CallID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode method result")
		return model.NewErrorResponse(call.CallID, model.ErrorObject{Type: model.ErrorServerFail})
	}
	return resp
}

func (s *Server) problem(c *gin.Context, p model.ProblemDetails) {
	if p.Status == 0 {
		p.Status = http.StatusBadRequest
	}
	s.log.Info().Str("type", p.Type).Str("detail", p.Detail).Msg("Rejected JMAP request")
	raw, _ := json.Marshal(p)
	c.Data(p.Status, "application/problem+json", raw)
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Next()
	}
}

// requestLogger attaches a request-scoped logger to the request context and
// logs each request once it completes.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := s.log.With().Str("path", c.Request.URL.Path).Logger()
		c.Request = c.Request.WithContext(log.WithContext(c.Request.Context()))

		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Handled request")
	}
}

type apiURLKey struct{}

func apiURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/jmap"
}
