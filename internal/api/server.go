package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"OpenMCP-EVM/internal/auth"
	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/observability/metrics"
	"OpenMCP-EVM/internal/tools"
	"OpenMCP-EVM/pkg/logger"
)

// maxBodyBytes bounds a tool invocation body.
const maxBodyBytes = 1 << 20

// EventSource lists recently published transaction events.
type EventSource interface {
	Latest(limit int) []events.Event
}

// Option customises a Server.
type Option func(*Server)

// WithAuth guards /api/v1/* with bearer tokens.
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

// WithMetrics records request and tool-call metrics and serves /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithEvents serves GET /api/v1/events from src.
func WithEvents(src EventSource) Option {
	return func(s *Server) { s.events = src }
}

// Server 负责暴露 REST 接口，供外部调用工具。
type Server struct {
	addr     string
	registry *tools.Registry
	auth     *auth.Service
	metrics  *metrics.Collector
	events   EventSource
	log      *slog.Logger
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, registry *tools.Registry, opts ...Option) *Server {
	s := &Server{addr: addr, registry: registry, log: logger.Named("api")}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil && registry != nil {
		registry.Observe(s.metrics.ObserveToolCall)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.Handle("GET /api/v1/tools", s.instrument("/api/v1/tools", http.HandlerFunc(s.handleListTools)))
	api.Handle("POST /api/v1/tools/{name}", s.instrument("/api/v1/tools/{name}", http.HandlerFunc(s.handleCallTool)))
	api.Handle("GET /api/v1/events", s.instrument("/api/v1/events", http.HandlerFunc(s.handleEvents)))

	guard := s.auth.Middleware(auth.MiddlewareConfig{
		RequiredPermissions: auth.DefaultToolPermissions(),
		AuditEvent:          "tool_api",
	})

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", guard(api))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s.registry == nil {
		return errors.New("tool registry is required")
	}
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("api listening", slog.String("addr", s.addr), slog.Bool("auth", s.auth.Enabled()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.List()})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	subject := auth.SubjectFromContext(r.Context())
	if subject != nil && !subject.CanCallTool(name) {
		s.log.Warn("tool not allowed for token", slog.String("tool", name), slog.String("subject", subject.Name))
		writeError(w, http.StatusForbidden, "该令牌无权调用工具: "+name, nil)
		return
	}
	args, err := decodeArgs(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := s.registry.Call(r.Context(), name, args)
	if err != nil {
		var suggestions []string
		if xe, ok := xerrors.From(err); ok {
			if raw := xe.Metadata()["suggestions"]; raw != "" {
				suggestions = strings.Split(raw, ",")
			}
		}
		status := http.StatusInternalServerError
		if xerrors.CodeOf(err) == xerrors.CodeNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, "unknown tool: "+name, suggestions)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal is not configured", nil)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.events.Latest(limit)})
}

// instrument records the route pattern, method, status and latency.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.metrics.ObserveHTTPRequest(pattern, r.Method, sw.status, time.Since(start))
	})
}

// decodeArgs reads a JSON object, keeping numbers as json.Number. An empty
// body is an empty argument set.
func decodeArgs(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, errors.New("请求体必须是 JSON 对象")
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

type errorBody struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, suggestions []string) {
	writeJSON(w, status, errorBody{Error: msg, Suggestions: suggestions})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
