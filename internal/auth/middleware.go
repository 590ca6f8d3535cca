package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// MiddlewareConfig 配置身份认证中间件的行为。
type MiddlewareConfig struct {
	// RequiredPermissions maps an HTTP method to the permissions it needs;
	// "*" applies to methods without an entry.
	RequiredPermissions map[string][]string
	// AuditEvent 指定记录审计日志时使用的事件名称，默认使用请求路径。
	AuditEvent string
}

// DefaultToolPermissions guards reads with tools:read and invocations with
// tools:call.
func DefaultToolPermissions() map[string][]string {
	return map[string][]string{
		http.MethodGet:  {PermissionToolsRead},
		http.MethodPost: {PermissionToolsCall},
	}
}

type subjectKey struct{}

// WithSubject 将经过身份验证的调用方存入上下文。
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the authenticated caller, or nil when auth is
// disabled.
func SubjectFromContext(ctx context.Context) *Subject {
	subject, _ := ctx.Value(subjectKey{}).(*Subject)
	return subject
}

// Middleware authenticates the bearer token, checks the method permission
// and records one audit line per request. A disabled service passes every
// request through untouched.
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !s.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, status, err := s.admit(r, cfg.RequiredPermissions)
			if err != nil {
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="openmcp"`)
				}
				http.Error(w, http.StatusText(status), status)
				event := "access_denied"
				if status == http.StatusForbidden {
					event = "permission_denied"
				}
				s.audit.Warn(event, requestAttrs(r, status, subject, slog.String("error", err.Error()))...)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(WithSubject(r.Context(), subject)))

			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			s.audit.Info("api_request", requestAttrs(r, rec.status, subject,
				slog.String("event", event),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)...)
		})
	}
}

func (s *Service) admit(r *http.Request, required map[string][]string) (*Subject, int, error) {
	subject, err := s.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}
	perms, ok := required[r.Method]
	if !ok {
		perms = required["*"]
	}
	if err := subject.Authorize(perms...); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return subject, http.StatusForbidden, err
		}
		return subject, http.StatusUnauthorized, err
	}
	return subject, 0, nil
}

func requestAttrs(r *http.Request, status int, subject *Subject, extra ...any) []any {
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
	}
	if subject != nil {
		attrs = append(attrs, slog.String("subject", subject.Name))
	}
	return append(attrs, extra...)
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
