package auth

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Common errors returned by the authentication subsystem.
var (
	ErrDisabled         = errors.New("authentication disabled")
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing bearer token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Permissions checked by the tool host.
const (
	PermissionToolsRead = "tools:read"
	PermissionToolsCall = "tools:call"
)

// TokenConfig declares one static bearer token. An empty Permissions list
// grants every permission; an empty Tools list allows every tool. Tools
// entries are path.Match patterns such as "get_*".
type TokenConfig struct {
	Name        string   `json:"name" mapstructure:"name"`
	Token       string   `json:"token" mapstructure:"token"`
	Permissions []string `json:"permissions" mapstructure:"permissions"`
	Tools       []string `json:"tools" mapstructure:"tools"`
}

// Subject is the caller a token was issued to. Handlers read it with
// SubjectFromContext.
type Subject struct {
	Name string

	perms map[string]struct{}
	tools []string
}

func newSubject(cfg TokenConfig) (Subject, error) {
	s := Subject{Name: strings.TrimSpace(cfg.Name)}
	for _, p := range cfg.Permissions {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			if s.perms == nil {
				s.perms = make(map[string]struct{}, len(cfg.Permissions))
			}
			s.perms[p] = struct{}{}
		}
	}
	for _, pattern := range cfg.Tools {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return Subject{}, fmt.Errorf("auth token %s: bad tool pattern %q: %w", s.Name, pattern, err)
		}
		s.tools = append(s.tools, pattern)
	}
	return s, nil
}

// HasPermission reports whether the subject has the specified permission.
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	if len(s.perms) == 0 {
		return true
	}
	_, ok := s.perms[strings.ToLower(strings.TrimSpace(permission))]
	return ok
}

// Authorize ensures the subject has all required permissions.
func (s *Subject) Authorize(perms ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, perm := range perms {
		if perm != "" && !s.HasPermission(perm) {
			return fmt.Errorf("%w: missing %s", ErrPermissionDenied, perm)
		}
	}
	return nil
}

// CanCallTool reports whether the subject's tool patterns admit name.
func (s *Subject) CanCallTool(name string) bool {
	if s == nil {
		return false
	}
	if len(s.tools) == 0 {
		return true
	}
	for _, pattern := range s.tools {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
