package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"OpenMCP-EVM/pkg/logger"
)

type credential struct {
	digest  [sha256.Size]byte
	subject Subject
}

// Service checks bearer tokens against a static table. A Service with no
// tokens is disabled and lets every request through.
type Service struct {
	tokens []credential
	audit  *slog.Logger
}

// NewService builds the token table. Names and tokens must be non-empty and
// tokens unique.
func NewService(tokens []TokenConfig) (*Service, error) {
	svc := &Service{audit: logger.Audit()}
	seen := make(map[[sha256.Size]byte]struct{}, len(tokens))
	for i, t := range tokens {
		name := strings.TrimSpace(t.Name)
		token := strings.TrimSpace(t.Token)
		if name == "" {
			return nil, fmt.Errorf("auth token %d has no name", i)
		}
		if token == "" {
			return nil, fmt.Errorf("auth token %s is empty", name)
		}
		digest := sha256.Sum256([]byte(token))
		if _, dup := seen[digest]; dup {
			return nil, fmt.Errorf("auth token %s duplicates another token", name)
		}
		seen[digest] = struct{}{}
		subject, err := newSubject(t)
		if err != nil {
			return nil, err
		}
		svc.tokens = append(svc.tokens, credential{digest: digest, subject: subject})
	}
	return svc, nil
}

// Enabled reports whether any token is configured.
func (s *Service) Enabled() bool {
	return s != nil && len(s.tokens) > 0
}

// AuthenticateRequest validates the Authorization header and returns the
// subject the token belongs to.
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, ErrMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return nil, ErrMissingToken
	}
	digest := sha256.Sum256([]byte(token))
	var match *credential
	// every entry is compared so timing does not reveal the position
	for i := range s.tokens {
		if subtle.ConstantTimeCompare(digest[:], s.tokens[i].digest[:]) == 1 {
			match = &s.tokens[i]
		}
	}
	if match == nil {
		return nil, ErrInvalidToken
	}
	// subjects are never mutated after NewService, so a shallow copy is safe
	subject := match.subject
	return &subject, nil
}
