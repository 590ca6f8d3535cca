// Package tools exposes the pipeline as named tools with declared
// parameters. Every invocation yields a Result: failures are reported as
// text with IsError set rather than as Go errors, so a host can forward the
// outcome verbatim.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/pkg/logger"

	"github.com/sahilm/fuzzy"
)

// ParamType is the JSON type a parameter accepts.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Param declares one tool parameter.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
}

// Descriptor is the public description of a tool.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters"`
}

// Payload is the JSON object a successful handler returns.
type Payload map[string]any

// Handler runs a tool with validated arguments.
type Handler func(ctx context.Context, args Args) (Payload, error)

// Tool binds a descriptor to its handler. ErrorPrefix starts the text of
// every failure result, e.g. "Error executing swap".
type Tool struct {
	Descriptor
	ErrorPrefix string
	Handler     Handler
}

// Content is one block of a result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of one invocation.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// Text returns the concatenated text content.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

// ErrUnknownTool is returned by Call for names nobody registered.
var ErrUnknownTool = xerrors.New(xerrors.CodeNotFound, "unknown tool")

// Observer receives the outcome of every call.
type Observer func(name string, isError bool, elapsed time.Duration)

// Registry holds the registered tools.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	observer Observer
	log      *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), log: logger.Named("tools")}
}

// Observe installs fn as the call observer.
func (r *Registry) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Register adds t. Names must be unique and handlers non-nil.
func (r *Registry) Register(t Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Params))
	for _, p := range t.Params {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("tool %s declares parameter %s twice", t.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if t.ErrorPrefix == "" {
		t.ErrorPrefix = "Error"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister is Register for static tool tables.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// List returns every descriptor sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Suggest returns up to limit registered names that fuzzily match name.
func (r *Registry) Suggest(name string, limit int) []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	var out []string
	for _, match := range fuzzy.Find(strings.ToLower(strings.TrimSpace(name)), names) {
		out = append(out, match.Str)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Call runs the named tool. The only error is ErrUnknownTool; every other
// failure is folded into the Result.
func (r *Registry) Call(ctx context.Context, name string, raw map[string]any) (Result, error) {
	t, ok := r.Lookup(name)
	if !ok {
		opts := []xerrors.Option{xerrors.WithMetadata("tool", name)}
		if suggestions := r.Suggest(name, 3); len(suggestions) > 0 {
			opts = append(opts, xerrors.WithMetadata("suggestions", strings.Join(suggestions, ",")))
		}
		return Result{}, xerrors.Wrap(xerrors.CodeNotFound, ErrUnknownTool, "unknown tool: "+name, opts...)
	}

	start := time.Now()
	result := r.run(ctx, t, raw)

	r.mu.RLock()
	observer := r.observer
	r.mu.RUnlock()
	if observer != nil {
		observer(name, result.IsError, time.Since(start))
	}
	return result, nil
}

func (r *Registry) run(ctx context.Context, t Tool, raw map[string]any) Result {
	args, err := bindArgs(t.Params, raw)
	if err == nil {
		var payload Payload
		payload, err = t.Handler(ctx, args)
		if err == nil {
			return success(payload)
		}
	}
	r.log.Log(ctx, failureLevel(err), "tool call failed",
		slog.String("tool", t.Name),
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.Bool("retryable", xerrors.RetryableError(err)),
		slog.String("error", err.Error()),
	)
	return failure(t.ErrorPrefix, err)
}

// failureLevel 按错误严重程度选择日志级别，调用方输入错误只记 Info。
func failureLevel(err error) slog.Level {
	if xerrors.IsInputError(err) {
		return slog.LevelInfo
	}
	switch xerrors.SeverityOf(err) {
	case xerrors.SeverityCritical:
		return slog.LevelError
	case xerrors.SeverityInfo:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func success(payload Payload) Result {
	if payload == nil {
		payload = Payload{}
	}
	if _, ok := payload["success"]; !ok {
		payload["success"] = true
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return failure("Error encoding result", err)
	}
	return Result{Content: []Content{{Type: "text", Text: string(encoded)}}}
}

func failure(prefix string, err error) Result {
	return Result{
		Content: []Content{{Type: "text", Text: prefix + ": " + Describe(err)}},
		IsError: true,
	}
}

// Describe renders err as a human sentence: taxonomy messages joined with
// their causes, without the bracketed code.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var xe *xerrors.Error
	if !errors.As(err, &xe) || error(xe) != err {
		return err.Error()
	}
	msg := xe.Message()
	if cause := errors.Unwrap(xe); cause != nil {
		if inner := Describe(cause); inner != "" && inner != msg {
			msg += ": " + inner
		}
	}
	return msg
}
