package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type toolKey struct {
	tool    string
	outcome string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// Collector accumulates HTTP and tool-call metrics for one server.
type Collector struct {
	mu          sync.Mutex
	requests    map[requestKey]uint64
	httpLatency map[string]*histogram
	toolCalls   map[toolKey]uint64
	toolLatency map[string]*histogram
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		requests:    make(map[requestKey]uint64),
		httpLatency: make(map[string]*histogram),
		toolCalls:   make(map[toolKey]uint64),
		toolLatency: make(map[string]*histogram),
	}
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (c *Collector) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{handler: handler, method: method, code: strconv.Itoa(status)}]++
	hist := c.httpLatency[handler]
	if hist == nil {
		hist = newHistogram()
		c.httpLatency[handler] = hist
	}
	hist.observe(duration.Seconds())
}

// ObserveToolCall records one tool invocation. Its signature matches
// tools.Observer.
func (c *Collector) ObserveToolCall(tool string, isError bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcome := "success"
	if isError {
		outcome = "error"
	}
	c.toolCalls[toolKey{tool: tool, outcome: outcome}]++
	hist := c.toolLatency[tool]
	if hist == nil {
		hist = newHistogram()
		c.toolLatency[tool] = hist
	}
	hist.observe(duration.Seconds())
}

func newHistogram() *histogram {
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// observe counts value into every bucket it fits; values above the last
// bound only show up in +Inf via count.
func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			h.counts[idx]++
		}
	}
}

// Handler exposes the metrics in Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, c.render())
	})
}

func (c *Collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var builder strings.Builder
	builder.Grow(2048)

	reqs := make([]requestKey, 0, len(c.requests))
	for key := range c.requests {
		reqs = append(reqs, key)
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].handler == reqs[j].handler {
			if reqs[i].method == reqs[j].method {
				return reqs[i].code < reqs[j].code
			}
			return reqs[i].method < reqs[j].method
		}
		return reqs[i].handler < reqs[j].handler
	})
	builder.WriteString("# HELP openmcp_http_requests_total Total number of HTTP requests processed.\n")
	builder.WriteString("# TYPE openmcp_http_requests_total counter\n")
	for _, key := range reqs {
		builder.WriteString(fmt.Sprintf("openmcp_http_requests_total{handler=\"%s\",method=\"%s\",code=\"%s\"} %d\n",
			escape(key.handler), escape(key.method), escape(key.code), c.requests[key]))
	}
	writeHistograms(&builder, "openmcp_http_request_duration_seconds", "HTTP request duration in seconds.", "handler", c.httpLatency)

	calls := make([]toolKey, 0, len(c.toolCalls))
	for key := range c.toolCalls {
		calls = append(calls, key)
	}
	sort.Slice(calls, func(i, j int) bool {
		if calls[i].tool == calls[j].tool {
			return calls[i].outcome < calls[j].outcome
		}
		return calls[i].tool < calls[j].tool
	})
	builder.WriteString("# HELP openmcp_tool_calls_total Total number of tool invocations by outcome.\n")
	builder.WriteString("# TYPE openmcp_tool_calls_total counter\n")
	for _, key := range calls {
		builder.WriteString(fmt.Sprintf("openmcp_tool_calls_total{tool=\"%s\",outcome=\"%s\"} %d\n",
			escape(key.tool), key.outcome, c.toolCalls[key]))
	}
	writeHistograms(&builder, "openmcp_tool_call_duration_seconds", "Tool invocation duration in seconds.", "tool", c.toolLatency)

	return builder.String()
}

func writeHistograms(b *strings.Builder, name, help, label string, hists map[string]*histogram) {
	keys := make([]string, 0, len(hists))
	for key := range hists {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	b.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
	b.WriteString(fmt.Sprintf("# TYPE %s histogram\n", name))
	for _, key := range keys {
		hist := hists[key]
		value := escape(key)
		for idx, bound := range hist.buckets {
			b.WriteString(fmt.Sprintf("%s_bucket{%s=\"%s\",le=\"%s\"} %d\n", name, label, value, formatFloat(bound), hist.counts[idx]))
		}
		b.WriteString(fmt.Sprintf("%s_bucket{%s=\"%s\",le=\"+Inf\"} %d\n", name, label, value, hist.count))
		b.WriteString(fmt.Sprintf("%s_sum{%s=\"%s\"} %s\n", name, label, value, formatFloat(hist.sum)))
		b.WriteString(fmt.Sprintf("%s_count{%s=\"%s\"} %d\n", name, label, value, hist.count))
	}
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func (c *Collector) StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
