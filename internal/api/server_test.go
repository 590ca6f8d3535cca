package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"OpenMCP-EVM/internal/auth"
	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/observability/metrics"
	"OpenMCP-EVM/internal/tools"
)

func testRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	reg.MustRegister(
		tools.Tool{
			Descriptor: tools.Descriptor{
				Name:   "get_balance",
				Params: []tools.Param{{Name: "address", Type: tools.TypeString, Required: true}},
			},
			ErrorPrefix: "Error fetching balance",
			Handler: func(_ context.Context, args tools.Args) (tools.Payload, error) {
				return tools.Payload{"address": args.String("address"), "ether": "1.5"}, nil
			},
		},
		tools.Tool{
			Descriptor: tools.Descriptor{Name: "get_chain_info"},
			Handler: func(context.Context, tools.Args) (tools.Payload, error) {
				return tools.Payload{"chainId": 56}, nil
			},
		},
	)
	return reg
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCallTool(t *testing.T) {
	t.Parallel()

	collector := metrics.NewCollector()
	h := NewServer(":0", testRegistry(), WithMetrics(collector)).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/tools/get_balance", `{"address":"0xabc"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var result tools.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.IsError || !strings.Contains(result.Text(), `"ether": "1.5"`) || !strings.Contains(result.Text(), `"success": true`) {
		t.Fatalf("unexpected result %+v", result)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/tools/get_balance", ``, "")
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || !result.IsError || result.Text() != "Error fetching balance: missing required parameter: address" {
		t.Fatalf("unexpected failure %d %+v", rec.Code, result)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/tools/get_balance", `[1,2]`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-object body, got %d", rec.Code)
	}

	metricsRec := do(t, h, http.MethodGet, "/metrics", "", "")
	text := metricsRec.Body.String()
	if !strings.Contains(text, `openmcp_tool_calls_total{tool="get_balance",outcome="success"} 1`) ||
		!strings.Contains(text, `openmcp_tool_calls_total{tool="get_balance",outcome="error"} 1`) ||
		!strings.Contains(text, `openmcp_http_requests_total{handler="/api/v1/tools/{name}",method="POST",code="400"} 1`) {
		t.Fatalf("unexpected metrics:\n%s", text)
	}
}

func TestUnknownToolReturns404WithSuggestions(t *testing.T) {
	t.Parallel()

	h := NewServer(":0", testRegistry()).Handler()
	rec := do(t, h, http.MethodPost, "/api/v1/tools/getbalance", `{}`, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Suggestions) == 0 || body.Suggestions[0] != "get_balance" {
		t.Fatalf("unexpected suggestions %+v", body)
	}
}

func TestListToolsAndHealth(t *testing.T) {
	t.Parallel()

	h := NewServer(":0", testRegistry()).Handler()
	rec := do(t, h, http.MethodGet, "/api/v1/tools", "", "")
	var list struct {
		Tools []tools.Descriptor `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Tools) != 2 || list.Tools[0].Name != "get_balance" || list.Tools[0].Params[0].Name != "address" {
		t.Fatalf("unexpected list %+v", list)
	}

	if rec := do(t, h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/tools", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAuthGuardsAPI(t *testing.T) {
	t.Parallel()

	svc, err := auth.NewService([]auth.TokenConfig{
		{Name: "reader", Token: "r", Permissions: []string{auth.PermissionToolsRead}},
	})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	h := NewServer(":0", testRegistry(), WithAuth(svc)).Handler()

	if rec := do(t, h, http.MethodGet, "/api/v1/tools", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/tools", "", "r"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/tools/get_chain_info", "{}", "r"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz should stay open, got %d", rec.Code)
	}
}

func TestTokenToolPatterns(t *testing.T) {
	t.Parallel()

	svc, err := auth.NewService([]auth.TokenConfig{
		{Name: "chain-only", Token: "c", Tools: []string{"get_chain_*"}},
	})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	h := NewServer(":0", testRegistry(), WithAuth(svc)).Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/tools/get_chain_info", "{}", "c"); rec.Code != http.StatusOK {
		t.Fatalf("expected allowed tool to run, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, "/api/v1/tools/get_balance", `{"address":"0xabc"}`, "c")
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "get_balance") {
		t.Fatalf("expected 403 naming the tool, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEventsEndpoint(t *testing.T) {
	t.Parallel()

	h := NewServer(":0", testRegistry()).Handler()
	if rec := do(t, h, http.MethodGet, "/api/v1/events", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without journal, got %d", rec.Code)
	}

	journal, err := events.NewJournalPublisher(filepath.Join(t.TempDir(), "transactions.log"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	for _, hash := range []string{"0x01", "0x02", "0x03"} {
		if err := journal.Publish(context.Background(), events.Event{Kind: events.KindNativeTransfer, Hash: hash}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	h = NewServer(":0", testRegistry(), WithEvents(journal)).Handler()
	rec := do(t, h, http.MethodGet, "/api/v1/events?limit=2", "", "")
	var body struct {
		Events []events.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 2 || body.Events[0].Hash != "0x03" {
		t.Fatalf("unexpected events %+v", body.Events)
	}
}

func TestWithContextRejectsAfterShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := withContext(ctx, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
