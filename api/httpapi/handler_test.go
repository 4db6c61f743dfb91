package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"orderledger/domain/ledger"
	"orderledger/metrics"
	"orderledger/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()

	svc := service.New(service.Options{Logger: log, Metrics: metrics.New(reg)})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(NewRouter(svc, reg, log))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-stopped
	})
	return srv
}

func postOrder(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/orders", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestSubmitOrder(t *testing.T) {
	srv := newTestServer(t)

	resp := postOrder(t, srv, `{"side":"bid","amount":100,"price":50.5}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var out submitOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ID != 1 || out.RequestID == "" {
		t.Fatalf("unexpected response %+v", out)
	}

	// sell is an alias for ask; amount and price are stored as given
	resp2 := postOrder(t, srv, `{"side":"SELL","amount":-3,"price":0}`)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for sell, got %d", resp2.StatusCode)
	}

	snapResp, err := http.Get(srv.URL + "/book/snapshot")
	if err != nil {
		t.Fatal(err)
	}
	defer snapResp.Body.Close()
	var snap ledger.Snapshot
	if err := json.NewDecoder(snapResp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.NextID != 3 || len(snap.Asks) != 1 || snap.Asks[0].Amount != -3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestSubmitOrderRejected(t *testing.T) {
	srv := newTestServer(t)

	cases := map[string]string{
		"bad json":      `{"side":`,
		"unknown side":  `{"side":"hold","amount":1,"price":1}`,
		"missing price": `{"side":"bid","amount":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postOrder(t, srv, body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("unexpected content type %q", ct)
			}
		})
	}
}

func TestRenderBook(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/book")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != ledger.New().Render() {
		t.Fatalf("unexpected empty report:\n%s", body)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	srv := newTestServer(t)
	postOrder(t, srv, `{"side":"ask","amount":1,"price":2}`).Body.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `ledger_orders_submitted_total{side="ask"} 1`) {
		t.Fatalf("metrics output missing submission counter:\n%s", body)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", health.StatusCode)
	}
}

func TestSubmitOrderContextErrors(t *testing.T) {
	// Not running: queued commands are never answered.
	svc := service.New(service.Options{Buffer: 4})
	router := NewRouter(svc, prometheus.NewRegistry(), zaptest.NewLogger(t))

	expired, cancelExpired := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelExpired()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{name: "deadline", ctx: expired, want: http.StatusGatewayTimeout},
		{name: "canceled", ctx: canceled, want: statusClientClosedRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/orders",
				strings.NewReader(`{"side":"bid","amount":1,"price":1}`)).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("unexpected content type %q", ct)
			}
		})
	}
}
