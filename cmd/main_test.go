package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vitaly-z/Nayuki-web-published-code/internal/analytics"
	"github.com/vitaly-z/Nayuki-web-published-code/internal/config"
	"github.com/vitaly-z/Nayuki-web-published-code/internal/model"
	"github.com/vitaly-z/Nayuki-web-published-code/internal/persistence"
)

func newTestApp(t *testing.T) (*app, *persistence.MetricStore) {
	t.Helper()
	srv := miniredis.RunT(t)

	cfg := config.Default()
	cfg.RedisAddr = srv.Addr()
	cfg.WindowSize = 3
	cfg.QueueSize = 4

	store := persistence.NewMetricStore(cfg.RedisAddr, "", 0, 100)
	t.Cleanup(func() { _ = store.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return newApp(ctx, store, analytics.NewAnalyzer(cfg.WindowSize, cfg.Threshold), cfg), store
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeExtrema(t *testing.T, rec *httptest.ResponseRecorder) model.ExtremaResponse {
	t.Helper()
	var res model.ExtremaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return res
}

func TestExtremaHandler(t *testing.T) {
	a, _ := newTestApp(t)
	h := a.router()

	rec := doRequest(t, h, http.MethodPost, "/extrema", `{"values":[4,2,5,1,3],"window":3,"mode":"max"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeExtrema(t, rec)
	if res.Mode != "max" || res.Window != 3 || res.Samples != 5 {
		t.Fatalf("unexpected response %+v", res)
	}
	if len(res.Extrema) != 3 || res.Extrema[0] != 5 || res.Extrema[1] != 5 || res.Extrema[2] != 5 {
		t.Fatalf("expected [5 5 5], got %v", res.Extrema)
	}

	rec = doRequest(t, h, http.MethodPost, "/extrema", `{"values":[4,2,5,1,3],"window":3,"mode":"min"}`)
	res = decodeExtrema(t, rec)
	if len(res.Extrema) != 3 || res.Extrema[0] != 2 || res.Extrema[1] != 1 || res.Extrema[2] != 1 {
		t.Fatalf("expected [2 1 1], got %v", res.Extrema)
	}

	rec = doRequest(t, h, http.MethodPost, "/extrema", `{"values":[1,2],"window":3,"mode":"min"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for short sequence, got %d", rec.Code)
	}
	if res = decodeExtrema(t, rec); res.Extrema == nil || len(res.Extrema) != 0 {
		t.Fatalf("expected empty extrema, got %v", res.Extrema)
	}
}

func TestExtremaHandlerRejects(t *testing.T) {
	a, _ := newTestApp(t)
	h := a.router()

	cases := map[string]string{
		"zero window":  `{"values":[1,2,3],"window":0,"mode":"max"}`,
		"bad mode":     `{"values":[1,2,3],"window":2,"mode":"median"}`,
		"bad json":     `{"values":`,
		"unknown key":  `{"values":[1],"window":1,"extra":true}`,
		"wrong method": "",
	}
	for name, body := range cases {
		method := http.MethodPost
		want := http.StatusBadRequest
		if name == "wrong method" {
			method = http.MethodGet
			want = http.StatusMethodNotAllowed
		}
		rec := doRequest(t, h, method, "/extrema", body)
		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d (%s)", name, want, rec.Code, rec.Body.String())
		}
	}
}

func TestHistoryExtremaHandler(t *testing.T) {
	a, store := newTestApp(t)
	h := a.router()
	ctx := context.Background()

	for i, cpu := range []float64{40, 20, 50, 10, 30} {
		if err := store.Save(ctx, model.Sample{CPU: cpu, RPS: float64(i), Timestamp: int64(i + 1)}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	rec := doRequest(t, h, http.MethodGet, "/history/extrema?metric=cpu&window=2&mode=min", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeExtrema(t, rec)
	want := []float64{20, 20, 10, 10}
	if res.Metric != model.MetricCPU || res.Samples != 5 || len(res.Extrema) != len(want) {
		t.Fatalf("unexpected response %+v", res)
	}
	for i := range want {
		if res.Extrema[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, res.Extrema)
		}
	}

	// default window comes from the analytics config, default mode is max
	rec = doRequest(t, h, http.MethodGet, "/history/extrema?metric=rps&limit=4", "")
	res = decodeExtrema(t, rec)
	if res.Mode != "max" || res.Window != 3 || res.Samples != 4 {
		t.Fatalf("unexpected response %+v", res)
	}
	if len(res.Extrema) != 2 || res.Extrema[0] != 3 || res.Extrema[1] != 4 {
		t.Fatalf("expected [3 4], got %v", res.Extrema)
	}

	for _, target := range []string{
		"/history/extrema?metric=mem",
		"/history/extrema?window=abc",
		"/history/extrema?window=0",
		"/history/extrema?limit=-1",
		"/history/extrema?mode=avg",
	} {
		if rec := doRequest(t, h, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestIngestFlowsIntoAnalytics(t *testing.T) {
	a, store := newTestApp(t)
	h := a.router()
	go a.workerLoop()

	for _, body := range []string{
		`{"device_id":"d1","cpu":40,"rps":1,"timestamp":1}`,
		`{"device_id":"d1","cpu":20,"rps":2,"timestamp":2}`,
		`{"device_id":"d1","cpu":50,"rps":3,"timestamp":3}`,
		`{"device_id":"d1","cpu":10,"rps":4,"timestamp":4}`,
	} {
		if rec := doRequest(t, h, http.MethodPost, "/ingest", body); rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.analyzer.Latest().TimeUnix != 4 {
		if time.Now().After(deadline) {
			t.Fatalf("worker did not process samples, latest %+v", a.analyzer.Latest())
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec := doRequest(t, h, http.MethodGet, "/analytics", "")
	var snap analytics.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.MinCPU != 10 || snap.MaxCPU != 50 || snap.Samples != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	m, err := store.FetchLatest(context.Background(), "d1")
	if err != nil || m == nil || m.CPU != 10 {
		t.Fatalf("expected stored latest cpu 10, got %+v %v", m, err)
	}

	if rec := doRequest(t, h, http.MethodPost, "/ingest", `{"cpu":"high"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid sample, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	a, _ := newTestApp(t)
	h := a.router()

	if rec := doRequest(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", rec.Code)
	}

	doRequest(t, h, http.MethodPost, "/extrema", `{"values":[1,2,3],"window":2,"mode":"min"}`)
	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), `extrema_requests_total{mode="min"} 1`) {
		t.Fatalf("expected extrema counter in metrics output:\n%s", rec.Body.String())
	}
}
