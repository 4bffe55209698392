package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/ntuplestore/internal/decoder"
	"github.com/jittakal/ntuplestore/pkg/fieldstore"
	"github.com/jittakal/ntuplestore/pkg/ntuple"
)

type requestCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *requestCounter) IncHTTPRequests(route string, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[route+" "+http.StatusText(code)]++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockHealthChecker struct {
	liveness  bool
	readiness bool
	healthy   bool
	status    map[string]string
}

func (m *mockHealthChecker) Liveness() bool                     { return m.liveness }
func (m *mockHealthChecker) Readiness(ctx context.Context) bool { return m.readiness }
func (m *mockHealthChecker) IsHealthy() bool                    { return m.healthy }
func (m *mockHealthChecker) GetStatus() map[string]string       { return m.status }

var testKinds = []ntuple.Kind{
	{Prefix: "rechit", SizeAttr: "pt"},
	{Prefix: "trackster", SizeAttr: "Id"},
}

func testEntries() []fieldstore.Entry {
	return []fieldstore.Entry{
		{
			"run": int64(1), "lumi": int64(5), "event": int64(100),
			"rechit_pt": []float64{1.5, 2.5, 3.5}, "rechit_layer": []int32{1, 2, 3}, "rechit_time": []float64{0.1},
			"rechit_nhits": int32(3),
		},
		{
			"run": int64(1), "lumi": int64(5), "event": int64(101),
			"rechit_pt": []float64{}, "rechit_layer": []int32{}, "rechit_time": []float64{},
			"rechit_nhits": int32(0),
		},
	}
}

func newTestAPI(t *testing.T, maxRecords int, fail error) (*StoreAPI, *requestCounter, *ntuple.Store) {
	t.Helper()
	fs := decoder.NewMemoryStore(testEntries())
	if fail != nil {
		fs.FailEntry(1, fail)
	}
	store := ntuple.New(fs)

	var index *ntuple.EventIndex
	if fail == nil {
		var err error
		index, err = ntuple.BuildIndex(store)
		if err != nil {
			t.Fatalf("BuildIndex() failed: %v", err)
		}
	}
	counter := &requestCounter{}
	return NewStoreAPI(store, index, testKinds, maxRecords, discardLogger(), counter), counter, store
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: failed to decode response: %v", path, err)
		}
	}
	return w.Code
}

func TestStoreAPI_Event(t *testing.T) {
	api, counter, _ := newTestAPI(t, 0, nil)

	var resp EventResponse
	if code := get(t, api, "/events/0", &resp); code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", code)
	}

	want := EventResponse{
		Entry: 0, Run: 1, Lumi: 5, Event: 100, Key: "1:5:100",
		Collections: map[string]int{"rechit": 3},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	if counter.counts["/events/{entry} OK"] != 1 {
		t.Errorf("request metrics = %v", counter.counts)
	}
}

func TestStoreAPI_EventErrors(t *testing.T) {
	api, _, _ := newTestAPI(t, 0, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/events/abc", http.StatusBadRequest},
		{"/events/2", http.StatusNotFound},
		{"/events/-1", http.StatusNotFound},
		{"/lookup/1:5", http.StatusBadRequest},
		{"/lookup/1:5:999", http.StatusNotFound},
		{"/events/0/collections/unknown", http.StatusBadRequest},
		{"/events/0/collections/unknown?size=pt", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var resp ErrorResponse
			if code := get(t, api, tt.path, &resp); code != tt.want {
				t.Errorf("status code = %d, want %d", code, tt.want)
			}
			if resp.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestStoreAPI_ReadFailure(t *testing.T) {
	api, counter, _ := newTestAPI(t, 0, errors.New("corrupt page"))

	if code := get(t, api, "/events/1", nil); code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", code)
	}
	if code := get(t, api, "/lookup/1:5:100", nil); code != http.StatusServiceUnavailable {
		t.Errorf("lookup without index = %d, want 503", code)
	}
	if counter.counts["/events/{entry} Internal Server Error"] != 1 {
		t.Errorf("request metrics = %v", counter.counts)
	}
}

func TestStoreAPI_Lookup(t *testing.T) {
	api, _, _ := newTestAPI(t, 0, nil)

	var resp EventResponse
	if code := get(t, api, "/lookup/1:5:101", &resp); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if resp.Entry != 1 || resp.Collections["rechit"] != 0 {
		t.Errorf("lookup = %+v", resp)
	}
}

func TestStoreAPI_Collection(t *testing.T) {
	api, _, _ := newTestAPI(t, 0, nil)

	var resp CollectionResponse
	if code := get(t, api, "/events/0/collections/rechit", &resp); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}

	if resp.Count != 3 || resp.SizeField != "rechit_pt" {
		t.Errorf("count/size field = %d/%s", resp.Count, resp.SizeField)
	}
	if resp.Scalars["nhits"] != float64(3) {
		t.Errorf("scalars = %v", resp.Scalars)
	}
	// rechit_time has one element, so only the first record carries it.
	want := []map[string]any{
		{"layer": float64(1), "pt": 1.5, "time": 0.1},
		{"layer": float64(2), "pt": 2.5},
		{"layer": float64(3), "pt": 3.5},
	}
	if diff := cmp.Diff(want, resp.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rechit_time"}, resp.ShortFields); diff != "" {
		t.Errorf("short fields mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreAPI_CollectionSizeOverride(t *testing.T) {
	api, _, _ := newTestAPI(t, 2, nil)

	var resp CollectionResponse
	if code := get(t, api, "/events/0/collections/rechit?size=time", &resp); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if resp.Count != 1 || len(resp.Records) != 1 || resp.Truncated {
		t.Errorf("size override = %+v", resp)
	}
	if len(resp.ShortFields) != 0 {
		t.Errorf("short fields = %v, want none when every field covers the size", resp.ShortFields)
	}
	resp = CollectionResponse{}

	if code := get(t, api, "/events/0/collections/rechit", &resp); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if len(resp.Records) != 2 || !resp.Truncated {
		t.Errorf("records = %d truncated %v, want 2 true", len(resp.Records), resp.Truncated)
	}

	var empty CollectionResponse
	if code := get(t, api, "/events/1/collections/rechit", &empty); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if empty.Count != 0 || len(empty.Records) != 0 {
		t.Errorf("empty collection = %+v", empty)
	}
}

func TestStoreAPI_Info(t *testing.T) {
	api, _, _ := newTestAPI(t, 0, nil)

	var info InfoResponse
	if code := get(t, api, "/info", &info); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if info.Entries != 2 || info.IndexedEvents != 2 || info.HasRawRecHits {
		t.Errorf("info = %+v", info)
	}
}

func TestStoreAPI_Health(t *testing.T) {
	api, _, store := newTestAPI(t, 0, nil)

	if !api.Liveness() || !api.Readiness(context.Background()) {
		t.Fatal("open store should be live and ready")
	}
	if diff := cmp.Diff(map[string]string{"store": "open", "entries": "2", "index": "2"}, api.GetStatus()); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	store.Close()
	if api.Readiness(context.Background()) {
		t.Error("closed store reported ready")
	}
	if code := get(t, api, "/events/0", nil); code != http.StatusServiceUnavailable {
		t.Errorf("closed store status = %d, want 503", code)
	}
}

func TestNewHealthMux(t *testing.T) {
	api, _, _ := newTestAPI(t, 0, nil)
	mux := NewHealthMux(Config{}, api, api, discardLogger())

	var health HealthResponse
	if code := get(t, mux, "/health/ready", &health); code != http.StatusOK {
		t.Fatalf("readiness = %d", code)
	}
	if health.Checks["store"] != "open" {
		t.Errorf("checks = %v", health.Checks)
	}
	if code := get(t, mux, "/events/1", nil); code != http.StatusOK {
		t.Errorf("API not mounted on health mux: %d", code)
	}
}

func TestStoreAPI_ConcurrentRequests(t *testing.T) {
	api, _, _ := newTestAPI(t, 0, nil)
	server := httptest.NewServer(api)
	defer server.Close()

	const requests = 20
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path := "/events/0/collections/rechit"
			if i%2 == 1 {
				path = "/events/1"
			}
			resp, err := http.Get(server.URL + path)
			if err != nil {
				t.Errorf("request failed: %v", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("GET %s = %d", path, resp.StatusCode)
			}
		}()
	}
	wg.Wait()
}

func TestServer_NewServer(t *testing.T) {
	checker := &mockHealthChecker{liveness: true, readiness: true, healthy: true}

	server := NewServer(Config{HealthPort: 8080, MetricsPort: 9090}, checker, nil, prometheus.NewRegistry(), discardLogger())
	if server.metricsServer == nil || server.healthServer.Addr != ":8080" {
		t.Errorf("servers = %+v", server)
	}
	if server.healthServer.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want default", server.healthServer.ReadTimeout)
	}

	noMetrics := NewServer(Config{HealthPort: 8080}, checker, nil, nil, discardLogger())
	if noMetrics.metricsServer != nil {
		t.Error("metrics server created without registry")
	}
}

func TestServer_StartShutdown(t *testing.T) {
	checker := &mockHealthChecker{liveness: true}
	server := NewServer(Config{HealthPort: 0, MetricsPort: 0}, checker, nil, prometheus.NewRegistry(), discardLogger())

	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}
