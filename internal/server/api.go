package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/jittakal/ntuplestore/pkg/ntuple"
)

// Ensure implementation satisfies interface at compile time.
var _ HealthChecker = (*StoreAPI)(nil)

// MetricsCollector defines metrics operations for the API.
type MetricsCollector interface {
	IncHTTPRequests(route string, code int)
}

// EventResponse describes one event and the sizes of its collections.
type EventResponse struct {
	Entry       int               `json:"entry"`
	Run         int64             `json:"run"`
	Lumi        int64             `json:"lumi"`
	Event       int64             `json:"event"`
	Key         string            `json:"key"`
	Collections map[string]int    `json:"collections"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// CollectionResponse lists the records of one collection. ShortFields
// names the sequence fields with fewer elements than Count; records past
// their end omit them.
type CollectionResponse struct {
	Entry       int              `json:"entry"`
	Prefix      string           `json:"prefix"`
	SizeField   string           `json:"size_field"`
	Count       int              `json:"count"`
	Scalars     map[string]any   `json:"scalars,omitempty"`
	Records     []map[string]any `json:"records"`
	ShortFields []string         `json:"short_fields,omitempty"`
	Truncated   bool             `json:"truncated,omitempty"`
}

// InfoResponse describes the open ntuple.
type InfoResponse struct {
	Path          string   `json:"path"`
	Entries       int      `json:"entries"`
	Fields        []string `json:"fields"`
	HasRawRecHits bool     `json:"has_raw_rechits"`
	IndexedEvents int      `json:"indexed_events"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StoreAPI serves events of one ntuple over HTTP. A Store has a single
// current entry, so requests are serialized.
type StoreAPI struct {
	mu          sync.Mutex
	store       *ntuple.Store
	index       *ntuple.EventIndex
	collections map[string]ntuple.Kind
	order       []ntuple.Kind
	maxRecords  int
	logger      *slog.Logger
	metrics     MetricsCollector
	mux         *http.ServeMux
}

// NewStoreAPI creates the API. index may be nil, which disables /lookup.
// maxRecords caps records per collection response; zero means no cap.
func NewStoreAPI(
	store *ntuple.Store,
	index *ntuple.EventIndex,
	collections []ntuple.Kind,
	maxRecords int,
	logger *slog.Logger,
	metrics MetricsCollector,
) *StoreAPI {
	a := &StoreAPI{
		store:       store,
		index:       index,
		collections: make(map[string]ntuple.Kind, len(collections)),
		order:       collections,
		maxRecords:  maxRecords,
		logger:      logger,
		metrics:     metrics,
		mux:         http.NewServeMux(),
	}
	for _, k := range collections {
		a.collections[k.Prefix] = k
	}

	a.handle("GET /info", a.handleInfo)
	a.handle("GET /events/{entry}", a.handleEvent)
	a.handle("GET /events/{entry}/collections/{prefix}", a.handleCollection)
	a.handle("GET /lookup/{key}", a.handleLookup)
	return a
}

// ServeHTTP implements http.Handler.
func (a *StoreAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// apiHandler returns a status code and body for a request.
type apiHandler func(r *http.Request) (int, any)

func (a *StoreAPI) handle(pattern string, h apiHandler) {
	route := pattern[len("GET "):]
	a.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		code, body := h(r)
		a.mu.Unlock()

		if a.metrics != nil {
			a.metrics.IncHTTPRequests(route, code)
		}
		if code >= http.StatusInternalServerError {
			a.logger.Error("request failed", "route", route, "path", r.URL.Path, "status_code", code)
		}
		writeJSON(w, code, body, a.logger)
	})
}

func (a *StoreAPI) handleInfo(r *http.Request) (int, any) {
	info := InfoResponse{
		Path:          a.store.Path(),
		Entries:       a.store.EntryCount(),
		Fields:        a.store.Fields(),
		HasRawRecHits: a.store.HasRawRecHits(),
	}
	if a.index != nil {
		info.IndexedEvents = a.index.Len()
	}
	return http.StatusOK, info
}

func (a *StoreAPI) handleEvent(r *http.Request) (int, any) {
	entry, err := strconv.Atoi(r.PathValue("entry"))
	if err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: "entry must be an integer"}
	}
	return a.describeEvent(entry)
}

func (a *StoreAPI) handleLookup(r *http.Request) (int, any) {
	if a.index == nil {
		return http.StatusServiceUnavailable, ErrorResponse{Error: "event index not available"}
	}
	id, err := ntuple.ParseEventID(r.PathValue("key"))
	if err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	entry, ok := a.index.Lookup(id)
	if !ok {
		return http.StatusNotFound, ErrorResponse{Error: "event " + id.String() + " not found"}
	}
	return a.describeEvent(entry)
}

func (a *StoreAPI) describeEvent(entry int) (int, any) {
	ev, err := a.store.LoadEntry(entry)
	if err != nil {
		return errorStatus(err), ErrorResponse{Error: err.Error()}
	}

	id, err := ev.ID()
	if err != nil {
		return errorStatus(err), ErrorResponse{Error: err.Error()}
	}

	resp := EventResponse{
		Entry:       entry,
		Run:         id.Run,
		Lumi:        id.Lumi,
		Event:       id.Event,
		Key:         id.String(),
		Collections: make(map[string]int, len(a.order)),
	}
	for _, kind := range a.order {
		n, err := ev.Of(kind).Len()
		switch {
		case err == nil:
			resp.Collections[kind.Prefix] = n
		case errors.Is(err, ntuple.ErrMissingField):
			// Undeclared in this file.
		default:
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[kind.Prefix] = err.Error()
		}
	}
	return http.StatusOK, resp
}

func (a *StoreAPI) handleCollection(r *http.Request) (int, any) {
	entry, err := strconv.Atoi(r.PathValue("entry"))
	if err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: "entry must be an integer"}
	}
	prefix := r.PathValue("prefix")

	sizeAttr := r.URL.Query().Get("size")
	if sizeAttr == "" {
		kind, ok := a.collections[prefix]
		if !ok {
			return http.StatusBadRequest, ErrorResponse{Error: "collection " + prefix + " is not declared; pass ?size=attr"}
		}
		sizeAttr = kind.SizeAttr
	}

	ev, err := a.store.LoadEntry(entry)
	if err != nil {
		return errorStatus(err), ErrorResponse{Error: err.Error()}
	}
	coll := ev.Collection(prefix, sizeAttr)
	n, err := coll.Len()
	if err != nil {
		return errorStatus(err), ErrorResponse{Error: err.Error()}
	}
	table, err := ev.Table(prefix)
	if err != nil {
		return errorStatus(err), ErrorResponse{Error: err.Error()}
	}

	resp := CollectionResponse{
		Entry:     entry,
		Prefix:    prefix,
		SizeField: coll.SizeField(),
		Count:     n,
		Records:   make([]map[string]any, 0, n),
	}

	var attrs []string
	for attr, v := range table {
		if v.IsSequence() {
			attrs = append(attrs, attr)
			continue
		}
		if resp.Scalars == nil {
			resp.Scalars = make(map[string]any)
		}
		resp.Scalars[attr] = v.Interface()
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		if table[attr].Len() < n {
			resp.ShortFields = append(resp.ShortFields, prefix+"_"+attr)
		}
	}
	if len(resp.ShortFields) > 0 {
		a.logger.Warn("collection has short fields",
			"entry", entry,
			"prefix", prefix,
			"count", n,
			"fields", resp.ShortFields,
		)
	}

	for rec, err := range coll.All() {
		if err != nil {
			return errorStatus(err), ErrorResponse{Error: err.Error()}
		}
		if a.maxRecords > 0 && len(resp.Records) >= a.maxRecords {
			resp.Truncated = true
			break
		}
		row := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			v, err := rec.Get(attr)
			if errors.Is(err, ntuple.ErrIndexOutOfRange) {
				// Listed in ShortFields.
				continue
			}
			if err != nil {
				return errorStatus(err), ErrorResponse{Error: err.Error()}
			}
			row[attr] = v
		}
		resp.Records = append(resp.Records, row)
	}
	return http.StatusOK, resp
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ntuple.ErrIndexOutOfRange), errors.Is(err, ntuple.ErrMissingField):
		return http.StatusNotFound
	case errors.Is(err, ntuple.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Liveness reports that the process is running.
func (a *StoreAPI) Liveness() bool {
	return true
}

// Readiness reports whether the store is open and has entries.
func (a *StoreAPI) Readiness(ctx context.Context) bool {
	return a.IsHealthy()
}

// IsHealthy reports whether the store can serve events.
func (a *StoreAPI) IsHealthy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.EntryCount() > 0 && !a.store.Closed()
}

// GetStatus returns per-component readiness details.
func (a *StoreAPI) GetStatus() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := map[string]string{
		"store":   "open",
		"entries": strconv.Itoa(a.store.EntryCount()),
		"index":   "disabled",
	}
	if a.store.Closed() {
		status["store"] = "closed"
	}
	if a.index != nil {
		status["index"] = strconv.Itoa(a.index.Len())
	}
	return status
}
