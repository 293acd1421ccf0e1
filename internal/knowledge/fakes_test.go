package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/brightclass/knowledged/internal/logging"
	"github.com/brightclass/knowledged/internal/tenant"
	"github.com/brightclass/knowledged/internal/vectorstore"
)

// fakeStore is an in-memory vectorstore.Store with error injection.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]*vectorstore.Point

	// Canned similarity results per collection.
	queryResults map[string][]*vectorstore.ScoredPoint
	queryErrs    map[string]error
	lastQuery    vectorstore.QueryRequest

	failDeleteByFilter bool
	failUpsertOnCall   int // 1-based call number to fail on; 0 disables
	upsertCalls        int
	deleteByIDsCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections:  make(map[string][]*vectorstore.Point),
		queryResults: make(map[string][]*vectorstore.ScoredPoint),
		queryErrs:    make(map[string]error),
	}
}

func (f *fakeStore) EnsureCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = nil
	}
	return nil
}

func (f *fakeStore) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeStore) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStore) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, collection string, points []*vectorstore.Point, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.failUpsertOnCall > 0 && f.upsertCalls == f.failUpsertOnCall {
		return fmt.Errorf("injected upsert failure")
	}
	f.collections[collection] = append(f.collections[collection], points...)
	return nil
}

func (f *fakeStore) Query(_ context.Context, req vectorstore.QueryRequest) ([]*vectorstore.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = req
	if err := f.queryErrs[req.Collection]; err != nil {
		return nil, err
	}
	return f.queryResults[req.Collection], nil
}

func (f *fakeStore) Scroll(_ context.Context, req vectorstore.ScrollRequest) ([]*vectorstore.Point, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*vectorstore.Point
	for _, p := range f.collections[req.Collection] {
		if matchesFilter(p, req.Filter) {
			matched = append(matched, p)
		}
	}

	start := 0
	if req.Offset != "" {
		start, _ = strconv.Atoi(req.Offset)
	}
	if start >= len(matched) {
		return nil, "", nil
	}
	end := start + int(req.Limit)
	if end > len(matched) {
		end = len(matched)
	}

	next := ""
	if end < len(matched) {
		next = strconv.Itoa(end)
	}
	return matched[start:end], next, nil
}

func (f *fakeStore) DeleteByFilter(_ context.Context, collection string, filter *vectorstore.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDeleteByFilter {
		return fmt.Errorf("injected filter delete failure")
	}

	var kept []*vectorstore.Point
	for _, p := range f.collections[collection] {
		if !matchesFilter(p, filter) {
			kept = append(kept, p)
		}
	}
	f.collections[collection] = kept
	return nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteByIDsCalls++

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	var kept []*vectorstore.Point
	for _, p := range f.collections[collection] {
		if _, ok := drop[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	f.collections[collection] = kept
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) points(collection string) []*vectorstore.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*vectorstore.Point(nil), f.collections[collection]...)
}

// matchesFilter evaluates Must keyword conditions against the payload.
func matchesFilter(p *vectorstore.Point, filter *vectorstore.Filter) bool {
	if filter == nil {
		return true
	}
	for _, c := range filter.Must {
		if c.Match != nil {
			if v, _ := p.Payload[c.Match.Key].(string); v != c.Match.Value {
				return false
			}
		}
	}
	return true
}

// fakeEmbedder returns deterministic vectors and can fail on a given
// batch call.
type fakeEmbedder struct {
	dims            int
	batchCalls      int
	failBatchOnCall int
	failQuery       bool
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.failQuery {
		return nil, fmt.Errorf("injected embed failure")
	}
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if f.failBatchOnCall > 0 && f.batchCalls == f.failBatchOnCall {
		return nil, fmt.Errorf("injected batch embed failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

// newTestService wires a service over one fake store in single mode.
func newTestService(t testingT, cfg Config) (*Service, *fakeStore, *fakeEmbedder) {
	store := newFakeStore()
	router, err := tenant.NewRouter(
		tenant.Config{
			Mode:      tenant.ModeSingle,
			Endpoints: map[string]vectorstore.Config{tenant.DefaultCluster: {Host: "fake"}},
		},
		logging.NewNop(),
		tenant.WithDialFunc(func(vectorstore.Config, *logging.Logger) (vectorstore.Store, error) {
			return store, nil
		}),
	)
	if err != nil {
		t.Fatalf("building router: %v", err)
	}

	embedder := &fakeEmbedder{dims: 4}
	svc, err := NewService(cfg, router, embedder, logging.NewNop())
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc, store, embedder
}

type testingT interface {
	Fatalf(format string, args ...any)
}
