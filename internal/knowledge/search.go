package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/logging"
	"github.com/brightclass/knowledged/internal/tenant"
	"github.com/brightclass/knowledged/internal/vectorstore"
)

// SearchRequest describes one retrieval query.
type SearchRequest struct {
	Query string

	// Collections are logical collection names, or admin display
	// entries of the form "<collection> (<tenant>)".
	Collections []string

	// Limit caps the merged result count. Zero uses the configured
	// default.
	Limit int

	// TenantID scopes plain collection names and the payload filter.
	TenantID string

	// Strategy is semantic, hybrid, or exact. Empty means semantic.
	Strategy string
}

// Result is one retrieved chunk.
type Result struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Score      float32        `json:"score"`
	FileName   string         `json:"file_name"`
	Collection string         `json:"collection"`
	TenantID   string         `json:"tenant_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// searchTarget is one resolved collection to query.
type searchTarget struct {
	entry    string
	physical string
	tenantID string
	store    vectorstore.Store
}

// Search embeds the query once and runs it against every requested
// collection, merging the per-collection hits into one ranked list.
// Collections that fail individually are skipped; a query that cannot
// be embedded yields an empty result set.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Service.Search")
	defer span.End()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query required", ErrInvalidRequest)
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategySemantic
	}
	switch strategy {
	case StrategySemantic, StrategyHybrid, StrategyExact:
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidRequest, req.Strategy)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.config.SearchLimit
	}
	span.SetAttributes(
		attribute.String("strategy", strategy),
		attribute.Int("collections", len(req.Collections)),
		attribute.Int("limit", limit),
	)
	if req.TenantID != "" {
		ctx = logging.WithTenantID(ctx, req.TenantID)
	}

	started := time.Now()
	defer func() {
		SearchDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
	}()

	vector, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		s.logger.Error(ctx, "query embedding failed, returning no results", zap.Error(err))
		return []Result{}, nil
	}

	var pool []Result
	for _, entry := range req.Collections {
		target, err := s.resolveTarget(entry, req.TenantID)
		if err != nil {
			s.logger.Warn(ctx, "skipping unresolvable collection",
				zap.String("entry", entry),
				zap.Error(err),
			)
			SearchSkippedCollections.Inc()
			continue
		}

		hits, err := target.store.Query(ctx, vectorstore.QueryRequest{
			Collection: target.physical,
			Vector:     vector,
			Limit:      uint64(limit),
			Filter:     searchFilter(strategy, req.Query, target.tenantID),
		})
		if err != nil {
			s.logger.Warn(ctx, "skipping collection after query error",
				zap.String("collection", target.physical),
				zap.Error(err),
			)
			SearchSkippedCollections.Inc()
			continue
		}

		for _, hit := range hits {
			pool = append(pool, resultFromPoint(hit, target))
		}
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

// resolveTarget maps a requested entry to a physical collection and
// the store serving it. Display entries carry their own tenant; plain
// names belong to the requesting tenant.
func (s *Service) resolveTarget(entry, requestTenant string) (searchTarget, error) {
	tenantID := requestTenant
	collection := entry

	if parsedTenant, parsedCollection, err := tenant.ParseDisplayName(entry); err == nil {
		tenantID = parsedTenant
		collection = parsedCollection
	}
	if tenantID == "" {
		return searchTarget{}, fmt.Errorf("%w: entry %q needs a tenant", ErrInvalidRequest, entry)
	}

	physical, err := s.router.PhysicalName(tenantID, collection, "")
	if err != nil {
		return searchTarget{}, err
	}
	store, err := s.router.Resolve(tenantID)
	if err != nil {
		return searchTarget{}, err
	}
	return searchTarget{entry: entry, physical: physical, tenantID: tenantID, store: store}, nil
}

// searchFilter builds the payload filter: tenant scoping always, plus
// a server-side text match for the hybrid and exact strategies.
func searchFilter(strategy, query, tenantID string) *vectorstore.Filter {
	conditions := []vectorstore.Condition{
		vectorstore.MatchKeyword(keySchoolID, tenantID),
	}
	if strategy == StrategyHybrid || strategy == StrategyExact {
		conditions = append(conditions, vectorstore.MatchText(keyText, query))
	}
	return vectorstore.NewFilter(conditions...)
}

func resultFromPoint(hit *vectorstore.ScoredPoint, target searchTarget) Result {
	r := Result{
		ID:       hit.ID,
		Score:    hit.Score,
		TenantID: target.tenantID,
		Metadata: make(map[string]any),
	}
	for k, v := range hit.Payload {
		switch k {
		case keyText:
			r.Text, _ = v.(string)
		case keyFileName:
			r.FileName, _ = v.(string)
		case keyCollection:
			r.Collection, _ = v.(string)
		default:
			r.Metadata[k] = v
		}
	}
	if len(r.Metadata) == 0 {
		r.Metadata = nil
	}
	return r
}
