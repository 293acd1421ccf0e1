// Package knowledge implements the retrieval subsystem: document
// ingestion into per-tenant collections, hybrid search across them,
// the derived document registry, and resilient deletion.
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/brightclass/knowledged/internal/logging"
	"github.com/brightclass/knowledged/internal/tenant"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("knowledged.knowledge")

// Common errors.
var (
	ErrInvalidConfig  = errors.New("invalid knowledge configuration")
	ErrInvalidRequest = errors.New("invalid request")
	ErrIngestFailed   = errors.New("document ingestion failed")
)

// Payload keys under which chunk attributes are stored.
const (
	keyText        = "text"
	keyFileName    = "file_name"
	keySchoolID    = "school_id"
	keyCollection  = "collection"
	keyUploadedBy  = "uploaded_by"
	keyUploadedAt  = "uploaded_at"
	keyChunkIndex  = "chunk_index"
	keyTotalChunks = "total_chunks"
	keyContentType = "content_type"
)

// Search strategies.
const (
	StrategySemantic = "semantic"
	StrategyHybrid   = "hybrid"
	StrategyExact    = "exact"
)

// Embedder is the embedding surface the service consumes.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config configures the knowledge service.
type Config struct {
	// BatchSize is the number of chunks embedded and upserted per
	// ingestion batch.
	BatchSize int `koanf:"batch_size"`

	// SearchLimit is the default result count when a search request
	// does not specify one.
	SearchLimit int `koanf:"search_limit"`

	// ScrollPageSize is the page size used for registry and fallback
	// deletion scans.
	ScrollPageSize uint32 `koanf:"scroll_page_size"`

	// ScrollMaxPoints caps how many chunks a registry scan will read
	// from one collection.
	ScrollMaxPoints int `koanf:"scroll_max_points"`

	// DeleteBatchSize is the id batch size for fallback deletion.
	DeleteBatchSize int `koanf:"delete_batch_size"`

	// PreviewLength is the number of preview characters per document
	// in listings.
	PreviewLength int `koanf:"preview_length"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 20
	}
	if c.SearchLimit == 0 {
		c.SearchLimit = 5
	}
	if c.ScrollPageSize == 0 {
		c.ScrollPageSize = 256
	}
	if c.ScrollMaxPoints == 0 {
		c.ScrollMaxPoints = 10000
	}
	if c.DeleteBatchSize == 0 {
		c.DeleteBatchSize = 100
	}
	if c.PreviewLength == 0 {
		c.PreviewLength = 200
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.SearchLimit < 1 {
		return fmt.Errorf("%w: search limit must be positive", ErrInvalidConfig)
	}
	if c.DeleteBatchSize < 1 {
		return fmt.Errorf("%w: delete batch size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Service is the retrieval subsystem facade.
type Service struct {
	config   Config
	router   *tenant.Router
	embedder Embedder
	logger   *logging.Logger
}

// NewService wires the service.
func NewService(config Config, router *tenant.Router, embedder Embedder, logger *logging.Logger) (*Service, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating knowledge config: %w", err)
	}
	if router == nil {
		return nil, fmt.Errorf("%w: router required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger required", ErrInvalidConfig)
	}

	return &Service{
		config:   config,
		router:   router,
		embedder: embedder,
		logger:   logger.Named("knowledge"),
	}, nil
}

// Router exposes the tenant router for admin surfaces.
func (s *Service) Router() *tenant.Router {
	return s.router
}
