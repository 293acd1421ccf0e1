package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/brightclass/knowledged/internal/logging"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("knowledged.vectorstore")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-128 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,128}$`)

// ValidateCollectionName rejects names outside the allowed pattern
// (uppercase, path separators, spaces).
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,128}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Config configures a Qdrant endpoint.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (6334, not the 6333 REST port).
	Port int `koanf:"port"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// APIKey is the optional API key for authentication.
	APIKey string `koanf:"api_key"`

	// VectorSize is the embedding dimensionality. Must match the
	// embedding service configuration; collection creation rejects
	// vectors of any other size.
	VectorSize uint64 `koanf:"vector_size"`

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int `koanf:"max_message_size"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `koanf:"dial_timeout"`

	// RequestTimeout bounds individual requests.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RetryAttempts is the retry budget for transient failures.
	RetryAttempts int `koanf:"retry_attempts"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.VectorSize == 0 {
		c.VectorSize = 512
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// Client is a Store implementation backed by Qdrant's gRPC client.
type Client struct {
	client *qdrant.Client
	config Config
	logger *logging.Logger
}

// New connects to a Qdrant endpoint and verifies it is healthy.
func New(config Config, logger *logging.Logger) (*Client, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger required", ErrInvalidConfig)
	}

	qdrantConfig := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}
	if !config.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	qc, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c := &Client{
		client: qc,
		config: config,
		logger: logger.Named("vectorstore"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		_ = qc.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	logger.Info(ctx, "qdrant connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
	)

	return c, nil
}

// Health performs a health check on the Qdrant connection.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// EnsureCollection creates the collection and its payload indexes if
// absent. Safe to call redundantly; must precede any upsert into a
// collection that may not yet exist.
func (c *Client) EnsureCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "Client.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = c.retryOperation(ctx, "create_collection", func() error {
		err := c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     c.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		// A concurrent provisioner may have won the race.
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.AlreadyExists {
			return nil
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	if err := c.createPayloadIndexes(ctx, name); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	c.logger.Info(ctx, "collection provisioned",
		zap.String("collection", name),
		zap.Uint64("vector_size", c.config.VectorSize),
	)
	return nil
}

// createPayloadIndexes creates the indexes scoped filtering depends
// on: full-text on the chunk text, keyword on collection and school.
func (c *Client) createPayloadIndexes(ctx context.Context, name string) error {
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{"text", qdrant.FieldType_FieldTypeText},
		{"collection", qdrant.FieldType_FieldTypeKeyword},
		{"school_id", qdrant.FieldType_FieldTypeKeyword},
	}

	for _, idx := range indexes {
		idx := idx
		err := c.retryOperation(ctx, "create_field_index", func() error {
			_, err := c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: name,
				FieldName:      idx.field,
				FieldType:      &idx.kind,
				Wait:           qdrant.PtrOf(true),
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("creating %s index on %s.%s: %w", idx.kind, name, idx.field, err)
		}
	}
	return nil
}

// CollectionExists checks if a collection exists.
func (c *Client) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	var exists bool
	err := c.retryOperation(ctx, "collection_exists", func() error {
		info, err := c.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return exists, nil
}

// ListCollections returns all collection names on this endpoint.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var collections []string
	err := c.retryOperation(ctx, "list_collections", func() error {
		result, err := c.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		collections = result
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

// DeleteCollection deletes a collection and all its points.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	err := c.retryOperation(ctx, "delete_collection", func() error {
		return c.client.DeleteCollection(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}

// Upsert inserts or updates points in a collection.
func (c *Client) Upsert(ctx context.Context, collection string, points []*Point, wait bool) error {
	ctx, span := tracer.Start(ctx, "Client.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(points)),
	)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qdrantPoints[i] = toQdrantPoint(p)
	}

	err := c.retryOperation(ctx, "upsert", func() error {
		_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         qdrantPoints,
			Wait:           qdrant.PtrOf(wait),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("upserting %d points to %s: %w", len(points), collection, err)
	}
	return nil
}

// Query performs similarity search in a collection.
func (c *Client) Query(ctx context.Context, req QueryRequest) ([]*ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "Client.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", req.Collection),
		attribute.Int64("limit", int64(req.Limit)),
	)

	if err := ValidateCollectionName(req.Collection); err != nil {
		return nil, err
	}

	var results []*qdrant.ScoredPoint
	err := c.retryOperation(ctx, "query", func() error {
		res, err := c.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: req.Collection,
			Query:          qdrant.NewQuery(req.Vector...),
			Limit:          qdrant.PtrOf(req.Limit),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         req.Filter.toQdrant(),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, req.Collection)
		}
		return nil, fmt.Errorf("searching collection %s: %w", req.Collection, err)
	}

	scored := make([]*ScoredPoint, len(results))
	for i, r := range results {
		scored[i] = fromQdrantScoredPoint(r)
	}
	return scored, nil
}

// Scroll returns one page of points matching the filter, without
// vectors, plus the next page token.
func (c *Client) Scroll(ctx context.Context, req ScrollRequest) ([]*Point, string, error) {
	ctx, span := tracer.Start(ctx, "Client.Scroll")
	defer span.End()
	span.SetAttributes(attribute.String("collection", req.Collection))

	if err := ValidateCollectionName(req.Collection); err != nil {
		return nil, "", err
	}

	scroll := &qdrant.ScrollPoints{
		CollectionName: req.Collection,
		Filter:         req.Filter.toQdrant(),
		Limit:          qdrant.PtrOf(req.Limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if req.Offset != "" {
		scroll.Offset = qdrant.NewIDUUID(req.Offset)
	}

	var (
		points []*qdrant.RetrievedPoint
		next   *qdrant.PointId
	)
	err := c.retryOperation(ctx, "scroll", func() error {
		res, nextOffset, err := c.client.ScrollAndOffset(ctx, scroll)
		if err != nil {
			return err
		}
		points, next = res, nextOffset
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, "", fmt.Errorf("scrolling collection %s: %w", req.Collection, err)
	}

	out := make([]*Point, len(points))
	for i, p := range points {
		out[i] = fromQdrantRetrievedPoint(p)
	}
	return out, extractPointID(next), nil
}

// DeleteByFilter removes all points matching the filter.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, filter *Filter) error {
	ctx, span := tracer.Start(ctx, "Client.DeleteByFilter")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	err := c.retryOperation(ctx, "delete_by_filter", func() error {
		_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: filter.toQdrant(),
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("filtered delete in %s: %w", collection, err)
	}
	return nil
}

// DeleteByIDs removes the listed points.
func (c *Client) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	ctx, span := tracer.Start(ctx, "Client.DeleteByIDs")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	err := c.retryOperation(ctx, "delete_by_ids", func() error {
		_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("deleting %d points in %s: %w", len(ids), collection, err)
	}
	return nil
}

// retryOperation retries an operation with exponential backoff on
// transient errors.
func (c *Client) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientError(err) {
			return err
		}
		if attempt == c.config.RetryAttempts {
			break
		}

		c.logger.Debug(ctx, "retrying operation after transient error",
			zap.String("operation", operationName),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return fmt.Errorf("%s failed after %d retries: %w", operationName, c.config.RetryAttempts, lastErr)
}

// isTransientError reports whether an error is worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// Ensure Client implements Store.
var _ Store = (*Client)(nil)
