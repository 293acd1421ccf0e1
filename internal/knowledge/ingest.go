package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/chunker"
	"github.com/brightclass/knowledged/internal/extract"
	"github.com/brightclass/knowledged/internal/logging"
	"github.com/brightclass/knowledged/internal/vectorstore"
)

// IngestRequest describes one document upload.
type IngestRequest struct {
	TenantID   string
	Collection string
	FileName   string

	// Content is the raw upload: plain text, or PDF bytes.
	Content []byte

	UploadedBy string

	// Extras are free-form payload fields stored on every chunk.
	Extras map[string]any

	// OnProgress, when set, receives the percentage of chunks
	// persisted after each batch.
	OnProgress func(percent int)
}

func (r *IngestRequest) validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("%w: tenant id required", ErrInvalidRequest)
	}
	if r.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidRequest)
	}
	if r.FileName == "" {
		return fmt.Errorf("%w: file name required", ErrInvalidRequest)
	}
	if len(r.Content) == 0 {
		return fmt.Errorf("%w: content required", ErrInvalidRequest)
	}
	return nil
}

// Ingest chunks a document, embeds the chunks in batches, and writes
// them to the tenant's collection. A failed batch rolls back the
// document's chunks before returning, so a file is either fully
// present or absent.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) error {
	ctx, span := tracer.Start(ctx, "Service.Ingest")
	defer span.End()

	if err := req.validate(); err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("collection", req.Collection),
		attribute.String("file_name", req.FileName),
	)
	ctx = logging.WithTenantID(ctx, req.TenantID)

	store, err := s.router.Resolve(req.TenantID)
	if err != nil {
		return err
	}
	physical, err := s.router.PhysicalName(req.TenantID, req.Collection, "")
	if err != nil {
		return err
	}

	text, contentType, err := s.extractText(req)
	if err != nil {
		IngestErrors.WithLabelValues(req.TenantID, "extract").Inc()
		return fmt.Errorf("%w: %v", ErrIngestFailed, err)
	}

	opts := chunker.DefaultOptions()
	opts.PreserveParagraphs = contentType == contentTypePDF
	chunks := chunker.Split(text, opts)
	if len(chunks) == 0 {
		s.logger.Warn(ctx, "document produced no chunks",
			zap.String("file_name", req.FileName),
			zap.Int("content_bytes", len(req.Content)),
		)
		return nil
	}

	if err := store.EnsureCollection(ctx, physical); err != nil {
		IngestErrors.WithLabelValues(req.TenantID, "upsert").Inc()
		return fmt.Errorf("%w: %v", ErrIngestFailed, err)
	}

	uploadedAt := time.Now().UTC().Format(time.RFC3339)

	for start := 0; start < len(chunks); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := s.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			IngestErrors.WithLabelValues(req.TenantID, "embed").Inc()
			s.rollbackIngest(ctx, store, physical, req)
			return fmt.Errorf("%w: embedding batch at chunk %d: %v", ErrIngestFailed, start, err)
		}

		points := make([]*vectorstore.Point, len(batch))
		for i, chunk := range batch {
			payload := map[string]any{
				keyText:        chunk,
				keyFileName:    req.FileName,
				keySchoolID:    req.TenantID,
				keyCollection:  req.Collection,
				keyUploadedBy:  req.UploadedBy,
				keyUploadedAt:  uploadedAt,
				keyChunkIndex:  start + i,
				keyTotalChunks: len(chunks),
				keyContentType: contentType,
			}
			for k, v := range req.Extras {
				if _, reserved := payload[k]; !reserved {
					payload[k] = v
				}
			}
			points[i] = &vectorstore.Point{
				ID:      uuid.NewString(),
				Vector:  vectors[i],
				Payload: payload,
			}
		}

		if err := store.Upsert(ctx, physical, points, true); err != nil {
			IngestErrors.WithLabelValues(req.TenantID, "upsert").Inc()
			s.rollbackIngest(ctx, store, physical, req)
			return fmt.Errorf("%w: upserting batch at chunk %d: %v", ErrIngestFailed, start, err)
		}

		if req.OnProgress != nil {
			req.OnProgress(end * 100 / len(chunks))
		}
	}

	IngestedChunks.WithLabelValues(req.TenantID).Add(float64(len(chunks)))
	s.logger.Info(ctx, "document ingested",
		zap.String("collection", physical),
		zap.String("file_name", req.FileName),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// Content types recorded on chunks.
const (
	contentTypePDF  = "application/pdf"
	contentTypeText = "text/plain"
)

func (s *Service) extractText(req IngestRequest) (text, contentType string, err error) {
	if extract.IsPDF(req.Content) {
		text, err = extract.PDFText(req.Content)
		if err != nil {
			return "", "", fmt.Errorf("extracting %s: %w", req.FileName, err)
		}
		return text, contentTypePDF, nil
	}
	return string(req.Content), contentTypeText, nil
}

// rollbackIngest removes whatever chunks of the file made it in before
// the failure. Best effort; the original error wins.
func (s *Service) rollbackIngest(ctx context.Context, store vectorstore.Store, physical string, req IngestRequest) {
	if err := s.deleteFromStore(ctx, store, physical, req.FileName, req.TenantID); err != nil {
		s.logger.Error(ctx, "rollback of partial ingestion failed",
			zap.String("collection", physical),
			zap.String("file_name", req.FileName),
			zap.Error(err),
		)
	}
}
