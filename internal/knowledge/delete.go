package knowledge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/vectorstore"
)

// DeleteRequest identifies one document to remove.
type DeleteRequest struct {
	TenantID   string
	Collection string
	FileName   string
}

// DeleteDocument removes every chunk of a document. The primary path
// is one store-side filtered delete; if the store rejects it, a
// scan-and-delete fallback reaches the same end state. Deleting a
// document that does not exist succeeds.
func (s *Service) DeleteDocument(ctx context.Context, req DeleteRequest) error {
	ctx, span := tracer.Start(ctx, "Service.DeleteDocument")
	defer span.End()

	if req.TenantID == "" {
		return fmt.Errorf("%w: tenant id required", ErrInvalidRequest)
	}
	if req.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidRequest)
	}
	if req.FileName == "" {
		return fmt.Errorf("%w: file name required", ErrInvalidRequest)
	}
	span.SetAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("collection", req.Collection),
		attribute.String("file_name", req.FileName),
	)

	store, err := s.router.Resolve(req.TenantID)
	if err != nil {
		return err
	}
	physical, err := s.router.PhysicalName(req.TenantID, req.Collection, "")
	if err != nil {
		return err
	}

	exists, err := store.CollectionExists(ctx, physical)
	if err != nil {
		return fmt.Errorf("deleting %s from %s: %w", req.FileName, physical, err)
	}
	if !exists {
		return nil
	}

	return s.deleteFromStore(ctx, store, physical, req.FileName, req.TenantID)
}

func (s *Service) deleteFromStore(ctx context.Context, store vectorstore.Store, physical, fileName, tenantID string) error {
	filter := vectorstore.NewFilter(
		vectorstore.MatchKeyword(keyFileName, fileName),
		vectorstore.MatchKeyword(keySchoolID, tenantID),
	)

	primaryErr := store.DeleteByFilter(ctx, physical, filter)
	if primaryErr == nil {
		s.logger.Info(ctx, "document deleted",
			zap.String("collection", physical),
			zap.String("file_name", fileName),
		)
		return nil
	}

	s.logger.Warn(ctx, "filtered delete failed, falling back to scan",
		zap.String("collection", physical),
		zap.String("file_name", fileName),
		zap.Error(primaryErr),
	)
	DeleteFallbacks.Inc()

	if err := s.deleteByScan(ctx, store, physical, fileName, tenantID); err != nil {
		return fmt.Errorf("delete fallback after %v: %w", primaryErr, err)
	}
	return nil
}

// deleteByScan scrolls the whole collection, matches the document's
// chunks client-side, and deletes the collected ids in batches. The
// scroll runs unfiltered because a broken payload filter may be what
// failed the primary path.
func (s *Service) deleteByScan(ctx context.Context, store vectorstore.Store, physical, fileName, tenantID string) error {
	var ids []string
	var offset string

	for {
		points, next, err := store.Scroll(ctx, vectorstore.ScrollRequest{
			Collection: physical,
			Limit:      s.config.ScrollPageSize,
			Offset:     offset,
		})
		if err != nil {
			return fmt.Errorf("scanning collection %s: %w", physical, err)
		}

		for _, p := range points {
			name, _ := p.Payload[keyFileName].(string)
			school, _ := p.Payload[keySchoolID].(string)
			if name == fileName && school == tenantID {
				ids = append(ids, p.ID)
			}
		}

		if next == "" || len(points) == 0 {
			break
		}
		offset = next
	}

	for start := 0; start < len(ids); start += s.config.DeleteBatchSize {
		end := start + s.config.DeleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := store.DeleteByIDs(ctx, physical, ids[start:end]); err != nil {
			return fmt.Errorf("deleting id batch in %s: %w", physical, err)
		}
	}

	s.logger.Info(ctx, "document deleted via scan fallback",
		zap.String("collection", physical),
		zap.String("file_name", fileName),
		zap.Int("chunks", len(ids)),
	)
	return nil
}
