package knowledge

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/extract"
	"github.com/brightclass/knowledged/internal/vectorstore"
)

// DocumentInfo is one document derived from its chunks.
type DocumentInfo struct {
	FileName    string `json:"file_name"`
	Preview     string `json:"preview"`
	UploadedBy  string `json:"uploaded_by,omitempty"`
	UploadedAt  string `json:"uploaded_at,omitempty"`
	ContentType string `json:"content_type,omitempty"`

	// TotalChunks is the chunk count recorded at ingestion time.
	TotalChunks int `json:"total_chunks"`

	// ChunkCount is the number of chunks actually observed; differs
	// from TotalChunks only after a partial failure.
	ChunkCount int `json:"chunk_count"`
}

// DocumentList is one page of the derived document registry.
type DocumentList struct {
	Documents []DocumentInfo `json:"documents"`

	// Total is the number of grouped documents in the collection
	// within the scan cap.
	Total int `json:"total"`

	// NextOffset is set when further documents remain.
	NextOffset *int `json:"next_offset,omitempty"`
}

// ListRequest describes one registry page.
type ListRequest struct {
	TenantID   string
	Collection string
	Limit      int
	Offset     int
}

// ListDocuments scans a collection's chunks and groups them into
// per-document entries, newest upload first. There is no document
// table; the listing is derived from chunk payloads on every call.
func (s *Service) ListDocuments(ctx context.Context, req ListRequest) (*DocumentList, error) {
	ctx, span := tracer.Start(ctx, "Service.ListDocuments")
	defer span.End()

	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrInvalidRequest)
	}
	if req.Collection == "" {
		return nil, fmt.Errorf("%w: collection required", ErrInvalidRequest)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	span.SetAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("collection", req.Collection),
	)

	store, err := s.router.Resolve(req.TenantID)
	if err != nil {
		return nil, err
	}
	physical, err := s.router.PhysicalName(req.TenantID, req.Collection, "")
	if err != nil {
		return nil, err
	}

	exists, err := store.CollectionExists(ctx, physical)
	if err != nil {
		return nil, fmt.Errorf("listing documents in %s: %w", physical, err)
	}
	if !exists {
		return &DocumentList{Documents: []DocumentInfo{}}, nil
	}

	docs, err := s.scanDocuments(ctx, store, physical, req.TenantID)
	if err != nil {
		return nil, err
	}

	// Newest upload first; name breaks ties so paging is stable.
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].UploadedAt != docs[j].UploadedAt {
			return docs[i].UploadedAt > docs[j].UploadedAt
		}
		return docs[i].FileName < docs[j].FileName
	})

	total := len(docs)
	if offset >= total {
		return &DocumentList{Documents: []DocumentInfo{}, Total: total}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	list := &DocumentList{Documents: docs[offset:end], Total: total}
	if end < total {
		next := end
		list.NextOffset = &next
	}
	return list, nil
}

// docAccumulator tracks one document while scanning chunks.
type docAccumulator struct {
	info          DocumentInfo
	previewIndex  int64
	havePreviewAt bool
}

// scanDocuments scrolls chunk payloads and groups them by file name.
// The scan is capped; collections beyond the cap list their newest
// documents only.
func (s *Service) scanDocuments(ctx context.Context, store vectorstore.Store, physical, tenantID string) ([]DocumentInfo, error) {
	filter := vectorstore.NewFilter(vectorstore.MatchKeyword(keySchoolID, tenantID))

	groups := make(map[string]*docAccumulator)
	var scanned int
	var offset string

	for scanned < s.config.ScrollMaxPoints {
		points, next, err := store.Scroll(ctx, vectorstore.ScrollRequest{
			Collection: physical,
			Filter:     filter,
			Limit:      s.config.ScrollPageSize,
			Offset:     offset,
		})
		if err != nil {
			return nil, fmt.Errorf("scanning collection %s: %w", physical, err)
		}

		for _, p := range points {
			s.accumulateChunk(groups, p)
		}
		scanned += len(points)

		if next == "" || len(points) == 0 {
			break
		}
		offset = next
	}
	if scanned >= s.config.ScrollMaxPoints {
		s.logger.Warn(ctx, "document scan hit point cap",
			zap.String("collection", physical),
			zap.Int("cap", s.config.ScrollMaxPoints),
		)
	}

	docs := make([]DocumentInfo, 0, len(groups))
	for _, acc := range groups {
		docs = append(docs, acc.info)
	}
	return docs, nil
}

func (s *Service) accumulateChunk(groups map[string]*docAccumulator, p *vectorstore.Point) {
	fileName, _ := p.Payload[keyFileName].(string)
	if fileName == "" {
		return
	}

	chunkIndex, _ := payloadInt(p.Payload[keyChunkIndex])
	acc, ok := groups[fileName]
	if !ok {
		acc = &docAccumulator{}
		acc.info.FileName = fileName
		acc.info.UploadedBy, _ = p.Payload[keyUploadedBy].(string)
		acc.info.UploadedAt, _ = p.Payload[keyUploadedAt].(string)
		acc.info.ContentType, _ = p.Payload[keyContentType].(string)
		if total, isInt := payloadInt(p.Payload[keyTotalChunks]); isInt {
			acc.info.TotalChunks = int(total)
		}
		groups[fileName] = acc
	}
	acc.info.ChunkCount++

	// The preview comes from the document's earliest chunk seen.
	if !acc.havePreviewAt || chunkIndex < acc.previewIndex {
		text, _ := p.Payload[keyText].(string)
		acc.info.Preview = s.preview(text)
		acc.previewIndex = chunkIndex
		acc.havePreviewAt = true
	}
}

// payloadInt normalizes the numeric kinds a payload value may carry.
func payloadInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// preview truncates chunk text for listings, substituting a
// placeholder when the text is an unextracted binary signature.
func (s *Service) preview(text string) string {
	if extract.IsPDF([]byte(text)) {
		return "[binary content]"
	}
	runes := []rune(text)
	if len(runes) <= s.config.PreviewLength {
		return text
	}
	return string(runes[:s.config.PreviewLength]) + "..."
}
