package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/brightclass/knowledged/internal/access"
	"github.com/brightclass/knowledged/internal/knowledge"
	"github.com/brightclass/knowledged/internal/tenant"
)

// Principal headers. Authentication happens at the platform gateway;
// these identify the already-authenticated caller.
const (
	headerPrincipal       = "X-Principal"
	headerPrincipalTenant = "X-Principal-Tenant"
	headerPrincipalAdmin  = "X-Principal-Admin"
)

func principalFrom(c echo.Context) access.Principal {
	return access.Principal{
		ID:       c.Request().Header.Get(headerPrincipal),
		TenantID: c.Request().Header.Get(headerPrincipalTenant),
		Admin:    c.Request().Header.Get(headerPrincipalAdmin) == "true",
	}
}

// authorize rejects the request unless the caller may touch tenantID.
func (s *Server) authorize(c echo.Context, tenantID string) error {
	principal := principalFrom(c)

	ok, err := s.checker.CanAccess(c.Request().Context(), principal, tenantID)
	if err != nil {
		if errors.Is(err, access.ErrUnknownPrincipal) {
			return echo.NewHTTPError(http.StatusUnauthorized, "principal required")
		}
		return err
	}
	if !ok {
		s.logger.Warn(c.Request().Context(), "access denied",
			zap.String("principal", principal.ID),
			zap.String("tenant_id", tenantID),
		)
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	}
	return nil
}

// IngestDocumentRequest is the body for POST .../documents.
type IngestDocumentRequest struct {
	FileName string `json:"file_name"`

	// Content is plain text. ContentBase64 carries binary uploads
	// (PDF); exactly one of the two is expected.
	Content       string `json:"content,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`

	UploadedBy string         `json:"uploaded_by,omitempty"`
	Extras     map[string]any `json:"extras,omitempty"`
}

// IngestDocumentResponse is the response for POST .../documents.
type IngestDocumentResponse struct {
	FileName string `json:"file_name"`
	Status   string `json:"status"`
}

func (s *Server) handleIngest(c echo.Context) error {
	tenantID := c.Param("tenant")
	collection := c.Param("collection")
	if err := s.authorize(c, tenantID); err != nil {
		return err
	}

	var req IngestDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	content := []byte(req.Content)
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "content_base64 is not valid base64")
		}
		content = decoded
	}

	err := s.knowledge.Ingest(c.Request().Context(), knowledge.IngestRequest{
		TenantID:   tenantID,
		Collection: collection,
		FileName:   req.FileName,
		Content:    content,
		UploadedBy: req.UploadedBy,
		Extras:     req.Extras,
	})
	if err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusCreated, IngestDocumentResponse{
		FileName: req.FileName,
		Status:   "ingested",
	})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	tenantID := c.Param("tenant")
	if err := s.authorize(c, tenantID); err != nil {
		return err
	}

	var query struct {
		Limit  int `query:"limit"`
		Offset int `query:"offset"`
	}
	if err := c.Bind(&query); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	list, err := s.knowledge.ListDocuments(c.Request().Context(), knowledge.ListRequest{
		TenantID:   tenantID,
		Collection: c.Param("collection"),
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	tenantID := c.Param("tenant")
	if err := s.authorize(c, tenantID); err != nil {
		return err
	}

	err := s.knowledge.DeleteDocument(c.Request().Context(), knowledge.DeleteRequest{
		TenantID:   tenantID,
		Collection: c.Param("collection"),
		FileName:   c.Param("file"),
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SearchRequest is the body for POST /api/v1/search.
type SearchRequest struct {
	Query       string   `json:"query"`
	Collections []string `json:"collections"`
	Limit       int      `json:"limit,omitempty"`
	TenantID    string   `json:"tenant_id"`
	Strategy    string   `json:"strategy,omitempty"`
}

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	Results []knowledge.Result `json:"results"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}
	if err := s.authorize(c, req.TenantID); err != nil {
		return err
	}

	results, err := s.knowledge.Search(c.Request().Context(), knowledge.SearchRequest{
		Query:       req.Query,
		Collections: req.Collections,
		Limit:       req.Limit,
		TenantID:    req.TenantID,
		Strategy:    req.Strategy,
	})
	if err != nil {
		return s.mapError(c, err)
	}
	if results == nil {
		results = []knowledge.Result{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: results})
}

// mapError translates service errors into HTTP status codes.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, knowledge.ErrInvalidRequest),
		errors.Is(err, tenant.ErrInvalidTenantID),
		errors.Is(err, tenant.ErrInvalidCollection):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
