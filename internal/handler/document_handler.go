package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/internal/service/document"
)

// multipartSlack allows for form boundaries and the document_type field on
// top of the file itself.
const multipartSlack = 1 << 20

type DocumentService interface {
	List(ctx context.Context, shipmentID int64) ([]model.Document, error)
	Upload(ctx context.Context, in document.Upload, by document.Uploader) (*model.Document, error)
	Open(ctx context.Context, id int64) (*model.Document, *os.File, error)
}

type DocumentHandler struct {
	docs      DocumentService
	maxUpload int64
	logger    *zap.Logger
}

func NewDocumentHandler(svc DocumentService, maxUpload int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{docs: svc, maxUpload: maxUpload, logger: nopIfNil(logger)}
}

// List handles GET /shipments/:id/documents
func (h *DocumentHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	docs, err := h.docs.List(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Upload handles POST /shipments/:id/documents/upload (multipart: file, document_type)
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartSlack)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, h.logger, apperr.TooLarge("File too large"))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer f.Close()

	doc, err := h.docs.Upload(c.Request.Context(), document.Upload{
		ShipmentID:   id,
		DocumentType: c.PostForm("document_type"),
		FileName:     fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Body:         f,
	}, document.Uploader{Email: user.Email, Team: user.Team})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Document uploaded successfully",
		"document_id": doc.ID,
	})
}

// Download handles GET /documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, f, err := h.docs.Open(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": doc.DocumentName}),
	})
}
