package document

import (
	"context"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/internal/storage"
	"shipmentportal/pkg/logger"
)

type Store interface {
	ListByShipment(ctx context.Context, shipmentID int64) ([]model.Document, error)
	Create(ctx context.Context, d *model.Document) error
	Get(ctx context.Context, id int64) (*model.Document, error)
}

type ShipmentChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Files interface {
	Allowed(name string) bool
	Save(shipmentID int64, original string, r io.Reader) (*storage.StoredFile, error)
	Open(path string) (*os.File, error)
	Remove(path string) error
}

// Uploader identifies who sent a document and from which team.
type Uploader struct {
	Email string
	Team  string
}

type Upload struct {
	ShipmentID   int64
	DocumentType string
	FileName     string
	ContentType  string
	Body         io.Reader
}

type Service struct {
	docs      Store
	shipments ShipmentChecker
	files     Files
	logger    *zap.Logger
}

func NewService(docs Store, shipments ShipmentChecker, files Files, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, shipments: shipments, files: files, logger: logger}
}

func (s *Service) List(ctx context.Context, shipmentID int64) ([]model.Document, error) {
	docs, err := s.docs.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

// Upload stores the file and records it. The file is removed again when
// the record cannot be written.
func (s *Service) Upload(ctx context.Context, in Upload, by Uploader) (*model.Document, error) {
	if strings.TrimSpace(in.DocumentType) == "" {
		return nil, apperr.Invalid("", "document_type required")
	}
	if in.FileName == "" {
		return nil, apperr.Invalid("", "No file selected")
	}
	if !s.files.Allowed(in.FileName) {
		return nil, storage.ErrInvalidFileType
	}

	ok, err := s.shipments.Exists(ctx, in.ShipmentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("Shipment")
	}

	stored, err := s.files.Save(in.ShipmentID, in.FileName, in.Body)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ShipmentID:   in.ShipmentID,
		DocumentType: strings.TrimSpace(in.DocumentType),
		DocumentName: storage.SecureFilename(in.FileName),
		FilePath:     stored.Path,
		FileSize:     stored.Size,
		MimeType:     in.ContentType,
		UploadedBy:   by.Email,
	}
	if by.Team != "" {
		team := by.Team
		doc.UploadSource = &team
	}

	log := logger.WithTrace(ctx, s.logger)
	if err := s.docs.Create(ctx, doc); err != nil {
		if rmErr := s.files.Remove(stored.Path); rmErr != nil {
			log.Warn("failed to remove orphaned upload", zap.String("path", stored.Path), zap.Error(rmErr))
		}
		return nil, err
	}

	log.Info("document uploaded",
		zap.Int64("shipment_id", in.ShipmentID),
		zap.Int64("document_id", doc.ID),
		zap.String("document_type", doc.DocumentType),
		zap.Int64("size", doc.FileSize),
	)
	return doc, nil
}

// Open returns the document record and its content. The caller closes the file.
func (s *Service) Open(ctx context.Context, id int64) (*model.Document, *os.File, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(doc.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return doc, f, nil
}
