package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"shipmentportal/internal/model"
)

type DocumentRepository struct {
	db *pgxpool.Pool
}

func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) ListByShipment(ctx context.Context, shipmentID int64) ([]model.Document, error) {
	rows, err := r.db.Query(ctx, `
        SELECT document_id, shipment_id, document_type, document_name, file_path, file_size,
               COALESCE(mime_type, ''), uploaded_by, upload_source, created_at
        FROM documents
        WHERE shipment_id = $1
        ORDER BY created_at DESC
    `, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.ShipmentID, &d.DocumentType, &d.DocumentName, &d.FilePath,
			&d.FileSize, &d.MimeType, &d.UploadedBy, &d.UploadSource, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Create records an uploaded file. A missing shipment surfaces as not found.
func (r *DocumentRepository) Create(ctx context.Context, d *model.Document) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO documents (shipment_id, document_type, document_name, file_path, file_size,
                               mime_type, uploaded_by, upload_source)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
        RETURNING document_id, created_at
    `, d.ShipmentID, d.DocumentType, d.DocumentName, d.FilePath, d.FileSize,
		d.MimeType, d.UploadedBy, d.UploadSource,
	).Scan(&d.ID, &d.CreatedAt)
	return translate(err, "Shipment", "")
}

func (r *DocumentRepository) Get(ctx context.Context, id int64) (*model.Document, error) {
	var d model.Document
	err := r.db.QueryRow(ctx, `
        SELECT document_id, shipment_id, document_type, document_name, file_path, file_size,
               COALESCE(mime_type, ''), uploaded_by, upload_source, created_at
        FROM documents
        WHERE document_id = $1
    `, id).Scan(&d.ID, &d.ShipmentID, &d.DocumentType, &d.DocumentName, &d.FilePath,
		&d.FileSize, &d.MimeType, &d.UploadedBy, &d.UploadSource, &d.CreatedAt)
	if err != nil {
		return nil, translate(err, "Document", "")
	}
	return &d, nil
}
