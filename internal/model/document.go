package model

import "time"

type Document struct {
	ID           int64     `json:"document_id"`
	ShipmentID   int64     `json:"shipment_id"`
	DocumentType string    `json:"document_type"`
	DocumentName string    `json:"document_name"`
	FilePath     string    `json:"-"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type,omitempty"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadSource *string   `json:"upload_source"`
	CreatedAt    time.Time `json:"created_at"`
}
