package document

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/internal/storage"
	"shipmentportal/pkg/config"
)

type memDocs struct {
	docs    map[int64]*model.Document
	failErr error
}

func (m *memDocs) ListByShipment(_ context.Context, shipmentID int64) ([]model.Document, error) {
	var out []model.Document
	for _, d := range m.docs {
		if d.ShipmentID == shipmentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDocs) Create(_ context.Context, d *model.Document) error {
	if m.failErr != nil {
		return m.failErr
	}
	d.ID = int64(len(m.docs) + 1)
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *memDocs) Get(_ context.Context, id int64) (*model.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, apperr.NotFound("Document")
	}
	cp := *d
	return &cp, nil
}

type knownShipments map[int64]bool

func (k knownShipments) Exists(_ context.Context, id int64) (bool, error) { return k[id], nil }

func newTestService(t *testing.T) (*Service, *memDocs, *storage.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFileStore(config.UploadConfig{Dir: dir}, nil)
	require.NoError(t, err)
	docs := &memDocs{docs: map[int64]*model.Document{}}
	return NewService(docs, knownShipments{1: true}, files, nil), docs, files, dir
}

func TestUploadAndOpen(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, Upload{
		ShipmentID:   1,
		DocumentType: "COMMERCIAL_INVOICE",
		FileName:     "Commercial Invoice.pdf",
		ContentType:  "application/pdf",
		Body:         strings.NewReader("%PDF-1.4"),
	}, Uploader{Email: "origin@seair.com", Team: "Shanghai"})
	require.NoError(t, err)
	assert.Equal(t, "Commercial_Invoice.pdf", doc.DocumentName)
	assert.Equal(t, int64(8), doc.FileSize)
	require.NotNil(t, doc.UploadSource)
	assert.Equal(t, "Shanghai", *doc.UploadSource)

	got, f, err := svc.Open(ctx, doc.ID)
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, doc.DocumentName, got.DocumentName)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	empty, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestUploadValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	by := Uploader{Email: "x@seair.com"}

	cases := []struct {
		name   string
		in     Upload
		status int
		msg    string
	}{
		{"missing type", Upload{ShipmentID: 1, FileName: "a.pdf"}, 400, "document_type required"},
		{"no file name", Upload{ShipmentID: 1, DocumentType: "BL"}, 400, "No file selected"},
		{"bad extension", Upload{ShipmentID: 1, DocumentType: "BL", FileName: "run.exe"}, 400, "Invalid file type"},
		{"unknown shipment", Upload{ShipmentID: 9, DocumentType: "BL", FileName: "a.pdf"}, 404, "Shipment not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Body = strings.NewReader("x")
			_, err := svc.Upload(context.Background(), tc.in, by)
			status, msg := apperr.Status(err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestUploadRemovesFileWhenRecordFails(t *testing.T) {
	svc, docs, _, dir := newTestService(t)
	docs.failErr = errors.New("db down")

	_, err := svc.Upload(context.Background(), Upload{
		ShipmentID:   1,
		DocumentType: "BL",
		FileName:     "bl.pdf",
		Body:         strings.NewReader("bill"),
	}, Uploader{Email: "x@seair.com"})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenMissing(t *testing.T) {
	svc, docs, _, dir := newTestService(t)

	_, _, err := svc.Open(context.Background(), 5)
	_, msg := apperr.Status(err)
	assert.Equal(t, "Document not found", msg)

	docs.docs[5] = &model.Document{ID: 5, FilePath: dir + "/gone.pdf"}
	_, _, err = svc.Open(context.Background(), 5)
	status, msg := apperr.Status(err)
	assert.Equal(t, 404, status)
	assert.Equal(t, "File not found on server", msg)
}
