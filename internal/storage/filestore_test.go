package storage

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipmentportal/internal/apperr"
	"shipmentportal/pkg/config"
)

func newTestStore(t *testing.T, maxBytes int64) *FileStore {
	t.Helper()
	s, err := NewFileStore(config.UploadConfig{Dir: t.TempDir(), MaxBytes: maxBytes}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return s
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"invoice.pdf":                "invoice.pdf",
		"My Bill of Lading.pdf":      "My_Bill_of_Lading.pdf",
		"../../etc/passwd":           "etc_passwd",
		`C:\Users\ops\scan.png`:      "C_Users_ops_scan.png",
		"   .hidden.docx":            "hidden.docx",
		"r\u00e9sum\u00e9 (1).doc": "rsum_1.doc",
	}
	for in, want := range cases {
		assert.Equal(t, want, SecureFilename(in), in)
	}
}

func TestAllowed(t *testing.T) {
	s := newTestStore(t, 0)

	for _, name := range []string{"a.pdf", "a.PDF", "sheet.xlsx", "photo.jpeg", "x.tar.png"} {
		assert.True(t, s.Allowed(name), name)
	}
	for _, name := range []string{"a.exe", "noext", "trailing.", "a.pdf.sh"} {
		assert.False(t, s.Allowed(name), name)
	}
}

func TestSaveWritesUniqueName(t *testing.T) {
	s := newTestStore(t, 0)

	f, err := s.Save(42, "Commercial Invoice.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^42_20250304_050607_[0-9a-f]{12}_Commercial_Invoice\.pdf$`), f.Name)
	assert.Equal(t, int64(8), f.Size)

	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestSaveSameNameWithinOneSecondKeepsBoth(t *testing.T) {
	s := newTestStore(t, 0)

	first, err := s.Save(1, "invoice.pdf", strings.NewReader("FIRST"))
	require.NoError(t, err)
	second, err := s.Save(1, "invoice.pdf", strings.NewReader("SECOND"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "FIRST", string(data))
	data, err = os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", string(data))
}

func TestSaveRejectsDisallowedExtension(t *testing.T) {
	s := newTestStore(t, 0)

	_, err := s.Save(1, "payload.exe", strings.NewReader("MZ"))
	require.Error(t, err)

	status, msg := apperr.Status(err)
	assert.Equal(t, 400, status)
	assert.Equal(t, "Invalid file type", msg)
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	s := newTestStore(t, 4)

	_, err := s.Save(1, "big.pdf", strings.NewReader("12345"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTooLarge))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected upload must not leave files behind")
}

func TestOpenMissingFile(t *testing.T) {
	s := newTestStore(t, 0)

	_, err := s.Open(filepath.Join(s.dir, "gone.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRemoveIgnoresMissingFile(t *testing.T) {
	s := newTestStore(t, 0)

	stored, err := s.Save(7, "bl.pdf", strings.NewReader("bill of lading"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(stored.Path))
	assert.NoError(t, s.Remove(stored.Path))

	_, err = s.Open(stored.Path)
	status, msg := apperr.Status(err)
	assert.Equal(t, 404, status)
	assert.Equal(t, "File not found on server", msg)
}
