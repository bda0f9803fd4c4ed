// Package storage keeps uploaded shipment documents on the local filesystem.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shipmentportal/internal/apperr"
	"shipmentportal/pkg/config"
)

const (
	DefaultMaxBytes int64 = 50 * 1024 * 1024
	DefaultDir            = "/tmp/vhc_uploads"

	timestampLayout = "20060102_150405"
	tokenLen        = 12
)

var DefaultAllowedExtensions = []string{"pdf", "xlsx", "xls", "doc", "docx", "jpg", "jpeg", "png"}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ErrInvalidFileType is returned for names outside the extension allowlist.
var ErrInvalidFileType = apperr.Invalid("", "Invalid file type")

// ErrFileMissing is returned when a recorded document is no longer on disk.
var ErrFileMissing error = &apperr.Error{Kind: apperr.ErrNotFound, Message: "File not found on server"}

// StoredFile describes a file written by Save.
type StoredFile struct {
	Name string
	Path string
	Size int64
}

type FileStore struct {
	dir      string
	maxBytes int64
	allowed  map[string]bool
	now      func() time.Time
	logger   *zap.Logger
}

// NewFileStore creates the upload directory when missing.
func NewFileStore(cfg config.UploadConfig, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &FileStore{
		dir:      dir,
		maxBytes: maxBytes,
		allowed:  allowed,
		now:      time.Now,
		logger:   logger,
	}, nil
}

func (s *FileStore) MaxBytes() int64 { return s.maxBytes }

// Allowed reports whether the file name carries a permitted extension.
func (s *FileStore) Allowed(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return false
	}
	return s.allowed[strings.ToLower(name[i+1:])]
}

// SecureFilename reduces an uploaded name to a safe base name: path parts and
// anything outside [A-Za-z0-9_.-] are dropped, runs of whitespace become '_'.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ReplaceAll(name, "/", " ")
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// UniqueName builds {shipmentID}_{YYYYMMDD_HHMMSS}_{token}_{secure name}.
// The random token keeps same-named uploads within one second apart.
func UniqueName(shipmentID int64, original string, at time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLen]
	return fmt.Sprintf("%d_%s_%s_%s", shipmentID, at.UTC().Format(timestampLayout), token, SecureFilename(original))
}

// Save streams r into the upload directory. Content over the size cap is
// rejected and nothing is left on disk.
func (s *FileStore) Save(shipmentID int64, original string, r io.Reader) (*StoredFile, error) {
	if !s.Allowed(original) || SecureFilename(original) == "" {
		return nil, ErrInvalidFileType
	}

	name := UniqueName(shipmentID, original, s.now())
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if n > s.maxBytes {
		return nil, apperr.TooLarge(fmt.Sprintf("File exceeds %d MB limit", s.maxBytes/(1024*1024)))
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	s.logger.Info("document stored",
		zap.Int64("shipment_id", shipmentID),
		zap.String("file", name),
		zap.Int64("size", n),
	)
	return &StoredFile{Name: name, Path: path, Size: n}, nil
}

// Open returns the stored file for reading. A path recorded in the database
// that no longer exists is reported as not found.
func (s *FileStore) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileMissing
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes a stored file; a file that is already gone is not an error.
func (s *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
