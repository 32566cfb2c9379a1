// Package storage keeps gestion documents on local disk under a configured
// root, the way the hosting box serves them today.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const gestionDir = "documents/gestiones"

// AllowedExtensions for uploaded documents.
var AllowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".pdf": true,
}

// MaxUploadBytes caps a single document upload (10 MB).
const MaxUploadBytes = 10 << 20

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

// SaveGestionDocument writes data under documents/gestiones and returns the
// relative path recorded on the gestion.
func (s *Store) SaveGestionDocument(fileName string, data []byte) (string, error) {
	rel := filepath.ToSlash(filepath.Join(gestionDir, fileName))
	abs, err := s.abs(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

func (s *Store) Read(rel string) ([]byte, error) {
	abs, err := s.abs(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

func (s *Store) Exists(rel string) bool {
	abs, err := s.abs(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

func (s *Store) Delete(rel string) error {
	abs, err := s.abs(rel)
	if err != nil {
		return err
	}
	err = os.Remove(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// abs resolves rel under the root and rejects traversal outside it.
func (s *Store) abs(rel string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	if full != rootAbs && !strings.HasPrefix(full, rootAbs+string(os.PathSeparator)) {
		return "", errors.New("storage: path escapes root")
	}
	return full, nil
}

// MIMEType maps a stored file name to the Content-Type used when serving it.
func MIMEType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
