// Package blob stores uploaded inspection images on the local filesystem.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	// Save writes data for a round and returns the stored (root-relative) path and file name.
	Save(roundID uint, filename string, data io.Reader) (storedPath, savedName string, err error)
	// Resolve turns a stored path into an absolute path.
	Resolve(storedPath string) (string, error)
	Remove(storedPath string) error
}

type LocalStore struct {
	root string
	now  func() time.Time
}

func NewLocal(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &LocalStore{root: abs, now: time.Now}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Save(roundID uint, filename string, data io.Reader) (string, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "", "", errors.New("file has no extension")
	}
	dir := filepath.Join(s.root, "inspections", fmt.Sprint(roundID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	ts := strings.ReplaceAll(s.now().UTC().Format("20060102150405.000000"), ".", "")
	base := fmt.Sprintf("%d_%s_%s", roundID, ts, uuid.NewString()[:8])
	if stem := slug(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))); stem != "" {
		base += "_" + stem
	}
	name := base + "." + ext
	full := filepath.Join(dir, name)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(full)
		return "", "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", "", err
	}

	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", "", err
	}
	return filepath.ToSlash(rel), name, nil
}

func (s *LocalStore) Resolve(storedPath string) (string, error) {
	full := filepath.Clean(storedPath)
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, filepath.FromSlash(storedPath))
	}
	if rel, err := filepath.Rel(s.root, full); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes upload root", storedPath)
	}
	return full, nil
}

func (s *LocalStore) Remove(storedPath string) error {
	full, err := s.Resolve(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// slug keeps up to 32 lowercase ASCII letters, digits and dashes of s.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if b.Len() >= 32 {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
