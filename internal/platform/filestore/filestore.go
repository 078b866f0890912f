// Package filestore persists binary document artifacts (PDFs and similar)
// outside the database. Records keep only the relative URL returned by Save.
// It provides a local-disk implementation and a thread-safe in-memory
// implementation for tests and development.
package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrInvalidName      = errors.New("artifact name is invalid")
)

// MaxFileSize is the maximum allowed artifact size in bytes (50 MB).
const MaxFileSize = 50 * 1024 * 1024

// Artifact describes a stored binary file.
type Artifact struct {
	URL       string    `json:"url"`  // relative path under the store root
	Name      string    `json:"name"` // original file name
	Size      int64     `json:"size_bytes"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the contract for artifact storage backends.
type Store interface {
	Save(ctx context.Context, name string, content io.Reader) (*Artifact, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Stat(ctx context.Context, url string) (*Artifact, error)
	Delete(ctx context.Context, url string) error
}

// ArtifactName builds the canonical artifact file name for a document:
// "{type}_{patientID}_{unix timestamp}.pdf".
func ArtifactName(docType, patientID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d.pdf", docType, patientID, at.Unix())
}

func validateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	// Artifact names are flat; anything that could escape the root is rejected.
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}

func readLimited(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// Disk implementation
// ---------------------------------------------------------------------------

// DiskStore stores artifacts as flat files under a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a DiskStore.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// Save writes the content to disk under name and returns the artifact
// metadata. The returned URL is the name itself, relative to the root.
func (s *DiskStore) Save(_ context.Context, name string, content io.Reader) (*Artifact, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return nil, fmt.Errorf("write artifact %s: %w", name, err)
	}

	h := sha256.Sum256(data)
	return &Artifact{
		URL:       name,
		Name:      name,
		Size:      int64(len(data)),
		Hash:      fmt.Sprintf("%x", h),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Open returns a reader over the artifact content.
func (s *DiskStore) Open(_ context.Context, url string) (io.ReadCloser, error) {
	if err := validateName(url); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("open artifact %s: %w", url, err)
	}
	return f, nil
}

// Stat returns artifact metadata without content.
func (s *DiskStore) Stat(_ context.Context, url string) (*Artifact, error) {
	if err := validateName(url); err != nil {
		return nil, err
	}
	info, err := os.Stat(filepath.Join(s.root, url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("stat artifact %s: %w", url, err)
	}
	return &Artifact{
		URL:       url,
		Name:      url,
		Size:      info.Size(),
		CreatedAt: info.ModTime().UTC(),
	}, nil
}

// Delete removes the artifact file.
func (s *DiskStore) Delete(_ context.Context, url string) error {
	if err := validateName(url); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, url)); err != nil {
		if os.IsNotExist(err) {
			return ErrArtifactNotFound
		}
		return fmt.Errorf("delete artifact %s: %w", url, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedArtifact struct {
	meta    Artifact
	content []byte
}

// MemStore is a thread-safe, in-memory Store for testing and development.
type MemStore struct {
	mu    sync.RWMutex
	files map[string]*storedArtifact
}

// NewMemStore returns a ready-to-use MemStore.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string]*storedArtifact)}
}

func (s *MemStore) Save(_ context.Context, name string, content io.Reader) (*Artifact, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	h := sha256.Sum256(data)
	meta := Artifact{
		URL:       name,
		Name:      name,
		Size:      int64(len(data)),
		Hash:      fmt.Sprintf("%x", h),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.files[name] = &storedArtifact{meta: meta, content: data}
	s.mu.Unlock()

	out := meta // copy
	return &out, nil
}

func (s *MemStore) Open(_ context.Context, url string) (io.ReadCloser, error) {
	s.mu.RLock()
	f, ok := s.files[url]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func (s *MemStore) Stat(_ context.Context, url string) (*Artifact, error) {
	s.mu.RLock()
	f, ok := s.files[url]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrArtifactNotFound
	}
	meta := f.meta // copy
	return &meta, nil
}

func (s *MemStore) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[url]; !ok {
		return ErrArtifactNotFound
	}
	delete(s.files, url)
	return nil
}
