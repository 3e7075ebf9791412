// Package storage persists comparison artifacts and input copies.
package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	SingleDir = "single_comparisons"
	BulkDir   = "bulk_comparisons"

	// RunLayout names bulk run folders.
	RunLayout = "20060102_150405"
)

// ArtifactStore saves a named blob and returns a reference to it.
type ArtifactStore interface {
	Save(name string, data []byte) (string, error)
}

// DirStore writes artifacts below root/prefix and returns references
// relative to root, with forward slashes.
type DirStore struct {
	root   string
	prefix string
}

func NewDirStore(root string, prefix ...string) (*DirStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is empty")
	}

	parts := make([]string, 0, len(prefix))
	for _, p := range prefix {
		clean := SanitizeName(p)
		if clean == "" {
			return nil, fmt.Errorf("invalid storage folder %q", p)
		}
		parts = append(parts, clean)
	}

	s := &DirStore{root: root, prefix: filepath.Join(parts...)}
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.Dir(), err)
	}
	return s, nil
}

// NewSessionStore stores under root/single_comparisons/<session>. An empty
// session gets a fresh id.
func NewSessionStore(root, session string) (*DirStore, string, error) {
	if session == "" {
		session = NewSessionID()
	}
	s, err := NewDirStore(root, SingleDir, session)
	if err != nil {
		return nil, "", err
	}
	return s, session, nil
}

// NewRunStore stores under root/bulk_comparisons/<YYYYmmdd_HHMMSS>.
func NewRunStore(root string, at time.Time) (*DirStore, error) {
	return NewDirStore(root, BulkDir, at.Format(RunLayout))
}

func NewSessionID() string {
	return uuid.NewString()
}

// Dir is the absolute or root-relative folder artifacts land in.
func (s *DirStore) Dir() string {
	return filepath.Join(s.root, s.prefix)
}

func (s *DirStore) Root() string {
	return s.root
}

func (s *DirStore) Save(name string, data []byte) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	full := filepath.Join(s.Dir(), clean)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", full, err)
	}

	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", fmt.Errorf("failed to relativise %s: %w", full, err)
	}
	return filepath.ToSlash(rel), nil
}

// Path resolves a reference returned by Save.
func (s *DirStore) Path(ref string) string {
	return filepath.Join(s.root, filepath.FromSlash(ref))
}

// DiscardStore drops every artifact and returns the reference it would have
// had. It holds no state.
type DiscardStore struct {
	Prefix string
}

func (d DiscardStore) Save(name string, data []byte) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return path.Join(d.Prefix, clean), nil
}

// MemoryStore keeps artifacts in memory. References are prefix/name.
type MemoryStore struct {
	mu     sync.RWMutex
	prefix string
	blobs  map[string][]byte
}

func NewMemoryStore(prefix ...string) *MemoryStore {
	return &MemoryStore{
		prefix: path.Join(prefix...),
		blobs:  make(map[string][]byte),
	}
}

func (m *MemoryStore) Save(name string, data []byte) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	ref := path.Join(m.prefix, clean)
	blob := make([]byte, len(data))
	copy(blob, data)

	m.mu.Lock()
	m.blobs[ref] = blob
	m.mu.Unlock()

	return ref, nil
}

func (m *MemoryStore) Get(ref string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[ref]
	return blob, ok
}

// Refs lists stored references in lexical order.
func (m *MemoryStore) Refs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]string, 0, len(m.blobs))
	for ref := range m.blobs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// SanitizeName reduces name to a single safe path element: ASCII letters,
// digits, '.', '-' and '_' survive, whitespace and separators become '_',
// and leading dots or underscores are dropped.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '/' || r == '\\':
			b.WriteRune('_')
		}
	}

	clean := strings.TrimLeft(b.String(), "._")
	if clean == "" || strings.Trim(clean, ".") == "" {
		return ""
	}
	return clean
}
