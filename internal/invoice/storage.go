package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save writes data under a key derived from filename and returns the key
	Save(filename string, data []byte) (string, error)

	// Path returns the local path a key is stored at
	Path(key string) string

	// Get retrieves a file by key
	Get(key string) ([]byte, error)

	// Delete removes a file
	Delete(key string) error
}

// KeyStrategy decides the file name used inside the upload directory
type KeyStrategy string

const (
	// KeyUnique prefixes a random UUID, so uploads never overwrite each other
	KeyUnique KeyStrategy = "unique"
	// KeyOriginal keeps the uploaded name; a later upload with the same name
	// overwrites the earlier file
	KeyOriginal KeyStrategy = "original"
)

// ParseKeyStrategy validates a strategy name
func ParseKeyStrategy(s string) (KeyStrategy, error) {
	switch KeyStrategy(s) {
	case KeyUnique, KeyOriginal:
		return KeyStrategy(s), nil
	}
	return "", fmt.Errorf("unknown storage key strategy %q (want %q or %q)", s, KeyUnique, KeyOriginal)
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
	keys     KeyStrategy
	newID    func() string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string, keys KeyStrategy) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	if keys == "" {
		keys = KeyUnique
	}

	return &LocalStorage{
		basePath: basePath,
		keys:     keys,
		newID:    uuid.NewString,
	}, nil
}

// key builds the storage key for an uploaded file name
func (l *LocalStorage) key(filename string) string {
	if l.keys == KeyOriginal {
		// Only the base name, so a crafted name cannot leave the directory
		base := filepath.Base(filepath.Clean("/" + filename))
		if base == "/" || base == "." {
			return "upload"
		}
		return base
	}
	return fmt.Sprintf("%s_%s", l.newID(), sanitizeFilename(filename))
}

// Save writes the whole file, overwriting any file with the same key. The
// upload directory is recreated if it was removed.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(l.basePath, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory: %w", err)
	}

	key := l.key(filename)
	if err := os.WriteFile(l.Path(key), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return key, nil
}

// Path returns the local path of a key
func (l *LocalStorage) Path(key string) string {
	return filepath.Join(l.basePath, key)
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(l.Path(key))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(key string) error {
	if err := os.Remove(l.Path(key)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	ext = unsafeChars.ReplaceAllString(ext[min(1, len(ext)):], "")

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Phone cameras produce long names; 50 chars is plenty
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}
