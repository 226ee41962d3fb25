package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"valshop-api/internal/model"
)

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FileUserRepository stores each user record as data/users/<id>.json.
type FileUserRepository struct {
	dir string
	mu  sync.RWMutex
}

var _ UserRepository = (*FileUserRepository)(nil)

// NewFileUserRepository creates the directory if needed.
func NewFileUserRepository(dir string) (*FileUserRepository, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create users dir: %w", err)
	}
	log.Printf("[FileUserRepository] Initialized with directory: %s", dir)
	return &FileUserRepository{dir: dir}, nil
}

func (r *FileUserRepository) path(id string) string {
	return filepath.Join(r.dir, unsafeIDChars.ReplaceAllString(id, "_")+".json")
}

func readUserFile(path string) (*model.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return &u, nil
}

// Get returns the record for id, or nil when absent.
func (r *FileUserRepository) Get(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, err := readUserFile(r.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.ID != id {
		return nil, nil
	}
	return u, nil
}

// Save writes the record atomically.
func (r *FileUserRepository) Save(ctx context.Context, user *model.User) error {
	if user == nil || user.ID == "" {
		return errors.New("user id is required")
	}
	user.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(r.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path(user.ID))
}

// Delete removes the record file.
func (r *FileUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *FileUserRepository) files() ([]string, error) {
	return filepath.Glob(filepath.Join(r.dir, "*.json"))
}

// ListIDs returns every stored session id.
func (r *FileUserRepository) ListIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files, err := r.files()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		u, err := readUserFile(f)
		if err != nil {
			log.Printf("[FileUserRepository] Skipping %s: %v", filepath.Base(f), err)
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// PurgePending removes stale pending-2FA records.
func (r *FileUserRepository) PurgePending(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := r.files()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	var removed int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		u, err := readUserFile(f)
		if err != nil || !u.Auth.IsPending() {
			continue
		}
		if u.PendingSince().Before(cutoff) {
			if err := os.Remove(f); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		log.Printf("[FileUserRepository] Purged %d pending 2FA records (threshold: %v)", removed, olderThan)
	}
	return removed, nil
}

// Count returns the number of record files.
func (r *FileUserRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files, err := r.files()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, f := range files {
		if !strings.HasPrefix(filepath.Base(f), ".") {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the file store.
func (r *FileUserRepository) Close() error {
	return nil
}
