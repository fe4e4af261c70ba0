package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/johndauphine/propfolio/internal/learning"
	"gopkg.in/yaml.v3"
)

// FileStore implements Backend using a single YAML file.
// Designed for headless environments where SQLite is impractical.
type FileStore struct {
	path      string
	accountID string
	mu        sync.RWMutex
	state     *fileStateData
}

// fileStateData is the YAML structure for the state file.
type fileStateData struct {
	Records []stagedRecord        `yaml:"records"`
	Markers map[string]markerData `yaml:"markers,omitempty"`
}

type stagedRecord struct {
	learning.Record `yaml:",inline"`
	MigratedAt      *time.Time `yaml:"migrated_at,omitempty"`
}

// markerData is the per-account completion marker.
type markerData struct {
	CompletedAt time.Time        `yaml:"completed_at"`
	Result      *learning.Result `yaml:"result,omitempty"`
}

// NewFileStore creates a file-based store. If the file exists, it loads the
// existing state.
func NewFileStore(path, accountID string) (*FileStore, error) {
	fs := &FileStore{
		path:      path,
		accountID: accountID,
		state:     &fileStateData{Markers: make(map[string]markerData)},
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading state file: %w", err)
		}
		if err := yaml.Unmarshal(data, fs.state); err != nil {
			return nil, fmt.Errorf("parsing state file: %w", err)
		}
		if fs.state.Markers == nil {
			fs.state.Markers = make(map[string]markerData)
		}
	}

	return fs, nil
}

// save writes the current state to the YAML file.
func (fs *FileStore) save() error {
	data, err := yaml.Marshal(fs.state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

// Stage adds or replaces records by id.
func (fs *FileStore) Stage(ctx context.Context, records ...learning.Record) error {
	if err := validateAll(records); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	index := make(map[string]int, len(fs.state.Records))
	for i, r := range fs.state.Records {
		index[r.ID] = i
	}
	for _, r := range records {
		r = r.Clone()
		if r.StagedAt.IsZero() {
			r.StagedAt = time.Now().UTC()
		}
		if i, ok := index[r.ID]; ok {
			fs.state.Records[i] = stagedRecord{Record: r}
			continue
		}
		index[r.ID] = len(fs.state.Records)
		fs.state.Records = append(fs.state.Records, stagedRecord{Record: r})
	}
	return fs.save()
}

// Records returns pending records in staging order.
func (fs *FileStore) Records(ctx context.Context) ([]learning.Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.pending(), nil
}

func (fs *FileStore) pending() []learning.Record {
	var out []learning.Record
	for _, r := range fs.state.Records {
		if r.MigratedAt == nil {
			out = append(out, r.Record.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StagedAt.Before(out[j].StagedAt)
	})
	return out
}

// HasLocalData reports whether pending records exist.
func (fs *FileStore) HasLocalData(ctx context.Context) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	for _, r := range fs.state.Records {
		if r.MigratedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

// IsMigrationComplete reads the account's completion marker.
func (fs *FileStore) IsMigrationComplete(ctx context.Context) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.state.Markers[fs.accountID]
	return ok, nil
}

// MigrateToDatabase transfers pending records and, on success, flags them
// and writes the marker. The write lock is held for the whole transfer so
// concurrent stages wait instead of racing the flagging step.
func (fs *FileStore) MigrateToDatabase(ctx context.Context, transfer TransferFunc) (*learning.Result, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	records := fs.pending()
	res, err := runTransfer(ctx, records, transfer)
	if err != nil || !res.Success {
		return res, err
	}

	migrated := make(map[string]bool, len(records))
	for _, r := range records {
		migrated[r.ID] = true
	}
	now := time.Now().UTC()
	for i, r := range fs.state.Records {
		if migrated[r.ID] {
			fs.state.Records[i].MigratedAt = &now
		}
	}
	fs.state.Markers[fs.accountID] = markerData{CompletedAt: now, Result: res}

	if err := fs.save(); err != nil {
		return res, fmt.Errorf("recording migration: %w", err)
	}
	return res, nil
}

// ClearMigratedData deletes records already transferred.
func (fs *FileStore) ClearMigratedData(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	kept := fs.state.Records[:0]
	for _, r := range fs.state.Records {
		if r.MigratedAt == nil {
			kept = append(kept, r)
		}
	}
	fs.state.Records = kept
	return fs.save()
}

// ResetMarker removes the account's completion marker.
func (fs *FileStore) ResetMarker(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.state.Markers, fs.accountID)
	return fs.save()
}

// Summary returns counts, the marker, and the last successful result.
func (fs *FileStore) Summary(ctx context.Context) (*Summary, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	sum := &Summary{Backend: "file", AccountID: fs.accountID}
	for _, r := range fs.state.Records {
		if r.MigratedAt == nil {
			sum.Pending.Add(r.Kind, 1)
		} else {
			sum.Migrated.Add(r.Kind, 1)
		}
	}
	if m, ok := fs.state.Markers[fs.accountID]; ok {
		at := m.CompletedAt
		sum.Complete = true
		sum.CompletedAt = &at
		sum.LastResult = m.Result
	}
	return sum, nil
}

// Close is a no-op for file state.
func (fs *FileStore) Close() error {
	return nil
}

// Path returns the state file path.
func (fs *FileStore) Path() string {
	return fs.path
}

var _ Backend = (*FileStore)(nil)
