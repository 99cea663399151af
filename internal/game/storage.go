package game

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/user/silent-god/internal/types"
)

// FileStorage persists the save slot and the archive as JSON files
type FileStorage struct {
	savePath    string
	archivePath string
	stateLock   sync.RWMutex
}

// NewFileStorage creates a new file storage. The archive lives next to the
// save slot.
func NewFileStorage(savePath string) *FileStorage {
	// Create data directory if it doesn't exist
	dir := filepath.Dir(savePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		// If we can't create the directory, we'll just use the default path
		savePath = "./data/save.json"
		dir = "./data"
	}

	return &FileStorage{
		savePath:    savePath,
		archivePath: filepath.Join(dir, "archive.json"),
	}
}

// Save writes the save slot to disk
func (fs *FileStorage) Save(ctx context.Context, state *types.SaveState) error {
	fs.stateLock.Lock()
	defer fs.stateLock.Unlock()

	return writeJSON(fs.savePath, state)
}

// Load reads the save slot. A missing slot yields nil and no error.
func (fs *FileStorage) Load(ctx context.Context) (*types.SaveState, error) {
	fs.stateLock.RLock()
	defer fs.stateLock.RUnlock()

	data, err := os.ReadFile(fs.savePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read save file: %w", err)
	}

	var state types.SaveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse save state: %w", err)
	}

	// Ensure all collections are initialized
	if state.Factions == nil {
		state.Factions = []types.Faction{}
	}
	if state.Figures == nil {
		state.Figures = []types.Person{}
	}
	if state.Logs == nil {
		state.Logs = []types.LogEntry{}
	}

	return &state, nil
}

// Clear removes the save slot
func (fs *FileStorage) Clear(ctx context.Context) error {
	fs.stateLock.Lock()
	defer fs.stateLock.Unlock()

	if err := os.Remove(fs.savePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove save file: %w", err)
	}
	return nil
}

// Archive prepends a concluded world to the archive file
func (fs *FileStorage) Archive(ctx context.Context, world types.PastWorld) error {
	fs.stateLock.Lock()
	defer fs.stateLock.Unlock()

	worlds, err := fs.readArchive()
	if err != nil {
		return err
	}
	worlds = append([]types.PastWorld{world}, worlds...)
	return writeJSON(fs.archivePath, worlds)
}

// ListArchives returns every archived world, newest first
func (fs *FileStorage) ListArchives(ctx context.Context) ([]types.PastWorld, error) {
	fs.stateLock.RLock()
	defer fs.stateLock.RUnlock()

	worlds, err := fs.readArchive()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(worlds, func(i, j int) bool {
		return worlds[i].EndedAt.After(worlds[j].EndedAt)
	})
	return worlds, nil
}

func (fs *FileStorage) readArchive() ([]types.PastWorld, error) {
	data, err := os.ReadFile(fs.archivePath)
	if os.IsNotExist(err) {
		return []types.PastWorld{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive file: %w", err)
	}

	var worlds []types.PastWorld
	if err := json.Unmarshal(data, &worlds); err != nil {
		return nil, fmt.Errorf("failed to parse archive: %w", err)
	}
	if worlds == nil {
		worlds = []types.PastWorld{}
	}
	return worlds, nil
}

func writeJSON(path string, v interface{}) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return nil
}
