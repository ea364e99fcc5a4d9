// Package state persists console state between runs: registered environments,
// the active selection, cached service snapshots, and named workspaces. The
// state file lives under the user config directory and holds nothing that
// cannot be rebuilt from the gateway, so a corrupt or missing file is never
// fatal to the caller that can fall back to defaults.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hardimpactdev/orbit-console/internal/domain"
)

const fileVersion = 1

// Environment is a registered environment plus its persisted service
// snapshot. Pending jobs are deliberately not part of the snapshot; they are
// rebuilt by the recovery sweep on the next connect.
type Environment struct {
	domain.Environment
	Cache *domain.EnvironmentCache `json:"cache,omitempty"`
}

// File is the on-disk state document.
type File struct {
	Version           int                `json:"version"`
	ActiveEnvironment string             `json:"active_environment,omitempty"`
	Environments      []Environment      `json:"environments,omitempty"`
	Workspaces        []domain.Workspace `json:"workspaces,omitempty"`
}

// Store reads and writes the state file.
type Store struct {
	path   string
	logger *slog.Logger
}

// New returns a store rooted at the user config directory.
func New(logger *slog.Logger) (*Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return NewAt(filepath.Join(base, "orbit", "state.json"), logger), nil
}

// NewAt returns a store using an explicit file path.
func NewAt(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("component", "state")}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields an empty document rather
// than an error; a file written by a newer version is refused so we do not
// silently drop fields we do not understand.
func (s *Store) Load() (File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{Version: fileVersion}, nil
		}
		return File{}, fmt.Errorf("read state file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	if f.Version == 0 {
		f.Version = fileVersion
	}
	if f.Version > fileVersion {
		return File{}, fmt.Errorf("state file %s has version %d, this build understands %d", s.path, f.Version, fileVersion)
	}
	s.logger.Debug("state loaded", "path", s.path, "environments", len(f.Environments))
	return f, nil
}

// Save writes the state file, creating its directory on first use.
func (s *Store) Save(f File) error {
	f.Version = fileVersion
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	s.logger.Debug("state saved", "path", s.path, "environments", len(f.Environments))
	return nil
}

// Environment looks an environment up by ID or name.
func (f *File) Environment(ref string) (Environment, bool) {
	for _, env := range f.Environments {
		if env.ID == ref || env.Name == ref {
			return env, true
		}
	}
	return Environment{}, false
}

// Active returns the currently selected environment.
func (f *File) Active() (Environment, bool) {
	if f.ActiveEnvironment == "" {
		return Environment{}, false
	}
	for _, env := range f.Environments {
		if env.ID == f.ActiveEnvironment {
			return env, true
		}
	}
	return Environment{}, false
}

// AddEnvironment registers a new environment. Names are unique so they can
// serve as references on the command line. The first environment added
// becomes active.
func (f *File) AddEnvironment(env domain.Environment) error {
	if env.ID == "" {
		return errors.New("environment id cannot be empty")
	}
	if env.Name == "" {
		return errors.New("environment name cannot be empty")
	}
	for _, existing := range f.Environments {
		if existing.Name == env.Name {
			return fmt.Errorf("environment %q already exists", env.Name)
		}
		if existing.ID == env.ID {
			return fmt.Errorf("environment id %s already exists", env.ID)
		}
	}
	f.Environments = append(f.Environments, Environment{Environment: env})
	if f.ActiveEnvironment == "" {
		f.ActiveEnvironment = env.ID
	}
	return nil
}

// RemoveEnvironment drops an environment by ID or name and reports whether
// anything was removed. Removing the active environment clears the
// selection.
func (f *File) RemoveEnvironment(ref string) bool {
	for i, env := range f.Environments {
		if env.ID == ref || env.Name == ref {
			f.Environments = append(f.Environments[:i], f.Environments[i+1:]...)
			if f.ActiveEnvironment == env.ID {
				f.ActiveEnvironment = ""
			}
			return true
		}
	}
	return false
}

// SetActive selects an environment by ID or name.
func (f *File) SetActive(ref string) error {
	env, ok := f.Environment(ref)
	if !ok {
		return fmt.Errorf("unknown environment %q", ref)
	}
	f.ActiveEnvironment = env.ID
	return nil
}

// Caches collects the persisted service snapshots keyed by environment ID.
func (f *File) Caches() map[string]*domain.EnvironmentCache {
	out := make(map[string]*domain.EnvironmentCache, len(f.Environments))
	for _, env := range f.Environments {
		if env.Cache != nil {
			out[env.ID] = env.Cache
		}
	}
	return out
}

// SetCaches attaches service snapshots to their environments. Snapshots for
// environments that are no longer registered are dropped.
func (f *File) SetCaches(caches map[string]*domain.EnvironmentCache) {
	for i := range f.Environments {
		f.Environments[i].Cache = caches[f.Environments[i].ID]
	}
}

// Workspace looks a workspace up by name.
func (f *File) Workspace(name string) (domain.Workspace, bool) {
	for _, ws := range f.Workspaces {
		if ws.Name == name {
			return ws, true
		}
	}
	return domain.Workspace{}, false
}

// SetWorkspace adds or replaces a workspace.
func (f *File) SetWorkspace(ws domain.Workspace) error {
	if ws.Name == "" {
		return errors.New("workspace name cannot be empty")
	}
	for i := range f.Workspaces {
		if f.Workspaces[i].Name == ws.Name {
			f.Workspaces[i] = ws
			return nil
		}
	}
	f.Workspaces = append(f.Workspaces, ws)
	return nil
}

// RemoveWorkspace drops a workspace by name and reports whether anything was
// removed.
func (f *File) RemoveWorkspace(name string) bool {
	for i, ws := range f.Workspaces {
		if ws.Name == name {
			f.Workspaces = append(f.Workspaces[:i], f.Workspaces[i+1:]...)
			return true
		}
	}
	return false
}
