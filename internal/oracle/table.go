package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region table
// Table answers from a fixed map and falls back to Default for unknown planets.
type Table struct {
	Guesses map[predictor.PlanetID]predictor.Outcome
	Default predictor.Outcome
}

func (t Table) Guess(_ context.Context, planet predictor.PlanetID) (predictor.Outcome, error) {
	if o, ok := t.Guesses[planet]; ok {
		return o, nil
	}
	return t.Default, nil
}

// tableFile is the on-disk layout shared by every format. Planet ids are
// decimal strings so the full uint64 range survives TOML and YAML.
type tableFile struct {
	Default string            `json:"default" yaml:"default" toml:"default"`
	Guesses map[string]string `json:"guesses" yaml:"guesses" toml:"guesses"`
}

// LoadTable reads a Table from a .json, .yaml/.yml or .toml file:
//
//	{"default": "night", "guesses": {"42": "day"}}
//
// A missing default means night.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read oracle table %s: %w", path, err)
	}

	var f tableFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return Table{}, fmt.Errorf("oracle table %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Table{}, fmt.Errorf("parse oracle table %s: %w", path, err)
	}

	t, err := f.table()
	if err != nil {
		return Table{}, fmt.Errorf("oracle table %s: %w", path, err)
	}
	return t, nil
}

func (f tableFile) table() (Table, error) {
	t := Table{Guesses: make(map[predictor.PlanetID]predictor.Outcome, len(f.Guesses))}
	if f.Default != "" {
		def, err := predictor.ParseOutcome(f.Default)
		if err != nil {
			return Table{}, fmt.Errorf("default: %w", err)
		}
		t.Default = def
	}
	for k, v := range f.Guesses {
		id, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return Table{}, fmt.Errorf("planet id %q: %w", k, err)
		}
		o, err := predictor.ParseOutcome(v)
		if err != nil {
			return Table{}, fmt.Errorf("planet %s: %w", k, err)
		}
		t.Guesses[predictor.PlanetID(id)] = o
	}
	return t, nil
}

// #endregion table

// #region reloadable
// Reloadable is a Table backed by a file. Watch replaces the table whenever
// the file is written; a file that fails to parse keeps the previous table.
type Reloadable struct {
	path    string
	log     *slog.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	table Table
}

// NewReloadable loads path and prepares a watcher on its directory.
func NewReloadable(path string, log *slog.Logger) (*Reloadable, error) {
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating table watcher: %w", err)
	}
	// Watch the directory so replace-by-rename is seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching table dir: %w", err)
	}
	return &Reloadable{path: path, log: log, watcher: watcher, table: t}, nil
}

func (r *Reloadable) Guess(ctx context.Context, planet predictor.PlanetID) (predictor.Outcome, error) {
	return r.Table().Guess(ctx, planet)
}

// Table returns the current table.
func (r *Reloadable) Table() Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table
}

// Reload rereads the file.
func (r *Reloadable) Reload() error {
	t, err := LoadTable(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.table = t
	r.mu.Unlock()
	r.log.Info("oracle table reloaded", "path", r.path, "entries", len(t.Guesses))
	return nil
}

// Watch reloads on every write or create of the file. It blocks until ctx is
// done or the watcher fails.
func (r *Reloadable) Watch(ctx context.Context) error {
	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.log.Warn("oracle table reload failed, keeping previous", "path", r.path, "error", err)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("table watcher error: %w", err)
		}
	}
}

// Close stops the watcher.
func (r *Reloadable) Close() error {
	return r.watcher.Close()
}

// #endregion reloadable
