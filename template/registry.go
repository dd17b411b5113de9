package template

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Registry resolves template names to parsed templates, caching parses.
// Template files live anywhere under the configured directory and are
// discovered by glob; the file's declared name is its registry name.
// The cache is read-mostly: concurrent loads of the same uncached name may
// race to populate it, which is harmless since parses are idempotent.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Template
}

// templateGlob matches template files at any depth under the registry dir.
const templateGlob = "**/*.{yaml,yml}"

// NewRegistry creates a template registry rooted at dir. An empty dir means
// only the built-in default template is available.
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*Template),
	}
}

// Get returns the template with the given name, loading and caching it on
// first use. The built-in default is served without touching the filesystem.
func (r *Registry) Get(name string) (*Template, error) {
	if name == "" || name == DefaultTemplateName {
		return DefaultTemplate(), nil
	}

	r.mu.RLock()
	cached, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	t, err := r.load(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = t
	r.mu.Unlock()
	return t, nil
}

// GetOrDefault resolves name, falling back to the built-in default template
// when the named one cannot be loaded. Loading problems are logged, never
// surfaced: a broken templates directory must not fail an interview turn.
func (r *Registry) GetOrDefault(name string) *Template {
	t, err := r.Get(name)
	if err != nil {
		r.logger.Warn("template load failed, using default",
			"template", name,
			"error", err)
		return DefaultTemplate()
	}
	return t
}

// Names lists the template names available on disk, plus the built-in
// default.
func (r *Registry) Names() ([]string, error) {
	names := []string{DefaultTemplateName}
	if r.dir == "" {
		return names, nil
	}
	paths, err := r.discover()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		t, err := Load(path)
		if err != nil {
			r.logger.Warn("skipping unparseable template file", "path", path, "error", err)
			continue
		}
		if t.Name != DefaultTemplateName {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// Clear drops all cached templates.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.cache = make(map[string]*Template)
	r.mu.Unlock()
}

// load scans the templates directory for a file declaring the given name.
func (r *Registry) load(name string) (*Template, error) {
	if r.dir == "" {
		return nil, fmt.Errorf("template %q: no templates directory configured", name)
	}
	paths, err := r.discover()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		t, err := Load(path)
		if err != nil {
			r.logger.Warn("skipping unparseable template file", "path", path, "error", err)
			continue
		}
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("template %q not found under %s", name, r.dir)
}

// discover globs template files under the registry directory.
func (r *Registry) discover() ([]string, error) {
	pattern := filepath.Join(r.dir, templateGlob)
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("template discovery failed: %w", err)
	}
	return paths, nil
}

// Watch invalidates the cache whenever anything under the templates
// directory changes. It returns once the watcher is installed; invalidation
// runs until ctx is done. Whole-cache invalidation is deliberate: reparses
// are cheap and per-file tracking is not worth the bookkeeping.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}

	// fsnotify does not recurse; watch the root and each existing subdir.
	err = filepath.WalkDir(r.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch templates directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				r.logger.Debug("template change detected, clearing cache",
					"path", event.Name,
					"op", event.Op.String())
				r.Clear()
				// Newly created subdirectories need their own watch.
				if event.Op.Has(fsnotify.Create) {
					if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
						_ = watcher.Add(event.Name)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("template watcher error", "error", err)
			}
		}
	}()

	return nil
}
