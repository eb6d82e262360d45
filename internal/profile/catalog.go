package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Catalog indexes the growth profiles in one directory, keyed by file
// stem ("basil.json" -> "basil"). A filesystem watcher keeps the index
// current while the controller runs, so operators can drop profile
// files in without a restart.
type Catalog struct {
	dir     string
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu       sync.RWMutex
	profiles map[string]GrowthProfile
}

// OpenCatalog loads every *.json profile under dir and starts watching
// for changes. Files that fail to parse are skipped with a warning.
func OpenCatalog(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}

	c := &Catalog{
		dir:      dir,
		profiles: make(map[string]GrowthProfile),
		done:     make(chan struct{}),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profile directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		c.indexFile(filepath.Join(dir, entry.Name()))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start profile watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch profile directory: %w", err)
	}
	c.watcher = watcher
	go c.watch()

	log.Info().Str("dir", dir).Int("profiles", len(c.profiles)).Msg("profile catalog loaded")
	return c, nil
}

// Get returns the profile indexed under name.
func (c *Catalog) Get(name string) (GrowthProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[name]
	return p, ok
}

// Names lists the catalog keys sorted alphabetically.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Put indexes a profile directly, used when an upload bypasses the
// watched directory (e.g. object storage backends).
func (c *Catalog) Put(name string, p GrowthProfile) {
	c.mu.Lock()
	c.profiles[name] = p
	c.mu.Unlock()
}

// Close stops the watcher.
func (c *Catalog) Close() error {
	close(c.done)
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *Catalog) watch() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
				c.indexFile(event.Name)
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				name := stem(event.Name)
				c.mu.Lock()
				delete(c.profiles, name)
				c.mu.Unlock()
				log.Info().Str("profile", name).Msg("profile removed from catalog")
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("profile watcher error")
		}
	}
}

func (c *Catalog) indexFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("could not read profile file")
		return
	}
	p, err := Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("skipping unparseable profile file")
		return
	}

	name := stem(path)
	c.mu.Lock()
	c.profiles[name] = p
	c.mu.Unlock()
	log.Info().Str("profile", name).Msg("profile indexed")
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
