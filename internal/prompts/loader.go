// Package prompts loads the persona preset library: markdown files with
// YAML frontmatter that seed bot system prompts.
package prompts

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preset is one persona prompt file.
type Preset struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`

	Body string `yaml:"-"`
	Path string `yaml:"-"`
}

// Loader scans directories for preset files.
type Loader struct {
	directories []string

	mu      sync.RWMutex
	presets map[string]*Preset
}

// NewLoader creates a preset loader for the given directories. A ~/
// prefix expands to the user home.
func NewLoader(dirs ...string) *Loader {
	expanded := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if strings.HasPrefix(dir, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				dir = filepath.Join(home, dir[2:])
			}
		}
		expanded = append(expanded, dir)
	}
	return &Loader{
		directories: expanded,
		presets:     make(map[string]*Preset),
	}
}

// Load scans the directories. Missing directories are skipped.
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, dir := range l.directories {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".md") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			preset, err := ParseFile(path)
			if err != nil {
				// A broken preset file should not take down loading.
				continue
			}
			l.presets[preset.Name] = preset
		}
	}
	return nil
}

// ParseFile reads one preset file. Frontmatter is optional; without it
// the file name becomes the preset name.
func ParseFile(path string) (*Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	preset := &Preset{Path: path}
	body := raw
	if bytes.HasPrefix(raw, []byte("---\n")) {
		rest := raw[4:]
		if end := bytes.Index(rest, []byte("\n---")); end >= 0 {
			if err := yaml.Unmarshal(rest[:end], preset); err != nil {
				return nil, fmt.Errorf("parse frontmatter %s: %w", path, err)
			}
			body = rest[end+4:]
		}
	}
	preset.Body = strings.TrimSpace(string(body))
	if preset.Name == "" {
		preset.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if preset.Body == "" {
		return nil, fmt.Errorf("preset %s has no body", path)
	}
	return preset, nil
}

// Get retrieves a preset by name.
func (l *Loader) Get(name string) (*Preset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	preset, ok := l.presets[name]
	if !ok {
		return nil, fmt.Errorf("preset not found: %s", name)
	}
	return preset, nil
}

// List returns all presets sorted by name.
func (l *Loader) List() []*Preset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Preset, 0, len(l.presets))
	for _, p := range l.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of loaded presets.
func (l *Loader) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.presets)
}

// Reload clears and rescans.
func (l *Loader) Reload() error {
	l.mu.Lock()
	l.presets = make(map[string]*Preset)
	l.mu.Unlock()
	return l.Load()
}
