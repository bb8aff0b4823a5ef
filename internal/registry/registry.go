// Package registry maps collection slugs to contract addresses. Definitions
// are YAML files in a directory, so adding a community is a file drop, not a
// rebuild.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"tokenchat/internal/domain"
)

// Collection is one registered community.
type Collection struct {
	Slug            string `yaml:"slug"`
	ContractAddress string `yaml:"contract"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description,omitempty"`
}

// Registry holds the loaded collections, indexed by slug and by normalized
// contract address.
type Registry struct {
	mu         sync.RWMutex
	bySlug     map[string]Collection
	byContract map[string]Collection
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		bySlug:     make(map[string]Collection),
		byContract: make(map[string]Collection),
	}
}

// LoadFromDirectory loads collection definitions from YAML files in a
// directory. Files must have .yaml or .yml extension. A missing directory is
// not an error; malformed files are logged and skipped.
func (r *Registry) LoadFromDirectory(dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("collections directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read collections dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read collection file", "path", path, "err", err)
			continue
		}

		var col Collection
		if err := yaml.Unmarshal(data, &col); err != nil {
			logger.Warn("cannot parse collection file", "path", path, "err", err)
			continue
		}

		if col.Slug == "" {
			col.Slug = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if col.ContractAddress == "" {
			logger.Warn("collection has no contract address, skipping", "path", path)
			continue
		}

		r.Add(col)
		logger.Info("loaded collection", "slug", col.Slug, "contract", col.ContractAddress)
	}
	return nil
}

// Add registers a collection, replacing any previous definition for its slug
// or contract.
func (r *Registry) Add(col Collection) {
	col.Slug = strings.ToLower(strings.TrimSpace(col.Slug))
	col.ContractAddress = domain.NormalizeAddress(col.ContractAddress)
	r.mu.Lock()
	r.bySlug[col.Slug] = col
	r.byContract[col.ContractAddress] = col
	r.mu.Unlock()
}

// BySlug looks up a collection by slug, case-insensitively.
func (r *Registry) BySlug(slug string) (Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	col, ok := r.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	return col, ok
}

// ByContract looks up a collection by contract address.
func (r *Registry) ByContract(address string) (Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	col, ok := r.byContract[domain.NormalizeAddress(address)]
	return col, ok
}

// ResolveContract returns the contract address for a reference that is
// either a slug or already an address.
func (r *Registry) ResolveContract(ref string) (string, bool) {
	if strings.HasPrefix(strings.ToLower(ref), "0x") {
		return domain.NormalizeAddress(ref), true
	}
	col, ok := r.BySlug(ref)
	if !ok {
		return "", false
	}
	return col.ContractAddress, true
}

// All returns every registered collection.
func (r *Registry) All() []Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Collection, 0, len(r.bySlug))
	for _, col := range r.bySlug {
		out = append(out, col)
	}
	return out
}
