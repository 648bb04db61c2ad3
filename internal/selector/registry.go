package selector

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/kingrea/acta/internal/params"
)

// Factory constructs a selector from its scenario parameters. A fresh
// selector is built per run; selectors may keep state across ticks.
type Factory func(params.Map) (Selector, error)

// Registry maintains known selector factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}, aliases: map[string]string{}}
}

// Register installs a selector factory. Returns an error if the class already
// exists.
func (r *Registry) Register(class string, factory Factory) error {
	class = normalize(class)
	if class == "" {
		return fmt.Errorf("selector: class is required")
	}
	if factory == nil {
		return fmt.Errorf("selector: factory is required for %s", class)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[class]; exists {
		return fmt.Errorf("selector: %s already registered", class)
	}
	r.factories[class] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(class string, factory Factory) {
	if err := r.Register(class, factory); err != nil {
		panic(err)
	}
}

// Alias makes name resolve to class.
func (r *Registry) Alias(name, class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[normalize(name)] = normalize(class)
}

// Resolve constructs a selector by class name.
func (r *Registry) Resolve(class string, p params.Map) (Selector, error) {
	key := normalize(class)
	r.mu.RLock()
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("selector: unknown class %q%s (known: %s)", class, suggest(class, r.Classes()), strings.Join(r.Classes(), ", "))
	}
	sel, err := factory(p)
	if err != nil {
		return nil, fmt.Errorf("selector: %s: %w", key, err)
	}
	return sel, nil
}

// Classes returns a sorted list of registered class names.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalize(class string) string {
	return strings.ToLower(strings.TrimSpace(class))
}

// suggest returns a " (did you mean ...)" hint for near misses.
func suggest(class string, known []string) string {
	matches := fuzzy.Find(normalize(class), known)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
}
