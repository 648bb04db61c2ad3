package failure

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/kingrea/acta/internal/params"
)

// Factory constructs a model from its scenario parameters. BaseDir is the
// directory of the scenario file, used to resolve relative paths.
type Factory func(p params.Map, baseDir string) (Model, error)

// Registry maintains known failure model factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry returns a registry holding the built-in models.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("weibull", func(p params.Map, _ string) (Model, error) {
		var w Weibull
		if err := params.Decode(p, &w); err != nil {
			return nil, err
		}
		if err := w.Validate(); err != nil {
			return nil, err
		}
		return w, nil
	})
	r.MustRegister("constant", func(p params.Map, _ string) (Model, error) {
		var c Constant
		if err := params.Decode(p, &c); err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	})
	r.MustRegister("none", func(params.Map, string) (Model, error) {
		return None{}, nil
	})
	return r
}

// Register installs a factory. Returns an error if the class already exists.
func (r *Registry) Register(class string, factory Factory) error {
	class = normalize(class)
	if class == "" {
		return fmt.Errorf("failure: class is required")
	}
	if factory == nil {
		return fmt.Errorf("failure: factory is required for %s", class)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[class]; exists {
		return fmt.Errorf("failure: %s already registered", class)
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

// Resolve constructs a model by class name.
func (r *Registry) Resolve(class string, p params.Map, baseDir string) (Model, error) {
	r.mu.RLock()
	factory, ok := r.factories[normalize(class)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("failure: unknown class %q%s (known: %s)", class, suggest(class, r.Classes()), strings.Join(r.Classes(), ", "))
	}
	return factory(p, baseDir)
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

// Older scenario files name models by their class, e.g. WeibullFailureModel.
var aliases = map[string]string{
	"weibullfailuremodel": "weibull",
	"simplefailuremodel":  "constant",
}

func normalize(class string) string {
	c := strings.ToLower(strings.TrimSpace(class))
	if alias, ok := aliases[c]; ok {
		return alias
	}
	return c
}

// suggest returns a " (did you mean ...)" hint for near misses.
func suggest(class string, known []string) string {
	matches := fuzzy.Find(normalize(class), known)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
}
