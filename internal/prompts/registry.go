package prompts

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lensview/insight/internal/model"
)

// Registry serves prompt definitions through a TTL cache so edits to the
// definitions file take effect without a restart. The clock is injectable
// for expiry tests.
type Registry struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	defs     map[model.SectionType]Definition
	loadedAt time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry reading from path (empty means embedded
// defaults only), caching parsed definitions for ttl.
func NewRegistry(path string, ttl time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		path: path,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the definition for a section, reloading the file when the
// cached copy has expired. A failed reload keeps serving the previous copy.
func (r *Registry) Get(section model.SectionType) (Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.defs == nil || (r.ttl > 0 && now.Sub(r.loadedAt) >= r.ttl) {
		defs, err := loadDefinitions(r.path)
		if err != nil {
			if r.defs == nil {
				return Definition{}, err
			}
		} else {
			r.defs = defs
		}
		r.loadedAt = now
	}

	def, ok := r.defs[section]
	if !ok {
		return Definition{}, eris.Errorf("prompts: unknown section %s", section)
	}
	return def, nil
}
