package oauth

import (
	"sort"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/application/auth"
	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// Registry holds the configured providers by route name. It performs no
// auth logic itself.
type Registry struct {
	providers map[string]auth.OAuthProvider
}

var _ auth.ProviderRegistry = (*Registry)(nil)

// NewRegistry registers providers by Name(); nil entries are skipped.
func NewRegistry(list ...auth.OAuthProvider) *Registry {
	m := make(map[string]auth.OAuthProvider, len(list))
	for _, p := range list {
		if p == nil {
			continue
		}
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider or an unsupported_provider validation error.
func (r *Registry) Get(name string) (auth.OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.ErrUnsupportedProvider(name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
