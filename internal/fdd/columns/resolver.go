package columns

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

// ErrNoLabel is returned by a Resolver that has no point bound to a role.
var ErrNoLabel = errors.New("no point label for role")

// Resolver looks up the point label that carries a role for one site. Labels
// may come from a semantic model or a static table; rules never see the
// resolver, only the ColumnMap built from it.
type Resolver interface {
	Lookup(ctx context.Context, role string) (string, error)
}

// StaticResolver resolves roles from a fixed table.
type StaticResolver map[string]string

func (r StaticResolver) Lookup(ctx context.Context, role string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	label, ok := r[role]
	if !ok || label == "" {
		return "", ErrNoLabel
	}
	return label, nil
}

// CachedResolver memoises another resolver per site.
type CachedResolver struct {
	site  string
	next  Resolver
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedResolver(site string, next Resolver, cache *ristretto.Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{site: site, next: next, cache: cache, ttl: ttl}
}

func (r *CachedResolver) key(role string) string { return r.site + "/" + role }

func (r *CachedResolver) Lookup(ctx context.Context, role string) (string, error) {
	if v, ok := r.cache.Get(r.key(role)); ok {
		if label, isString := v.(string); isString {
			return label, nil
		}
	}
	label, err := r.next.Lookup(ctx, role)
	if err != nil {
		return "", err
	}
	if r.ttl > 0 {
		r.cache.SetWithTTL(r.key(role), label, 1, r.ttl)
	} else {
		r.cache.Set(r.key(role), label, 1)
	}
	return label, nil
}

// FromResolver asks r for every role and returns the bindings it found.
// Roles without a label are left out; the rules that need them are skipped
// downstream. Any other lookup error aborts.
func FromResolver(ctx context.Context, r Resolver, roles []string) (ColumnMap, error) {
	m := make(ColumnMap, len(roles))
	for _, role := range roles {
		label, err := r.Lookup(ctx, role)
		switch {
		case errors.Is(err, ErrNoLabel):
			continue
		case err != nil:
			return nil, errors.Wrapf(err, "resolve role %s", role)
		}
		m[role] = label
	}
	return m, nil
}
