package catalog

import (
	"errors"
	"fmt"

	"vpnrotator/internal/domain"
)

var (
	ErrProxyNotFound   = errors.New("proxy not found")
	ErrCatalogTooSmall = errors.New("catalog needs at least one proxy")
	ErrDuplicateID     = errors.New("duplicate proxy id")
)

// Catalog is the read-only set of proxies available for selection. It is safe
// for concurrent readers because nothing mutates it after New returns.
type Catalog struct {
	proxies []domain.ProxyDescriptor
	index   map[string]int
}

func New(proxies []domain.ProxyDescriptor) (*Catalog, error) {
	if len(proxies) == 0 {
		return nil, ErrCatalogTooSmall
	}

	index := make(map[string]int, len(proxies))
	for i, proxy := range proxies {
		if _, exists := index[proxy.ID]; exists {
			return nil, fmt.Errorf("catalog: %w: %s", ErrDuplicateID, proxy.ID)
		}
		index[proxy.ID] = i
	}

	return &Catalog{
		proxies: append([]domain.ProxyDescriptor(nil), proxies...),
		index:   index,
	}, nil
}

func (c *Catalog) Len() int {
	return len(c.proxies)
}

// All returns a copy of every descriptor in generation order.
func (c *Catalog) All() []domain.ProxyDescriptor {
	return append([]domain.ProxyDescriptor(nil), c.proxies...)
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

func (c *Catalog) Get(id string) (domain.ProxyDescriptor, error) {
	i, ok := c.index[id]
	if !ok {
		return domain.ProxyDescriptor{}, fmt.Errorf("catalog: %w: %q", ErrProxyNotFound, id)
	}
	return c.proxies[i], nil
}

// Pick draws uniformly among the descriptors whose id differs from exclude.
// An empty exclude draws from the whole catalog. When exclude is the only
// entry it is returned, since there is nothing else to rotate to.
func (c *Catalog) Pick(intn func(int) int, exclude string) domain.ProxyDescriptor {
	excludedAt, excluded := c.index[exclude]
	if !excluded || len(c.proxies) == 1 {
		return c.proxies[intn(len(c.proxies))]
	}

	i := intn(len(c.proxies) - 1)
	if i >= excludedAt {
		i++
	}
	return c.proxies[i]
}
