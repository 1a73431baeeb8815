package keeper

import (
	"sync"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/inventory"
)

// adapterCache keeps constructed venue adapters across cycles so each member
// gets one long-lived adapter (and one exchange HTTP client) instead of a
// fresh one per tick. Invalidate drops everything after a config reload,
// since member definitions may have changed under the same names.
type adapterCache struct {
	factory *AdapterFactory

	mu       sync.Mutex
	adapters map[string]domain.Account
}

func newAdapterCache(factory *AdapterFactory) *adapterCache {
	return &adapterCache{
		factory:  factory,
		adapters: make(map[string]domain.Account),
	}
}

func (c *adapterCache) Get(m inventory.Member) (domain.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.adapters[m.Name]; ok {
		return a, nil
	}
	a, err := c.factory.Build(m)
	if err != nil {
		return nil, err
	}
	c.adapters[m.Name] = a
	return a, nil
}

func (c *adapterCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters = make(map[string]domain.Account)
}
