package keeper

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/inventory"
	"github.com/keeperhq/invkeeper/internal/platform/cex"
	"github.com/keeperhq/invkeeper/internal/venue"
)

// BookFunc binds an order-book market contract at the given address.
type BookFunc func(addr common.Address) venue.EscrowReader

// CexFunc builds an exchange API client from resolved credentials.
type CexFunc func(cfg cex.ClientConfig) venue.BalanceSource

// AdapterFactory turns inventory members into venue adapters. Venue config
// values pass through inventory.ResolveEnv exactly once, here, so secrets
// referenced as $VAR never appear in the inventory document itself.
type AdapterFactory struct {
	chain           venue.Transferor
	book            BookFunc
	newCex          CexFunc
	maxReadAttempts int
	logger          *slog.Logger

	mu    sync.Mutex
	books map[common.Address]venue.EscrowReader
}

func NewAdapterFactory(chain venue.Transferor, book BookFunc, maxReadAttempts int, logger *slog.Logger) *AdapterFactory {
	f := &AdapterFactory{
		chain:           chain,
		book:            book,
		maxReadAttempts: maxReadAttempts,
		logger:          logger,
		books:           make(map[common.Address]venue.EscrowReader),
	}
	f.newCex = func(cfg cex.ClientConfig) venue.BalanceSource {
		return cex.NewClient(cfg, logger)
	}
	return f
}

// WithCexFunc overrides exchange client construction. Used by tests.
func (f *AdapterFactory) WithCexFunc(fn CexFunc) *AdapterFactory {
	f.newCex = fn
	return f
}

// Build constructs the adapter for one member.
func (f *AdapterFactory) Build(m inventory.Member) (domain.Account, error) {
	switch m.Type {
	case inventory.TypeLedgerAccount:
		addr, err := f.configAddress(m, "accountAddress")
		if err != nil {
			return nil, err
		}
		return venue.NewLedgerAccount(m.Name, addr, f.chain), nil

	case inventory.TypeOrderBookMaker:
		maker, err := f.configAddress(m, "accountAddress")
		if err != nil {
			return nil, err
		}
		market, err := f.configAddress(m, "marketAddress")
		if err != nil {
			return nil, err
		}
		return venue.NewOrderBookMaker(m.Name, maker, f.bookFor(market), f.chain, f.maxReadAttempts, f.logger), nil

	case inventory.TypeP2PMaker:
		addr, err := f.configAddress(m, "accountAddress")
		if err != nil {
			return nil, err
		}
		return venue.NewP2PMaker(m.Name, addr, f.chain, f.logger), nil

	case inventory.TypeCexAPI:
		server, err := f.configValue(m, "apiServer")
		if err != nil {
			return nil, err
		}
		key, err := f.configValue(m, "apiKey")
		if err != nil {
			return nil, err
		}
		secret, err := f.configValue(m, "secret")
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(0)
		if raw, ok := m.Config["timeout"]; ok {
			timeout, err = time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("member %s: timeout: %w", m.Name, err)
			}
		}
		maxRetries := 0 // client applies its default
		if raw, ok := m.Config["maxRetries"]; ok {
			maxRetries, err = strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("member %s: maxRetries: %w", m.Name, err)
			}
		}
		return venue.NewCexAccount(m.Name, f.newCex(cex.ClientConfig{
			BaseURL:    server,
			APIKey:     key,
			Secret:     secret,
			Timeout:    timeout,
			MaxRetries: maxRetries,
		})), nil

	default:
		return nil, fmt.Errorf("member %s: type %q: %w", m.Name, m.Type, domain.ErrUnknownMemberType)
	}
}

// bookFor returns the order-book binding for a market contract. Members
// quoting the same market share one binding.
func (f *AdapterFactory) bookFor(addr common.Address) venue.EscrowReader {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.books[addr]; ok {
		return b
	}
	b := f.book(addr)
	f.books[addr] = b
	return b
}

func (f *AdapterFactory) configValue(m inventory.Member, key string) (string, error) {
	raw, ok := m.Config[key]
	if !ok || raw == "" {
		return "", fmt.Errorf("member %s: missing config key %q", m.Name, key)
	}
	v, err := inventory.ResolveEnv(raw)
	if err != nil {
		return "", fmt.Errorf("member %s: config key %q: %w", m.Name, key, err)
	}
	return v, nil
}

func (f *AdapterFactory) configAddress(m inventory.Member, key string) (common.Address, error) {
	v, err := f.configValue(m, key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("member %s: config key %q: invalid address %q", m.Name, key, v)
	}
	return common.HexToAddress(v), nil
}
