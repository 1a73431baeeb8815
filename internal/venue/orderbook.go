package venue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// OrderBookMaker is a market-making account on an on-chain order book. Its
// token holdings are the sum of the free balance at the maker address and
// the amount escrowed in its open sell orders, so reads go through
// ConsistentRead to avoid tearing across an order placement.
type OrderBookMaker struct {
	name        string
	maker       common.Address
	book        EscrowReader
	chain       Transferor
	maxAttempts int
	logger      *slog.Logger
}

var _ domain.Account = (*OrderBookMaker)(nil)

func NewOrderBookMaker(name string, maker common.Address, book EscrowReader, chain Transferor, maxReadAttempts int, logger *slog.Logger) *OrderBookMaker {
	return &OrderBookMaker{
		name:        name,
		maker:       maker,
		book:        book,
		chain:       chain,
		maxAttempts: maxReadAttempts,
		logger:      logger.With(slog.String("component", "orderbook_maker"), slog.String("member", name)),
	}
}

func (a *OrderBookMaker) Balance(ctx context.Context, token domain.Token) (wad.Wad, error) {
	if token.IsNative() {
		return a.chain.NativeBalance(ctx, a.maker)
	}
	return ConsistentRead(ctx, a.maxAttempts, func(ctx context.Context) (wad.Wad, error) {
		escrow, err := a.book.SellEscrow(ctx, a.maker, token.Address)
		if err != nil {
			return wad.Zero, fmt.Errorf("read sell escrow: %w", err)
		}
		free, err := a.chain.TokenBalance(ctx, token.Address, a.maker)
		if err != nil {
			return wad.Zero, fmt.Errorf("read free balance: %w", err)
		}
		return escrow.Add(free), nil
	})
}

func (a *OrderBookMaker) SupportsDeposit() bool  { return true }
func (a *OrderBookMaker) SupportsWithdraw() bool { return true }

func (a *OrderBookMaker) Deposit(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	amount, err := clampToBase(ctx, a.chain, base, token, amount)
	if err != nil {
		return false, err
	}
	a.logger.Info("depositing to maker", slog.String("token", token.Name), slog.String("amount", amount.String()))
	if token.IsNative() {
		return a.chain.TransferNative(ctx, a.maker, amount)
	}
	return a.chain.TransferToken(ctx, token.Address, a.maker, amount)
}

// Withdraw pulls tokens from the maker back to the base account via an
// allowance the maker granted at setup time. The native unit cannot be
// pulled, only pushed.
func (a *OrderBookMaker) Withdraw(ctx context.Context, base domain.BaseAccount, token domain.Token, amount wad.Wad) (bool, error) {
	if token.IsNative() {
		return false, fmt.Errorf("orderbook maker %s: native withdraw: %w", a.name, domain.ErrUnsupportedOperation)
	}
	a.logger.Info("withdrawing from maker", slog.String("token", token.Name), slog.String("amount", amount.String()))
	return a.chain.TransferTokenFrom(ctx, token.Address, a.maker, base.Address, amount)
}
