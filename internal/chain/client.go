// Package chain is the ledger collaborator: an ethclient wrapper that reads
// native and ERC20 balances, submits transfers signed with the base account
// key, and exposes the order-book market contract used by the order-book
// venue adapter.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/keeperhq/invkeeper/internal/wad"
)

// nativeTransferGas is the fixed gas cost of a plain value transfer.
const nativeTransferGas = 21000

// Config holds connection and transaction-submission parameters.
type Config struct {
	// RPCURL is the JSON-RPC endpoint, http(s):// or ws(s)://.
	RPCURL string

	// GasPriceWei fixes the gas price for submitted transactions. Zero means
	// use the node-suggested price.
	GasPriceWei int64

	// GasPriceMaxWei caps the gas price when the node-suggested price is
	// used. Zero means no cap.
	GasPriceMaxWei int64

	// TxTimeout bounds how long a submitted transaction is waited on before
	// the attempt is reported as failed.
	TxTimeout time.Duration
}

// Client wraps an ethclient connection together with the base account key
// that signs all keeper transactions.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address

	gasPrice    *big.Int
	gasPriceMax *big.Int
	txTimeout   time.Duration

	logger *slog.Logger
}

// New dials the RPC endpoint and verifies connectivity by fetching the chain
// ID. The given key signs every transaction the client submits.
func New(ctx context.Context, cfg Config, key *ecdsa.PrivateKey, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}

	c := &Client{
		eth:       eth,
		chainID:   chainID,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		txTimeout: cfg.TxTimeout,
		logger:    logger.With(slog.String("component", "chain")),
	}
	if cfg.GasPriceWei > 0 {
		c.gasPrice = big.NewInt(cfg.GasPriceWei)
	}
	if cfg.GasPriceMaxWei > 0 {
		c.gasPriceMax = big.NewInt(cfg.GasPriceMaxWei)
	}
	if c.txTimeout <= 0 {
		c.txTimeout = 3 * time.Minute
	}

	c.logger.Info("connected to ledger",
		slog.String("rpc", cfg.RPCURL),
		slog.String("chain_id", chainID.String()),
		slog.String("signer", c.from.Hex()),
	)

	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// From returns the address derived from the signing key.
func (c *Client) From() common.Address {
	return c.from
}

// NativeBalance reads the native-unit balance of addr at the latest block.
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (wad.Wad, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return wad.Zero, fmt.Errorf("chain: native balance of %s: %w", addr.Hex(), err)
	}
	return wad.FromRaw(bal), nil
}

// TokenBalance reads owner's ERC20 balance of the given token contract.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (wad.Wad, error) {
	out, err := c.call(ctx, erc20ABI, token, "balanceOf", owner)
	if err != nil {
		return wad.Zero, fmt.Errorf("chain: balanceOf(%s) on %s: %w", owner.Hex(), token.Hex(), err)
	}
	bal, err := uint256Result(out)
	if err != nil {
		return wad.Zero, fmt.Errorf("chain: balanceOf on %s: %w", token.Hex(), err)
	}
	return wad.FromRaw(bal), nil
}

// Allowance reads the ERC20 allowance granted by owner to spender.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (wad.Wad, error) {
	out, err := c.call(ctx, erc20ABI, token, "allowance", owner, spender)
	if err != nil {
		return wad.Zero, fmt.Errorf("chain: allowance(%s,%s) on %s: %w", owner.Hex(), spender.Hex(), token.Hex(), err)
	}
	a, err := uint256Result(out)
	if err != nil {
		return wad.Zero, fmt.Errorf("chain: allowance on %s: %w", token.Hex(), err)
	}
	return wad.FromRaw(a), nil
}

// Approve grants spender an allowance of amount over the signer's tokens.
// The bool result reports whether the transaction mined successfully.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (bool, error) {
	return c.transactERC20(ctx, token, "approve", spender, amount)
}

// TransferToken moves amount of token from the signer (base) to the given
// address.
func (c *Client) TransferToken(ctx context.Context, token, to common.Address, amount wad.Wad) (bool, error) {
	return c.transactERC20(ctx, token, "transfer", to, amount.BigInt())
}

// TransferTokenFrom pulls amount of token from one address to another using
// an allowance previously granted to the signer.
func (c *Client) TransferTokenFrom(ctx context.Context, token, from, to common.Address, amount wad.Wad) (bool, error) {
	return c.transactERC20(ctx, token, "transferFrom", from, to, amount.BigInt())
}

// TransferNative moves amount of the native unit from the signer to the
// given address.
func (c *Client) TransferNative(ctx context.Context, to common.Address, amount wad.Wad) (bool, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return false, fmt.Errorf("chain: pending nonce: %w", err)
	}
	gasPrice, err := c.effectiveGasPrice(ctx)
	if err != nil {
		return false, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount.BigInt(),
		Gas:      nativeTransferGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return false, fmt.Errorf("chain: sign native transfer: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return false, fmt.Errorf("chain: send native transfer: %w", err)
	}

	c.logger.Debug("submitted native transfer",
		slog.String("to", to.Hex()),
		slog.String("amount", amount.String()),
		slog.String("tx", signed.Hash().Hex()),
	)

	return c.waitSuccess(ctx, signed)
}

// transactERC20 packs, signs, submits, and waits on one ERC20 method call.
func (c *Client) transactERC20(ctx context.Context, token common.Address, method string, args ...interface{}) (bool, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return false, fmt.Errorf("chain: transactor: %w", err)
	}
	opts.Context = ctx
	if c.gasPrice != nil {
		opts.GasPrice = c.gasPrice
	}

	contract := bind.NewBoundContract(token, erc20ABI, c.eth, c.eth, c.eth)
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return false, fmt.Errorf("chain: %s on %s: %w", method, token.Hex(), err)
	}

	c.logger.Debug("submitted transaction",
		slog.String("method", method),
		slog.String("token", token.Hex()),
		slog.String("tx", tx.Hash().Hex()),
	)

	return c.waitSuccess(ctx, tx)
}

// waitSuccess blocks until the transaction mines or the timeout elapses, and
// reports whether the receipt shows success.
func (c *Client) waitSuccess(ctx context.Context, tx *types.Transaction) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return false, fmt.Errorf("chain: wait mined %s: %w", tx.Hash().Hex(), err)
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

func (c *Client) effectiveGasPrice(ctx context.Context) (*big.Int, error) {
	if c.gasPrice != nil {
		return c.gasPrice, nil
	}
	suggested, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	if c.gasPriceMax != nil && suggested.Cmp(c.gasPriceMax) > 0 {
		return c.gasPriceMax, nil
	}
	return suggested, nil
}

// call executes a read-only contract call and unpacks the result.
func (c *Client) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return contractABI.Unpack(method, out)
}

func uint256Result(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected result length %d", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", out[0])
	}
	return v, nil
}
