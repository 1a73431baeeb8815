package chain

import (
	"fmt"
	"math/big"

	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/wad"
)

// orderBookABIJSON covers the two views the keeper needs from the on-chain
// matching market: the ids of a maker's open orders and the contents of one
// order.
const orderBookABIJSON = `[
  {"inputs":[{"internalType":"address","name":"maker","type":"address"}],
   "name":"getOrdersByMaker",
   "outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"id","type":"uint256"}],
   "name":"getOrder",
   "outputs":[
     {"internalType":"address","name":"payToken","type":"address"},
     {"internalType":"uint256","name":"payAmount","type":"uint256"},
     {"internalType":"address","name":"buyToken","type":"address"},
     {"internalType":"uint256","name":"buyAmount","type":"uint256"},
     {"internalType":"address","name":"owner","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

var orderBookABI = mustABI(orderBookABIJSON)

// OrderBook is a read-only binding to one matching-market contract. A single
// binding is shared by every member trading on that market.
type OrderBook struct {
	client *Client
	addr   common.Address
}

// OrderBook returns a binding to the market contract at addr.
func (c *Client) OrderBook(addr common.Address) *OrderBook {
	return &OrderBook{client: c, addr: addr}
}

// Address returns the market contract address.
func (ob *OrderBook) Address() common.Address {
	return ob.addr
}

// SellEscrow sums the payToken amounts escrowed in maker's open sell orders
// for the given token. Orders paying out other tokens are ignored.
func (ob *OrderBook) SellEscrow(ctx context.Context, maker, payToken common.Address) (wad.Wad, error) {
	out, err := ob.client.call(ctx, orderBookABI, ob.addr, "getOrdersByMaker", maker)
	if err != nil {
		return wad.Zero, fmt.Errorf("chain: getOrdersByMaker(%s) on %s: %w", maker.Hex(), ob.addr.Hex(), err)
	}
	if len(out) != 1 {
		return wad.Zero, fmt.Errorf("chain: getOrdersByMaker on %s: unexpected result length %d", ob.addr.Hex(), len(out))
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return wad.Zero, fmt.Errorf("chain: getOrdersByMaker on %s: unexpected result type %T", ob.addr.Hex(), out[0])
	}

	total := wad.Zero
	for _, id := range ids {
		order, err := ob.order(ctx, id)
		if err != nil {
			return wad.Zero, err
		}
		if order.payToken == payToken {
			total = total.Add(wad.FromRaw(order.payAmount))
		}
	}
	return total, nil
}

type openOrder struct {
	payToken  common.Address
	payAmount *big.Int
}

func (ob *OrderBook) order(ctx context.Context, id *big.Int) (openOrder, error) {
	data, err := orderBookABI.Pack("getOrder", id)
	if err != nil {
		return openOrder{}, fmt.Errorf("chain: pack getOrder: %w", err)
	}
	raw, err := ob.client.eth.CallContract(ctx, ethereum.CallMsg{To: &ob.addr, Data: data}, nil)
	if err != nil {
		return openOrder{}, fmt.Errorf("chain: getOrder(%s) on %s: %w", id, ob.addr.Hex(), err)
	}
	vals, err := orderBookABI.Unpack("getOrder", raw)
	if err != nil {
		return openOrder{}, fmt.Errorf("chain: unpack getOrder: %w", err)
	}
	if len(vals) != 5 {
		return openOrder{}, fmt.Errorf("chain: getOrder on %s: unexpected result length %d", ob.addr.Hex(), len(vals))
	}

	payToken, ok := vals[0].(common.Address)
	if !ok {
		return openOrder{}, fmt.Errorf("chain: getOrder payToken type %T", vals[0])
	}
	payAmount, ok := vals[1].(*big.Int)
	if !ok {
		return openOrder{}, fmt.Errorf("chain: getOrder payAmount type %T", vals[1])
	}

	return openOrder{payToken: payToken, payAmount: payAmount}, nil
}
