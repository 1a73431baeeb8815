package venue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/platform/cex"
	"github.com/keeperhq/invkeeper/internal/wad"
)

var (
	baseAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	makerAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	daiAddr   = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
)

var (
	ethToken = domain.Token{Name: "ETH", Address: domain.NativeToken}
	daiToken = domain.Token{Name: "DAI", Address: daiAddr}
)

func testBase() domain.BaseAccount {
	return domain.BaseAccount{
		Name:             "base",
		Address:          baseAddr,
		MinNativeBalance: wad.MustParse("20"),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type transferCall struct {
	kind   string
	token  common.Address
	from   common.Address
	to     common.Address
	amount wad.Wad
}

// fakeChain is a scripted Transferor. Token balances key on token then
// owner; native balances key on owner.
type fakeChain struct {
	native    map[common.Address]wad.Wad
	tokens    map[common.Address]map[common.Address]wad.Wad
	transfers []transferCall
	failNext  error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		native: make(map[common.Address]wad.Wad),
		tokens: make(map[common.Address]map[common.Address]wad.Wad),
	}
}

func (f *fakeChain) setToken(token, owner common.Address, amount wad.Wad) {
	m, ok := f.tokens[token]
	if !ok {
		m = make(map[common.Address]wad.Wad)
		f.tokens[token] = m
	}
	m[owner] = amount
}

func (f *fakeChain) NativeBalance(ctx context.Context, addr common.Address) (wad.Wad, error) {
	return f.native[addr], nil
}

func (f *fakeChain) TokenBalance(ctx context.Context, token, owner common.Address) (wad.Wad, error) {
	return f.tokens[token][owner], nil
}

func (f *fakeChain) TransferNative(ctx context.Context, to common.Address, amount wad.Wad) (bool, error) {
	if f.failNext != nil {
		return false, f.failNext
	}
	f.transfers = append(f.transfers, transferCall{kind: "native", to: to, amount: amount})
	return true, nil
}

func (f *fakeChain) TransferToken(ctx context.Context, token, to common.Address, amount wad.Wad) (bool, error) {
	if f.failNext != nil {
		return false, f.failNext
	}
	f.transfers = append(f.transfers, transferCall{kind: "token", token: token, to: to, amount: amount})
	return true, nil
}

func (f *fakeChain) TransferTokenFrom(ctx context.Context, token, from, to common.Address, amount wad.Wad) (bool, error) {
	if f.failNext != nil {
		return false, f.failNext
	}
	f.transfers = append(f.transfers, transferCall{kind: "tokenFrom", token: token, from: from, to: to, amount: amount})
	return true, nil
}

// fakeBook returns scripted escrow values in sequence, repeating the last
// one once the script runs out.
type fakeBook struct {
	escrows []wad.Wad
	calls   int
}

func (f *fakeBook) SellEscrow(ctx context.Context, maker, payToken common.Address) (wad.Wad, error) {
	i := f.calls
	f.calls++
	if i >= len(f.escrows) {
		i = len(f.escrows) - 1
	}
	return f.escrows[i], nil
}

func TestConsistentReadStableValue(t *testing.T) {
	reads := 0
	got, err := ConsistentRead(context.Background(), 5, func(ctx context.Context) (wad.Wad, error) {
		reads++
		return wad.MustParse("42"), nil
	})
	if err != nil {
		t.Fatalf("ConsistentRead: %v", err)
	}
	if want := wad.MustParse("42"); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
	if reads != 2 {
		t.Fatalf("got %d reads, want 2", reads)
	}
}

func TestConsistentReadSettlesAfterChange(t *testing.T) {
	values := []string{"10", "11", "11"}
	reads := 0
	got, err := ConsistentRead(context.Background(), 5, func(ctx context.Context) (wad.Wad, error) {
		v := values[reads]
		reads++
		return wad.MustParse(v), nil
	})
	if err != nil {
		t.Fatalf("ConsistentRead: %v", err)
	}
	if want := wad.MustParse("11"); !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
	if reads != 3 {
		t.Fatalf("got %d reads, want 3", reads)
	}
}

func TestConsistentReadExhausted(t *testing.T) {
	reads := 0
	_, err := ConsistentRead(context.Background(), 4, func(ctx context.Context) (wad.Wad, error) {
		reads++
		return wad.FromInt(int64(reads)), nil
	})
	if !errors.Is(err, domain.ErrInconsistentRead) {
		t.Fatalf("got %v, want ErrInconsistentRead", err)
	}
	if reads != 4 {
		t.Fatalf("got %d reads, want 4", reads)
	}
}

func TestConsistentReadPropagatesReadError(t *testing.T) {
	boom := errors.New("rpc down")
	_, err := ConsistentRead(context.Background(), 5, func(ctx context.Context) (wad.Wad, error) {
		return wad.Zero, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want read error", err)
	}
}

func TestLedgerAccountBalances(t *testing.T) {
	chain := newFakeChain()
	chain.native[makerAddr] = wad.MustParse("3")
	chain.setToken(daiAddr, makerAddr, wad.MustParse("150"))

	acct := NewLedgerAccount("treasury", makerAddr, chain)

	eth, err := acct.Balance(context.Background(), ethToken)
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if want := wad.MustParse("3"); !eth.Equal(want) {
		t.Fatalf("native balance = %s, want %s", eth, want)
	}

	dai, err := acct.Balance(context.Background(), daiToken)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if want := wad.MustParse("150"); !dai.Equal(want) {
		t.Fatalf("token balance = %s, want %s", dai, want)
	}
}

func TestLedgerAccountRejectsTransfers(t *testing.T) {
	acct := NewLedgerAccount("treasury", makerAddr, newFakeChain())
	if acct.SupportsDeposit() || acct.SupportsWithdraw() {
		t.Fatal("ledger account must not support transfers")
	}
	if _, err := acct.Deposit(context.Background(), testBase(), daiToken, wad.FromInt(1)); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("deposit: got %v, want ErrUnsupportedOperation", err)
	}
	if _, err := acct.Withdraw(context.Background(), testBase(), daiToken, wad.FromInt(1)); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("withdraw: got %v, want ErrUnsupportedOperation", err)
	}
}

func TestOrderBookMakerBalanceSumsEscrowAndFree(t *testing.T) {
	chain := newFakeChain()
	chain.setToken(daiAddr, makerAddr, wad.MustParse("30"))
	book := &fakeBook{escrows: []wad.Wad{wad.MustParse("20")}}

	acct := NewOrderBookMaker("maker1", makerAddr, book, chain, 5, testLogger())
	got, err := acct.Balance(context.Background(), daiToken)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if want := wad.MustParse("50"); !got.Equal(want) {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

func TestOrderBookMakerBalanceSettlesAfterOrderPlacement(t *testing.T) {
	chain := newFakeChain()
	chain.setToken(daiAddr, makerAddr, wad.MustParse("30"))
	// An order lands between the first and second composite read.
	book := &fakeBook{escrows: []wad.Wad{
		wad.MustParse("20"),
		wad.MustParse("25"),
		wad.MustParse("25"),
	}}

	acct := NewOrderBookMaker("maker1", makerAddr, book, chain, 5, testLogger())
	got, err := acct.Balance(context.Background(), daiToken)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if want := wad.MustParse("55"); !got.Equal(want) {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

func TestOrderBookMakerDepositClampsToBaseSupply(t *testing.T) {
	chain := newFakeChain()
	chain.native[baseAddr] = wad.MustParse("100")

	acct := NewOrderBookMaker("maker1", makerAddr, &fakeBook{escrows: []wad.Wad{wad.Zero}}, chain, 5, testLogger())

	// Base holds 100 with a floor of 20, so a request for 90 transfers 80.
	ok, err := acct.Deposit(context.Background(), testBase(), ethToken, wad.MustParse("90"))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !ok {
		t.Fatal("deposit reported failure")
	}
	if len(chain.transfers) != 1 {
		t.Fatalf("got %d transfers, want 1", len(chain.transfers))
	}
	call := chain.transfers[0]
	if call.kind != "native" || call.to != makerAddr {
		t.Fatalf("unexpected transfer %+v", call)
	}
	if want := wad.MustParse("80"); !call.amount.Equal(want) {
		t.Fatalf("transfer amount = %s, want %s", call.amount, want)
	}

	// A request inside the available supply goes through unclamped.
	if _, err := acct.Deposit(context.Background(), testBase(), ethToken, wad.MustParse("50")); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if want := wad.MustParse("50"); !chain.transfers[1].amount.Equal(want) {
		t.Fatalf("transfer amount = %s, want %s", chain.transfers[1].amount, want)
	}
}

func TestOrderBookMakerDepositTokenClampsToBaseBalance(t *testing.T) {
	chain := newFakeChain()
	chain.setToken(daiAddr, baseAddr, wad.MustParse("40"))

	acct := NewOrderBookMaker("maker1", makerAddr, &fakeBook{escrows: []wad.Wad{wad.Zero}}, chain, 5, testLogger())
	ok, err := acct.Deposit(context.Background(), testBase(), daiToken, wad.MustParse("70"))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !ok {
		t.Fatal("deposit reported failure")
	}
	call := chain.transfers[0]
	if call.kind != "token" || call.token != daiAddr || call.to != makerAddr {
		t.Fatalf("unexpected transfer %+v", call)
	}
	if want := wad.MustParse("40"); !call.amount.Equal(want) {
		t.Fatalf("transfer amount = %s, want %s", call.amount, want)
	}
}

func TestOrderBookMakerDepositInsufficientBase(t *testing.T) {
	chain := newFakeChain()
	chain.native[baseAddr] = wad.MustParse("15") // below the 20 floor

	acct := NewOrderBookMaker("maker1", makerAddr, &fakeBook{escrows: []wad.Wad{wad.Zero}}, chain, 5, testLogger())
	_, err := acct.Deposit(context.Background(), testBase(), ethToken, wad.MustParse("10"))
	if !errors.Is(err, domain.ErrInsufficientBaseBalance) {
		t.Fatalf("got %v, want ErrInsufficientBaseBalance", err)
	}
	if len(chain.transfers) != 0 {
		t.Fatalf("got %d transfers, want none", len(chain.transfers))
	}
}

func TestOrderBookMakerWithdrawPullsToBase(t *testing.T) {
	chain := newFakeChain()
	acct := NewOrderBookMaker("maker1", makerAddr, &fakeBook{escrows: []wad.Wad{wad.Zero}}, chain, 5, testLogger())

	ok, err := acct.Withdraw(context.Background(), testBase(), daiToken, wad.MustParse("12"))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !ok {
		t.Fatal("withdraw reported failure")
	}
	call := chain.transfers[0]
	if call.kind != "tokenFrom" || call.from != makerAddr || call.to != baseAddr {
		t.Fatalf("unexpected transfer %+v", call)
	}
	if want := wad.MustParse("12"); !call.amount.Equal(want) {
		t.Fatalf("transfer amount = %s, want %s", call.amount, want)
	}
}

func TestOrderBookMakerNativeWithdrawUnsupported(t *testing.T) {
	acct := NewOrderBookMaker("maker1", makerAddr, &fakeBook{escrows: []wad.Wad{wad.Zero}}, newFakeChain(), 5, testLogger())
	_, err := acct.Withdraw(context.Background(), testBase(), ethToken, wad.FromInt(1))
	if !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("got %v, want ErrUnsupportedOperation", err)
	}
}

func TestP2PMakerBalanceAndTransfers(t *testing.T) {
	chain := newFakeChain()
	chain.setToken(daiAddr, makerAddr, wad.MustParse("60"))
	chain.setToken(daiAddr, baseAddr, wad.MustParse("500"))

	acct := NewP2PMaker("otc1", makerAddr, chain, testLogger())

	bal, err := acct.Balance(context.Background(), daiToken)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if want := wad.MustParse("60"); !bal.Equal(want) {
		t.Fatalf("balance = %s, want %s", bal, want)
	}

	if _, err := acct.Deposit(context.Background(), testBase(), daiToken, wad.MustParse("25")); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := acct.Withdraw(context.Background(), testBase(), daiToken, wad.MustParse("10")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	if len(chain.transfers) != 2 {
		t.Fatalf("got %d transfers, want 2", len(chain.transfers))
	}
	if dep := chain.transfers[0]; dep.kind != "token" || dep.to != makerAddr || !dep.amount.Equal(wad.MustParse("25")) {
		t.Fatalf("unexpected deposit %+v", dep)
	}
	if wd := chain.transfers[1]; wd.kind != "tokenFrom" || wd.from != makerAddr || wd.to != baseAddr {
		t.Fatalf("unexpected withdraw %+v", wd)
	}
}

type fakeBalances struct {
	balances []cex.Balance
	err      error
}

func (f *fakeBalances) Balances(ctx context.Context) ([]cex.Balance, error) {
	return f.balances, f.err
}

func TestCexAccountBalanceIncludesLocked(t *testing.T) {
	acct := NewCexAccount("exchange1", &fakeBalances{balances: []cex.Balance{
		{Symbol: "BTC", Free: wad.MustParse("1"), Locked: wad.Zero},
		{Symbol: "DAI", Free: wad.MustParse("70"), Locked: wad.MustParse("30")},
	}})

	got, err := acct.Balance(context.Background(), daiToken)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if want := wad.MustParse("100"); !got.Equal(want) {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

func TestCexAccountUnknownSymbol(t *testing.T) {
	acct := NewCexAccount("exchange1", &fakeBalances{balances: []cex.Balance{
		{Symbol: "BTC", Free: wad.FromInt(1)},
	}})
	_, err := acct.Balance(context.Background(), daiToken)
	if !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("got %v, want ErrTokenNotFound", err)
	}
}

func TestCexAccountReadOnly(t *testing.T) {
	acct := NewCexAccount("exchange1", &fakeBalances{})
	if acct.SupportsDeposit() || acct.SupportsWithdraw() {
		t.Fatal("cex account must be read only")
	}
	if _, err := acct.Deposit(context.Background(), testBase(), daiToken, wad.FromInt(1)); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("deposit: got %v, want ErrUnsupportedOperation", err)
	}
}
