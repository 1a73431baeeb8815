package inventory

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keeperhq/invkeeper/internal/domain"
)

const validDoc = `{
  "tokens": {
    "ETH": "0x0000000000000000000000000000000000000000",
    "DAI": "0x89d24A6b4CcB1B6fAA2625fE562bDD9a23260359"
  },
  "base": {
    "name": "base-account",
    "address": "0x1111111111111111111111111111111111111111",
    "minNativeBalance": "2.5"
  },
  "members": [
    {
      "name": "maker-1",
      "type": "orderbook-maker",
      "config": {
        "marketAddress": "0x2222222222222222222222222222222222222222",
        "accountAddress": "0x3333333333333333333333333333333333333333"
      },
      "tokens": {
        "DAI": {"minAmount": "100", "avgAmount": "200", "maxAmount": "400"},
        "ETH": {"minAmount": "1", "avgAmount": "2"}
      }
    }
  ]
}`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(cfg.Tokens) != 2 {
		t.Fatalf("tokens = %d, want 2", len(cfg.Tokens))
	}
	eth, err := cfg.TokenByName("ETH")
	if err != nil {
		t.Fatalf("TokenByName(ETH): %v", err)
	}
	if !eth.IsNative() {
		t.Fatal("ETH should be the native token")
	}
	dai, err := cfg.TokenByName("DAI")
	if err != nil {
		t.Fatalf("TokenByName(DAI): %v", err)
	}
	if dai.IsNative() {
		t.Fatal("DAI should not be native")
	}

	if cfg.Base.Name != "base-account" {
		t.Fatalf("base name = %q", cfg.Base.Name)
	}
	if got := cfg.Base.MinNativeBalance.String(); got != "2.5" {
		t.Fatalf("minNativeBalance = %s", got)
	}

	if len(cfg.Members) != 1 {
		t.Fatalf("members = %d, want 1", len(cfg.Members))
	}
	m := cfg.Members[0]
	if m.Type != TypeOrderBookMaker {
		t.Fatalf("member type = %q", m.Type)
	}
	// Token ranges are sorted by token name for deterministic cycles.
	if m.Tokens[0].TokenName != "DAI" || m.Tokens[1].TokenName != "ETH" {
		t.Fatalf("token order = %s, %s", m.Tokens[0].TokenName, m.Tokens[1].TokenName)
	}
	if m.Tokens[1].Range.Max != nil {
		t.Fatal("ETH maxAmount should be absent")
	}
}

func TestParseUnknownToken(t *testing.T) {
	doc := strings.Replace(validDoc, `"DAI": {"minAmount"`, `"MKR": {"minAmount"`, 1)
	if _, err := Parse([]byte(doc)); err == nil || !strings.Contains(err.Error(), "unknown token") {
		t.Fatalf("err = %v, want unknown token", err)
	}
}

func TestParseUnknownMemberType(t *testing.T) {
	doc := strings.Replace(validDoc, "orderbook-maker", "mystery-venue", 1)
	_, err := Parse([]byte(doc))
	if !errors.Is(err, domain.ErrUnknownMemberType) {
		t.Fatalf("err = %v, want ErrUnknownMemberType", err)
	}
}

func TestParseBadAddress(t *testing.T) {
	doc := strings.Replace(validDoc, "0x1111111111111111111111111111111111111111", "not-an-address", 1)
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected error for malformed base address")
	}
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestParseRangeOrdering(t *testing.T) {
	// max < min must be rejected at load time.
	doc := strings.Replace(validDoc,
		`{"minAmount": "100", "avgAmount": "200", "maxAmount": "400"}`,
		`{"minAmount": "400", "avgAmount": "200", "maxAmount": "100"}`, 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected error for min > avg > max")
	}

	doc = strings.Replace(validDoc,
		`{"minAmount": "100", "avgAmount": "200", "maxAmount": "400"}`,
		`{"minAmount": "100", "maxAmount": "50"}`, 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected error for max < min without avg")
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("INVKEEPER_TEST_SECRET", "s3cret")

	got, err := ResolveEnv("$INVKEEPER_TEST_SECRET")
	if err != nil {
		t.Fatalf("ResolveEnv: %v", err)
	}
	if got != "s3cret" {
		t.Fatalf("resolved = %q", got)
	}

	got, err = ResolveEnv("plain-value")
	if err != nil || got != "plain-value" {
		t.Fatalf("plain value: %q, %v", got, err)
	}

	if _, err := ResolveEnv("$INVKEEPER_TEST_MISSING_VAR"); err == nil {
		t.Fatal("expected error for missing environment variable")
	}
}

func TestReloadableChangeDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	if err := os.WriteFile(path, []byte(validDoc), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewReloadable(path, discard())

	snap1, changed, err := r.Current()
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if !changed {
		t.Fatal("first read should count as changed")
	}

	snap2, changed, err := r.Current()
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if changed {
		t.Fatal("unchanged file reported as changed")
	}
	if snap1 != snap2 {
		t.Fatal("unchanged file should return the identical snapshot")
	}

	// Rewrite with different contents.
	doc := strings.Replace(validDoc, `"minAmount": "100"`, `"minAmount": "150"`, 1)
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	snap3, changed, err := r.Current()
	if err != nil {
		t.Fatalf("third read: %v", err)
	}
	if !changed {
		t.Fatal("changed file not detected")
	}
	if snap3 == snap2 {
		t.Fatal("changed file should produce a new snapshot")
	}
}

func TestReloadableKeepsLastOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.json")
	if err := os.WriteFile(path, []byte(validDoc), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewReloadable(path, discard())
	snap, _, err := r.Current()
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, changed, err := r.Current()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if changed {
		t.Fatal("broken file must not report a change")
	}
	if got != snap {
		t.Fatal("previous snapshot should be preserved on parse error")
	}
}
