// Package inventory models the hot-reloadable inventory configuration: the
// token list, the base account, and the member accounts with their per-token
// target ranges. The document is JSON, loaded from disk by Reloadable, and a
// parsed InventoryConfig is an immutable snapshot; a reload always produces
// a brand-new value.
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keeperhq/invkeeper/internal/domain"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// MemberType enumerates the supported venue adapter kinds.
type MemberType string

const (
	TypeLedgerAccount  MemberType = "ledger-account"
	TypeOrderBookMaker MemberType = "orderbook-maker"
	TypeP2PMaker       MemberType = "p2p-maker"
	TypeCexAPI         MemberType = "cex-api"
)

// TokenRange is the configured target range for one token held by a member.
// Any field may be nil. A deposit is only attempted when both Min and Avg are
// present; a withdraw only when both Max and Avg are present.
type TokenRange struct {
	Min *wad.Wad
	Avg *wad.Wad
	Max *wad.Wad
}

// MemberToken pairs a token name with its target range.
type MemberToken struct {
	TokenName string
	Range     TokenRange
}

// Member is one externally managed account whose inventory is monitored and
// optionally rebalanced. Config carries venue-specific parameters; values
// prefixed with '$' are environment-variable references resolved at adapter
// construction time.
type Member struct {
	Name   string
	Type   MemberType
	Config map[string]string
	Tokens []MemberToken // sorted by token name
}

// InventoryConfig is one immutable snapshot of the full inventory document.
type InventoryConfig struct {
	Tokens  []domain.Token
	Base    domain.BaseAccount
	Members []Member

	byName map[string]domain.Token
}

// TokenByName resolves a token from the configured token list.
func (c *InventoryConfig) TokenByName(name string) (domain.Token, error) {
	t, ok := c.byName[name]
	if !ok {
		return domain.Token{}, fmt.Errorf("inventory: token %q: %w", name, domain.ErrTokenNotFound)
	}
	return t, nil
}

// rawConfig mirrors the JSON document layout.
type rawConfig struct {
	Tokens map[string]string `json:"tokens"`
	Base   struct {
		Name             string `json:"name"`
		Address          string `json:"address"`
		MinNativeBalance string `json:"minNativeBalance"`
	} `json:"base"`
	Members []rawMember `json:"members"`
}

type rawMember struct {
	Name   string              `json:"name"`
	Type   string              `json:"type"`
	Config map[string]string   `json:"config"`
	Tokens map[string]rawRange `json:"tokens"`
}

type rawRange struct {
	MinAmount *string `json:"minAmount"`
	AvgAmount *string `json:"avgAmount"`
	MaxAmount *string `json:"maxAmount"`
}

var validTypes = map[MemberType]bool{
	TypeLedgerAccount:  true,
	TypeOrderBookMaker: true,
	TypeP2PMaker:       true,
	TypeCexAPI:         true,
}

// Parse decodes and validates an inventory document. All structural problems
// are fatal here; the engine never sees a half-valid snapshot. Every failure
// wraps domain.ErrInvalidConfig so callers can classify load-time errors.
func Parse(data []byte) (*InventoryConfig, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func parse(data []byte) (*InventoryConfig, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("inventory: decode: %w", err)
	}

	if len(raw.Tokens) == 0 {
		return nil, fmt.Errorf("inventory: no tokens configured")
	}

	cfg := &InventoryConfig{
		byName: make(map[string]domain.Token, len(raw.Tokens)),
	}

	names := make([]string, 0, len(raw.Tokens))
	for name := range raw.Tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addr, err := parseAddress(raw.Tokens[name])
		if err != nil {
			return nil, fmt.Errorf("inventory: token %q: %w", name, err)
		}
		tok := domain.Token{Name: name, Address: addr}
		cfg.Tokens = append(cfg.Tokens, tok)
		cfg.byName[name] = tok
	}

	baseAddr, err := parseAddress(raw.Base.Address)
	if err != nil {
		return nil, fmt.Errorf("inventory: base: %w", err)
	}
	if raw.Base.Name == "" {
		return nil, fmt.Errorf("inventory: base: name is required")
	}
	minNative := wad.Zero
	if raw.Base.MinNativeBalance != "" {
		minNative, err = wad.Parse(raw.Base.MinNativeBalance)
		if err != nil {
			return nil, fmt.Errorf("inventory: base minNativeBalance: %w", err)
		}
	}
	cfg.Base = domain.BaseAccount{
		Name:             raw.Base.Name,
		Address:          baseAddr,
		MinNativeBalance: minNative,
	}

	seen := make(map[string]bool, len(raw.Members))
	for _, rm := range raw.Members {
		m, err := parseMember(rm, cfg.byName)
		if err != nil {
			return nil, err
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("inventory: duplicate member %q", m.Name)
		}
		seen[m.Name] = true
		cfg.Members = append(cfg.Members, m)
	}

	return cfg, nil
}

func parseMember(rm rawMember, tokens map[string]domain.Token) (Member, error) {
	if rm.Name == "" {
		return Member{}, fmt.Errorf("inventory: member without a name")
	}
	mt := MemberType(rm.Type)
	if !validTypes[mt] {
		return Member{}, fmt.Errorf("inventory: member %q type %q: %w", rm.Name, rm.Type, domain.ErrUnknownMemberType)
	}

	m := Member{
		Name:   rm.Name,
		Type:   mt,
		Config: rm.Config,
	}
	if m.Config == nil {
		m.Config = map[string]string{}
	}

	tokenNames := make([]string, 0, len(rm.Tokens))
	for name := range rm.Tokens {
		tokenNames = append(tokenNames, name)
	}
	sort.Strings(tokenNames)

	for _, name := range tokenNames {
		if _, ok := tokens[name]; !ok {
			return Member{}, fmt.Errorf("inventory: member %q references unknown token %q", rm.Name, name)
		}
		r, err := parseRange(rm.Tokens[name])
		if err != nil {
			return Member{}, fmt.Errorf("inventory: member %q token %q: %w", rm.Name, name, err)
		}
		m.Tokens = append(m.Tokens, MemberToken{TokenName: name, Range: r})
	}

	return m, nil
}

func parseRange(rr rawRange) (TokenRange, error) {
	var r TokenRange
	var err error
	if r.Min, err = parseAmount(rr.MinAmount); err != nil {
		return TokenRange{}, fmt.Errorf("minAmount: %w", err)
	}
	if r.Avg, err = parseAmount(rr.AvgAmount); err != nil {
		return TokenRange{}, fmt.Errorf("avgAmount: %w", err)
	}
	if r.Max, err = parseAmount(rr.MaxAmount); err != nil {
		return TokenRange{}, fmt.Errorf("maxAmount: %w", err)
	}

	// min <= avg <= max must hold for whichever fields are present, otherwise
	// the deposit and withdraw conditions can contradict each other.
	if r.Min != nil && r.Avg != nil && r.Min.GreaterThan(*r.Avg) {
		return TokenRange{}, fmt.Errorf("minAmount %s exceeds avgAmount %s", r.Min, r.Avg)
	}
	if r.Avg != nil && r.Max != nil && r.Avg.GreaterThan(*r.Max) {
		return TokenRange{}, fmt.Errorf("avgAmount %s exceeds maxAmount %s", r.Avg, r.Max)
	}
	if r.Min != nil && r.Max != nil && r.Min.GreaterThan(*r.Max) {
		return TokenRange{}, fmt.Errorf("minAmount %s exceeds maxAmount %s", r.Min, r.Max)
	}

	return r, nil
}

func parseAmount(s *string) (*wad.Wad, error) {
	if s == nil {
		return nil, nil
	}
	w, err := wad.Parse(*s)
	if err != nil {
		return nil, err
	}
	if w.Sign() < 0 {
		return nil, fmt.Errorf("amount %s is negative", w)
	}
	return &w, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ResolveEnv resolves a venue-config value. A value prefixed with '$' is
// replaced by the named environment variable; a missing variable is an
// error. Resolution happens once, at adapter construction time.
func ResolveEnv(value string) (string, error) {
	if !strings.HasPrefix(value, "$") {
		return value, nil
	}
	name := value[1:]
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("inventory: environment variable %s is not set", name)
	}
	return v, nil
}
