package wad

import (
	"math/big"
	"testing"
)

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"12.5", "12.5"},
		{"12.500000000000000000", "12.5"},
		{"0.000000000000000001", "0.000000000000000001"},
		{"1000000", "1000000"},
	}
	for _, c := range cases {
		w, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got := w.String(); got != c.want {
			t.Fatalf("Parse(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseRejectsTooManyDigits(t *testing.T) {
	if _, err := Parse("1.0000000000000000001"); err == nil {
		t.Fatal("expected error for 19 fractional digits")
	}
	if _, err := Parse("not-a-number"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestAddSubRoundTrip(t *testing.T) {
	// a + b - b == a across the fixed-point width.
	pairs := [][2]string{
		{"0", "0"},
		{"1", "0.000000000000000001"},
		{"123456789.987654321", "0.1"},
		{"999999999999.999999999999999999", "1"},
	}
	for _, p := range pairs {
		a := MustParse(p[0])
		b := MustParse(p[1])
		if got := a.Add(b).Sub(b); !got.Equal(a) {
			t.Fatalf("%s + %s - %s = %s, want %s", a, b, b, got, a)
		}
	}
}

func TestCmpAndMin(t *testing.T) {
	a := MustParse("1.5")
	b := MustParse("2")
	if !a.LessThan(b) || !b.GreaterThan(a) {
		t.Fatalf("ordering broken: a=%s b=%s", a, b)
	}
	if got := Min(a, b); !got.Equal(a) {
		t.Fatalf("Min = %s, want %s", got, a)
	}
	if got := Min(b, a); !got.Equal(a) {
		t.Fatalf("Min = %s, want %s", got, a)
	}
	if !a.Equal(a) {
		t.Fatal("a != a")
	}
}

func TestZeroValueUsable(t *testing.T) {
	var z Wad
	if !z.IsZero() || z.Sign() != 0 {
		t.Fatal("zero value is not zero")
	}
	one := FromInt(1)
	if got := z.Add(one); !got.Equal(one) {
		t.Fatalf("0 + 1 = %s", got)
	}
	if z.String() != "0" {
		t.Fatalf("zero String = %q", z.String())
	}
}

func TestSubMayGoNegative(t *testing.T) {
	d := MustParse("1").Sub(MustParse("2"))
	if d.Sign() != -1 {
		t.Fatalf("1 - 2 sign = %d, want -1", d.Sign())
	}
	if d.String() != "-1" {
		t.Fatalf("1 - 2 = %s", d)
	}
}

func TestFromRawCopies(t *testing.T) {
	raw := big.NewInt(42)
	w := FromRaw(raw)
	raw.SetInt64(7)
	if w.BigInt().Int64() != 42 {
		t.Fatal("FromRaw did not copy its input")
	}
}

func TestFromInt(t *testing.T) {
	if got := FromInt(3).String(); got != "3" {
		t.Fatalf("FromInt(3) = %s", got)
	}
	if !FromInt(3).Equal(MustParse("3")) {
		t.Fatal("FromInt and Parse disagree")
	}
}
