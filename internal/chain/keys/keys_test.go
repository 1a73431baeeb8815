package keys

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(blob, "hunter2")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip = %s, want %s", got, testKeyHex)
	}

	if _, err := Decrypt(blob, "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestEncryptRejectsBadInput(t *testing.T) {
	if _, err := Encrypt(testKeyHex, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, err := Encrypt("abcd", "pw"); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := Encrypt("zz"+strings.Repeat("00", 31), "pw"); err == nil {
		t.Fatal("expected error for non-hex key")
	}
}

func TestLoadRawKey(t *testing.T) {
	key, err := Load(Config{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want, _ := ethcrypto.HexToECDSA(testKeyHex)
	if ethcrypto.PubkeyToAddress(key.PublicKey) != ethcrypto.PubkeyToAddress(want.PublicKey) {
		t.Fatal("loaded key does not match")
	}
}

func TestLoadEncryptedFile(t *testing.T) {
	blob, err := Encrypt(testKeyHex, "pw")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}

	key, err := Load(Config{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want, _ := ethcrypto.HexToECDSA(testKeyHex)
	if ethcrypto.PubkeyToAddress(key.PublicKey) != ethcrypto.PubkeyToAddress(want.PublicKey) {
		t.Fatal("loaded key does not match")
	}
}

func TestLoadNoSource(t *testing.T) {
	if _, err := Load(Config{}); err == nil {
		t.Fatal("expected error when no key source configured")
	}
}
