package authz

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"mediadrop/internal/digest"

	"github.com/nbd-wtf/go-nostr"
)

const testSecret = "5c0c523f52a5b6fad39ed2403092df8cebc36318b39383bca6c00808626fab3a"

func fixedMinter(t time.Time) *Minter {
	return &Minter{Now: func() time.Time { return t }}
}

func tagValue(ev *nostr.Event, key string) (string, bool) {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1], true
		}
	}
	return "", false
}

// =============================================================================
// Mint Tests
// =============================================================================

func TestMintUploadBindsDigest(t *testing.T) {
	signer, err := NewKeySigner(testSecret)
	if err != nil {
		t.Fatalf("NewKeySigner failed: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	d := digest.Sum([]byte("video bytes"))

	a, err := fixedMinter(now).Mint(ActionUpload, d, signer)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if a.Event.Kind != KindBlossomAuth {
		t.Errorf("Expected kind %d, got %d", KindBlossomAuth, a.Event.Kind)
	}
	if a.Event.PubKey != signer.PublicKey() {
		t.Errorf("Expected pubkey %s, got %s", signer.PublicKey(), a.Event.PubKey)
	}
	if int64(a.Event.CreatedAt) != now.Unix() {
		t.Errorf("Expected created_at %d, got %d", now.Unix(), a.Event.CreatedAt)
	}

	if v, _ := tagValue(a.Event, "t"); v != "upload" {
		t.Errorf("Expected t=upload, got %q", v)
	}
	if v, _ := tagValue(a.Event, "x"); v != string(d) {
		t.Errorf("Expected x=%s, got %q", d, v)
	}

	exp, ok := tagValue(a.Event, "expiration")
	if !ok {
		t.Fatal("Missing expiration tag")
	}
	expUnix, _ := strconv.ParseInt(exp, 10, 64)
	if expUnix != now.Add(24*time.Hour).Unix() {
		t.Errorf("Expected expiration %d, got %d", now.Add(24*time.Hour).Unix(), expUnix)
	}
	if !a.ExpiresAt.Equal(a.IssuedAt.Add(TTL)) {
		t.Errorf("ExpiresAt should be IssuedAt+TTL")
	}
	if a.Digest != d {
		t.Errorf("Assertion digest = %s, expected %s", a.Digest, d)
	}

	ok, err = a.Event.CheckSignature()
	if err != nil || !ok {
		t.Errorf("Signature should verify: ok=%v err=%v", ok, err)
	}
}

func TestMintDigestOnlyForObjectActions(t *testing.T) {
	signer, _ := NewKeySigner(testSecret)
	d := digest.Sum([]byte("x"))

	tests := []struct {
		action   Action
		wantBind bool
	}{
		{ActionUpload, true},
		{ActionDelete, true},
		{ActionList, false},
		{ActionGet, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			a, err := NewMinter().Mint(tt.action, d, signer)
			if err != nil {
				t.Fatalf("Mint failed: %v", err)
			}
			_, has := tagValue(a.Event, "x")
			if has != tt.wantBind {
				t.Errorf("x tag present=%v, expected %v", has, tt.wantBind)
			}
			if tt.wantBind && a.Digest != d {
				t.Errorf("Expected bound digest")
			}
			if !tt.wantBind && a.Digest != "" {
				t.Errorf("Expected no bound digest, got %s", a.Digest)
			}
		})
	}
}

func TestMintWithoutDigestOmitsTag(t *testing.T) {
	signer, _ := NewKeySigner(testSecret)

	a, err := NewMinter().Mint(ActionUpload, "", signer)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if _, has := tagValue(a.Event, "x"); has {
		t.Error("x tag should be omitted when no digest is given")
	}
}

func TestMintMissingSigner(t *testing.T) {
	var nilSigner *KeySigner

	tests := []struct {
		name   string
		signer Signer
	}{
		{"nil interface", nil},
		{"typed nil", nilSigner},
		{"empty identity", &KeySigner{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMinter().Mint(ActionUpload, digest.Sum(nil), tt.signer)
			if !errors.Is(err, ErrMissingSigner) {
				t.Errorf("Expected ErrMissingSigner, got %v", err)
			}
		})
	}
}

func TestMintUnknownAction(t *testing.T) {
	signer, _ := NewKeySigner(testSecret)
	_, err := NewMinter().Mint(Action("mirror"), "", signer)
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}
}

type failingSigner struct{}

func (failingSigner) PublicKey() string { return strings.Repeat("a", 64) }

func (failingSigner) SignEvent(*nostr.Event) error { return errors.New("hardware key unplugged") }

func TestMintSignFailure(t *testing.T) {
	_, err := NewMinter().Mint(ActionUpload, "", failingSigner{})
	if err == nil {
		t.Fatal("Expected sign error")
	}
	if errors.Is(err, ErrMissingSigner) {
		t.Error("Sign failure should not be reported as missing signer")
	}
}

func TestAssertionExpired(t *testing.T) {
	signer, _ := NewKeySigner(testSecret)
	now := time.Unix(1_700_000_000, 0)

	a, err := fixedMinter(now).Mint(ActionDelete, digest.Sum(nil), signer)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if a.Expired(now.Add(time.Hour)) {
		t.Error("Should be valid one hour in")
	}
	if !a.Expired(now.Add(TTL)) {
		t.Error("Should be expired at TTL")
	}
}

func TestMintFreshPerCall(t *testing.T) {
	signer, _ := NewKeySigner(testSecret)
	tick := time.Unix(1_700_000_000, 0)
	m := &Minter{Now: func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}}

	a1, _ := m.Mint(ActionUpload, digest.Sum([]byte("a")), signer)
	a2, _ := m.Mint(ActionUpload, digest.Sum([]byte("a")), signer)
	if a1.Event.ID == a2.Event.ID {
		t.Error("Each mint should produce a distinct event")
	}
}

// =============================================================================
// Signer Tests
// =============================================================================

func TestNewKeySignerFormats(t *testing.T) {
	hexSigner, err := NewKeySigner(testSecret)
	if err != nil {
		t.Fatalf("hex key rejected: %v", err)
	}

	nsec, err := hexSigner.NSec()
	if err != nil {
		t.Fatalf("NSec failed: %v", err)
	}
	if !strings.HasPrefix(nsec, "nsec1") {
		t.Errorf("Expected nsec1 prefix, got %s", nsec)
	}

	bechSigner, err := NewKeySigner(nsec)
	if err != nil {
		t.Fatalf("nsec rejected: %v", err)
	}
	if bechSigner.PublicKey() != hexSigner.PublicKey() {
		t.Error("hex and nsec forms should yield the same identity")
	}

	npub, err := hexSigner.NPub()
	if err != nil || !strings.HasPrefix(npub, "npub1") {
		t.Errorf("Expected npub, got %q (%v)", npub, err)
	}

	upper, err := NewKeySigner("0x" + strings.ToUpper(testSecret))
	if err != nil {
		t.Fatalf("0x-prefixed upper hex rejected: %v", err)
	}
	if upper.PublicKey() != hexSigner.PublicKey() {
		t.Error("case and prefix should not change the identity")
	}
}

func TestNewKeySignerInvalid(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr error
	}{
		{"empty", "", ErrMissingSigner},
		{"short hex", "abcd", ErrInvalidKey},
		{"non hex", strings.Repeat("g", 64), ErrInvalidKey},
		{"bad bech32", "nsec1qqqq", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeySigner(tt.secret)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGenerateKeySigner(t *testing.T) {
	a, err := GenerateKeySigner()
	if err != nil {
		t.Fatalf("GenerateKeySigner failed: %v", err)
	}
	b, _ := GenerateKeySigner()
	if a.PublicKey() == b.PublicKey() {
		t.Error("Generated keys should differ")
	}
	if len(a.PublicKey()) != 64 {
		t.Errorf("Expected 64-char pubkey, got %d", len(a.PublicKey()))
	}
}
