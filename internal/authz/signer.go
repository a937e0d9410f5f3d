package authz

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Signer holds an identity that can sign authorization events.
type Signer interface {
	// PublicKey returns the hex public key, or "" when no identity is loaded.
	PublicKey() string
	// SignEvent fills in the event id and signature.
	SignEvent(event *nostr.Event) error
}

// ErrInvalidKey is returned for secrets that are neither 64-char hex nor nsec.
var ErrInvalidKey = errors.New("invalid secret key")

// KeySigner signs with an in-memory secp256k1 secret key.
type KeySigner struct {
	secret string
	public string
}

// NewKeySigner accepts a hex secret key or a bech32 nsec.
func NewKeySigner(secret string) (*KeySigner, error) {
	sk, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &KeySigner{secret: sk, public: pk}, nil
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	return NewKeySigner(nostr.GeneratePrivateKey())
}

// PublicKey returns the hex public key.
func (s *KeySigner) PublicKey() string {
	if s == nil {
		return ""
	}
	return s.public
}

// SignEvent signs event with the secret key, overwriting its pubkey.
func (s *KeySigner) SignEvent(event *nostr.Event) error {
	if s == nil || s.secret == "" {
		return ErrMissingSigner
	}
	event.PubKey = s.public
	return event.Sign(s.secret)
}

// NPub returns the bech32 form of the public key.
func (s *KeySigner) NPub() (string, error) {
	return nip19.EncodePublicKey(s.public)
}

// NSec returns the bech32 form of the secret key.
func (s *KeySigner) NSec() (string, error) {
	return nip19.EncodePrivateKey(s.secret)
}

func decodeSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrMissingSigner
	}

	if strings.HasPrefix(secret, "nsec1") {
		prefix, value, err := nip19.Decode(secret)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		sk, ok := value.(string)
		if prefix != "nsec" || !ok {
			return "", fmt.Errorf("%w: unexpected %s entity", ErrInvalidKey, prefix)
		}
		return sk, nil
	}

	secret = strings.ToLower(strings.TrimPrefix(secret, "0x"))
	if len(secret) != 64 {
		return "", fmt.Errorf("%w: expected 64 hex characters", ErrInvalidKey)
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return secret, nil
}
