package authz

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"mediadrop/internal/digest"

	"github.com/nbd-wtf/go-nostr"
)

// KindBlossomAuth is the nostr event kind of a Blossom authorization.
const KindBlossomAuth = 24242

// TTL is how long a minted assertion stays valid.
const TTL = 24 * time.Hour

// Action names what the assertion authorizes.
type Action string

const (
	// ActionUpload authorizes storing one blob.
	ActionUpload Action = "upload"
	// ActionDelete authorizes removing one blob.
	ActionDelete Action = "delete"
	// ActionList authorizes listing the signer's blobs.
	ActionList Action = "list"
	// ActionGet authorizes fetching blobs.
	ActionGet Action = "get"
)

// ErrMissingSigner is returned when no identity or signing capability is present.
// It is a precondition failure and must not be retried.
var ErrMissingSigner = errors.New("missing signer")

// ErrUnknownAction is returned for actions outside the Blossom verb set.
var ErrUnknownAction = errors.New("unknown authorization action")

// bindsDigest reports whether the action targets a single object.
func (a Action) bindsDigest() bool {
	return a == ActionUpload || a == ActionDelete
}

func (a Action) valid() bool {
	switch a {
	case ActionUpload, ActionDelete, ActionList, ActionGet:
		return true
	}
	return false
}

// Assertion is a signed, short-lived authorization for one action.
// Wire encoding is left to the transport.
type Assertion struct {
	Action    Action
	Digest    digest.Digest
	IssuedAt  time.Time
	ExpiresAt time.Time
	Event     *nostr.Event
}

// Expired reports whether the assertion is outside its validity window at t.
func (a *Assertion) Expired(t time.Time) bool {
	return !t.Before(a.ExpiresAt)
}

// Minter builds authorization assertions.
type Minter struct {
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// NewMinter returns a Minter using the wall clock.
func NewMinter() *Minter {
	return &Minter{Now: time.Now}
}

func (m *Minter) now() time.Time {
	if m == nil || m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Mint creates an assertion for action, bound to d when the action modifies or
// removes a specific object. It performs no I/O.
func (m *Minter) Mint(action Action, d digest.Digest, signer Signer) (*Assertion, error) {
	if signer == nil || signer.PublicKey() == "" {
		return nil, ErrMissingSigner
	}
	if !action.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	issued := m.now().Truncate(time.Second)
	expires := issued.Add(TTL)

	tags := nostr.Tags{
		nostr.Tag{"t", string(action)},
		nostr.Tag{"expiration", strconv.FormatInt(expires.Unix(), 10)},
	}
	bound := digest.Digest("")
	if d != "" && action.bindsDigest() {
		tags = append(tags, nostr.Tag{"x", string(d)})
		bound = d
	}

	event := &nostr.Event{
		Kind:      KindBlossomAuth,
		Content:   describe(action, bound),
		Tags:      tags,
		CreatedAt: nostr.Timestamp(issued.Unix()),
		PubKey:    signer.PublicKey(),
	}
	if err := signer.SignEvent(event); err != nil {
		return nil, fmt.Errorf("sign %s authorization: %w", action, err)
	}

	return &Assertion{
		Action:    action,
		Digest:    bound,
		IssuedAt:  issued,
		ExpiresAt: expires,
		Event:     event,
	}, nil
}

func describe(action Action, d digest.Digest) string {
	verb := map[Action]string{
		ActionUpload: "Upload",
		ActionDelete: "Delete",
		ActionList:   "List",
		ActionGet:    "Get",
	}[action]
	if d == "" {
		return verb + " blobs"
	}
	return verb + " " + d.Short()
}
