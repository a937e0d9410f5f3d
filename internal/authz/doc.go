// Package authz mints Blossom authorization assertions: kind 24242 nostr
// events scoped to one action, bound to a content digest when the action
// touches a single blob, and valid for 24 hours from creation.
//
// The minter returns a structured Assertion. Turning it into a header value
// is the transport's job (see blossom.EncodeAuthorization).
package authz
