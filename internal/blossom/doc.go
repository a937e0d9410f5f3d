// Package blossom uploads content-addressed blobs to Blossom media servers.
//
// A [Client] holds an ordered server list resolved once at construction.
// [Client.Upload] hashes the blob, mints a single upload authorization bound
// to that hash and tries each server in turn with PUT /upload. The first
// server that answers 2xx with a descriptor whose url is present and whose
// sha256 (when reported) matches the local digest wins. Every other outcome
// advances to the next server. When the list is exhausted an
// [*ExhaustedError] carries one [Attempt] per server.
//
// Authorization is sent as
//
//	Authorization: Nostr <base64(event JSON)>
//
// where the event is a kind 24242 nostr event produced by the authz package.
package blossom
