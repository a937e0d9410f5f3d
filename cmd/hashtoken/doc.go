// Command hashtoken manages the bearer token that guards the gateway's /api
// routes.
//
// The gateway never stores the token itself, only its bcrypt hash in
// UPLOAD_TOKEN_HASH.
//
// Usage:
//
//	hashtoken <command>
//
// Commands:
//
//	hash      Read a token twice and print its bcrypt hash. The token is read
//	          without echo from a terminal, or one line at a time from stdin.
//
//	generate  Print a random 64 character token together with its hash.
//
//	verify    Read a token and report whether it matches UPLOAD_TOKEN_HASH.
//
// Environment:
//
//	UPLOAD_TOKEN_HASH - bcrypt hash checked by verify
package main
