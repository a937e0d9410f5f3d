package blossom

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"mediadrop/internal/authz"
	"mediadrop/internal/digest"
	"mediadrop/internal/logging"
	"mediadrop/internal/mediatypes"
)

const (
	// DefaultAttemptTimeout bounds a single server round trip.
	DefaultAttemptTimeout = 2 * time.Minute

	// maxDescriptorBytes caps how much of a success body is decoded.
	maxDescriptorBytes = 1 << 20

	// maxDrainBytes caps how much of an error body is read and discarded.
	maxDrainBytes = 64 << 10
)

// Descriptor is the JSON document a server returns for a stored blob.
type Descriptor struct {
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Uploaded int64  `json:"uploaded"`
}

// Outcome describes a verified upload.
type Outcome struct {
	URL        string
	Server     Server
	Descriptor Descriptor
	Digest     digest.Digest
	Attempts   []Attempt
}

// Observer receives one call per server attempt. The metrics package
// provides the production implementation.
type Observer interface {
	ObserveAttempt(host, reason string, durationSeconds float64)
}

// Options configures a Client.
type Options struct {
	Servers []Server
	Signer  authz.Signer
	// Minter defaults to authz.NewMinter().
	Minter *authz.Minter
	// HTTPClient defaults to a client without a cookie jar.
	HTTPClient *http.Client
	// Origin is sent as the Origin header when set.
	Origin string
	// AttemptTimeout bounds each server attempt; zero means DefaultAttemptTimeout.
	AttemptTimeout time.Duration
	Observer       Observer
	// OnAttempt is called after every server attempt, in order.
	OnAttempt func(Attempt)
}

// Client uploads blobs to an ordered list of Blossom servers.
type Client struct {
	servers        []Server
	signer         authz.Signer
	minter         *authz.Minter
	httpClient     *http.Client
	origin         string
	attemptTimeout time.Duration
	observer       Observer
	onAttempt      func(Attempt)
}

// New creates a Client. The server list is resolved once here.
func New(opts Options) *Client {
	c := &Client{
		servers:        ResolveServers(opts.Servers),
		signer:         opts.Signer,
		minter:         opts.Minter,
		httpClient:     opts.HTTPClient,
		origin:         opts.Origin,
		attemptTimeout: opts.AttemptTimeout,
		observer:       opts.Observer,
		onAttempt:      opts.OnAttempt,
	}
	if c.minter == nil {
		c.minter = authz.NewMinter()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.attemptTimeout <= 0 {
		c.attemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Servers returns a copy of the resolved server list.
func (c *Client) Servers() []Server {
	return append([]Server(nil), c.servers...)
}

// HasSigner reports whether the client can mint authorizations.
func (c *Client) HasSigner() bool {
	return c.signer != nil && c.signer.PublicKey() != ""
}

// EncodeAuthorization renders an assertion as an Authorization header value.
func EncodeAuthorization(a *authz.Assertion) (string, error) {
	if a == nil || a.Event == nil {
		return "", errors.New("empty authorization")
	}
	raw, err := json.Marshal(a.Event)
	if err != nil {
		return "", fmt.Errorf("encode authorization: %w", err)
	}
	return "Nostr " + base64.StdEncoding.EncodeToString(raw), nil
}

// Upload stores blob on the first server that accepts it and reports the same
// content hash. Servers are tried one at a time in configured order.
func (c *Client) Upload(ctx context.Context, blob mediatypes.Blob) (*Outcome, error) {
	d := digest.Sum(blob.Data)

	assertion, err := c.minter.Mint(authz.ActionUpload, d, c.signer)
	if err != nil {
		return nil, err
	}
	header, err := EncodeAuthorization(assertion)
	if err != nil {
		return nil, err
	}

	logging.Debug("Uploading %s (%d bytes, %s) to %d server(s)",
		d.Short(), blob.Size(), blob.ContentType(), len(c.servers))

	attempts := make([]Attempt, 0, len(c.servers))
	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		desc, attempt := c.put(ctx, server, blob, d, header)
		attempts = append(attempts, attempt)
		c.record(attempt)

		if attempt.OK() {
			logging.Info("Uploaded %s to %s", d.Short(), server.Host())
			return &Outcome{
				URL:        NormalizeURL(desc.URL),
				Server:     server,
				Descriptor: *desc,
				Digest:     d,
				Attempts:   attempts,
			}, nil
		}
	}

	return nil, &ExhaustedError{Attempts: attempts}
}

func (c *Client) put(ctx context.Context, server Server, blob mediatypes.Blob, d digest.Digest, auth string) (_ *Descriptor, attempt Attempt) {
	attempt.Server = server
	start := time.Now()
	defer func() { attempt.Duration = time.Since(start) }()

	target, err := server.endpoint("/upload")
	if err != nil {
		attempt.Reason, attempt.Err = ReasonTransport, err
		return nil, attempt
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPut, target, bytes.NewReader(blob.Data))
	if err != nil {
		attempt.Reason, attempt.Err = ReasonTransport, err
		return nil, attempt
	}
	req.ContentLength = blob.Size()
	req.Header.Set("Content-Type", blob.ContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", auth)
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		attempt.Reason, attempt.Err = ReasonTransport, err
		logging.Debug("Server %s unreachable: %v", server.Host(), err)
		return nil, attempt
	}
	defer resp.Body.Close()
	attempt.Status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		attempt.Reason = ReasonStatus
		attempt.Err = fmt.Errorf("server responded %d", resp.StatusCode)
		logging.Debug("Server %s rejected upload: %d %s", server.Host(), resp.StatusCode, resp.Header.Get("X-Reason"))
		return nil, attempt
	}

	var desc Descriptor
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDescriptorBytes)).Decode(&desc); err != nil {
		attempt.Reason, attempt.Err = ReasonMalformed, fmt.Errorf("decode descriptor: %w", err)
		return nil, attempt
	}
	if desc.URL == "" {
		attempt.Reason, attempt.Err = ReasonMalformed, errors.New("descriptor has no url")
		return nil, attempt
	}
	if desc.SHA256 != "" && !d.Matches(desc.SHA256) {
		attempt.Reason = ReasonHashMismatch
		attempt.Err = fmt.Errorf("server reported %s, expected %s", desc.SHA256, d)
		logging.Warn("Integrity rejection from %s: reported hash %s does not match local %s",
			server.Host(), desc.SHA256, d)
		return nil, attempt
	}

	attempt.Reason = ReasonOK
	return &desc, attempt
}

// Delete removes the blob named by d from one server.
func (c *Client) Delete(ctx context.Context, server Server, d digest.Digest) error {
	assertion, err := c.minter.Mint(authz.ActionDelete, d, c.signer)
	if err != nil {
		return err
	}
	header, err := EncodeAuthorization(assertion)
	if err != nil {
		return err
	}

	target, err := server.endpoint("/" + d.String())
	if err != nil {
		return fmt.Errorf("resolve %s: %w", server.URL, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", header)
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", server.Host(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete from %s: server responded %d", server.Host(), resp.StatusCode)
	}
	logging.Info("Deleted %s from %s", d.Short(), server.Host())
	return nil
}

// DeleteResult is the per-server result of DeleteEverywhere.
type DeleteResult struct {
	Server Server `json:"server"`
	Error  string `json:"error,omitempty"`
}

// DeleteEverywhere removes d from every configured server and reports each
// result. It fails fast only on authorization errors.
func (c *Client) DeleteEverywhere(ctx context.Context, d digest.Digest) ([]DeleteResult, error) {
	if !c.HasSigner() {
		return nil, authz.ErrMissingSigner
	}
	results := make([]DeleteResult, 0, len(c.servers))
	for _, server := range c.servers {
		r := DeleteResult{Server: server}
		if err := c.Delete(ctx, server, d); err != nil {
			if errors.Is(err, authz.ErrMissingSigner) {
				return nil, err
			}
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *Client) record(a Attempt) {
	if c.observer != nil {
		c.observer.ObserveAttempt(a.Server.Host(), a.Reason, a.Duration.Seconds())
	}
	if c.onAttempt != nil {
		c.onAttempt(a)
	}
}
