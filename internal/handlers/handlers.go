package handlers

import (
	"context"
	"time"

	"mediadrop/internal/blossom"
	"mediadrop/internal/database"
	"mediadrop/internal/digest"
	"mediadrop/internal/memory"
	"mediadrop/internal/mediatypes"
	"mediadrop/internal/metrics"
	"mediadrop/internal/streaming"
	"mediadrop/internal/uploader"
)

// Processor runs the upload pipeline.
type Processor interface {
	Process(ctx context.Context, blob mediatypes.Blob, onProgress uploader.ProgressFunc) (*uploader.Result, error)
}

// BlobStore is the Blossom client as seen by the handlers.
type BlobStore interface {
	Servers() []blossom.Server
	HasSigner() bool
	DeleteEverywhere(ctx context.Context, d digest.Digest) ([]blossom.DeleteResult, error)
}

// HistoryStore is the upload history as seen by the handlers.
type HistoryStore interface {
	ListUploads(ctx context.Context, limit int) ([]database.Upload, error)
	FindByDigest(ctx context.Context, sha256 string) ([]database.Upload, error)
	DeleteByDigest(ctx context.Context, sha256 string) (int64, error)
	GetStats() metrics.Stats
}

// MemoryGate decides whether an upload may start.
type MemoryGate interface {
	Admit(size int64) error
	GetStats() memory.Stats
}

// Options wires a Handlers. History and Memory may be nil.
type Options struct {
	Pipeline        Processor
	Blossom         BlobStore
	History         HistoryStore
	Memory          MemoryGate
	MaxRequestBytes int64
	// Fallback names the fallback sink for /api/servers, "" when disabled.
	Fallback string
	Stream   streaming.Config
}

// Handlers holds the dependencies of every HTTP handler.
type Handlers struct {
	pipeline        Processor
	blossom         BlobStore
	history         HistoryStore
	memory          MemoryGate
	maxRequestBytes int64
	fallback        string
	stream          streaming.Config
	startTime       time.Time
}

// New creates a Handlers.
func New(opts Options) *Handlers {
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = 64 * 1024 * 1024
	}
	if opts.Stream == (streaming.Config{}) {
		opts.Stream = streaming.DefaultConfig()
	}
	return &Handlers{
		pipeline:        opts.Pipeline,
		blossom:         opts.Blossom,
		history:         opts.History,
		memory:          opts.Memory,
		maxRequestBytes: opts.MaxRequestBytes,
		fallback:        opts.Fallback,
		stream:          opts.Stream,
		startTime:       time.Now(),
	}
}
