package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mediadrop/internal/authz"
	"mediadrop/internal/blossom"
	"mediadrop/internal/database"
	"mediadrop/internal/fallback"
	"mediadrop/internal/filesystem"
	"mediadrop/internal/logging"
	"mediadrop/internal/media"
	"mediadrop/internal/metrics"
	"mediadrop/internal/startup"
	"mediadrop/internal/transcoder"
	"mediadrop/internal/uploader"
)

// Options adjusts what Build wires.
type Options struct {
	// History opens the sqlite upload history at Config.DatabasePath.
	History bool
	// Vips initializes libvips for image downscaling; imaging is used otherwise.
	Vips bool
	// OnAttempt is called after every Blossom server attempt.
	OnAttempt  func(blossom.Attempt)
	HTTPClient *http.Client
}

// App is a fully wired upload stack.
type App struct {
	Config     *startup.Config
	Signer     *authz.KeySigner
	Blossom    *blossom.Client
	Engine     *transcoder.Engine
	Downscaler *media.Downscaler
	Fallback   fallback.Sink
	History    *database.Database
	Pipeline   *uploader.Pipeline

	runner *transcoder.ExecRunner
	vips   bool
}

// Build wires every component from cfg. Close releases what it opened.
func Build(ctx context.Context, cfg *startup.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, runner: transcoder.NewExecRunner()}
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	var signer authz.Signer
	if cfg.SecretKey != "" {
		ks, err := authz.NewKeySigner(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
		a.Signer = ks
		signer = ks
	}

	a.Blossom = blossom.New(blossom.Options{
		Servers:        cfg.Servers,
		Signer:         signer,
		HTTPClient:     opts.HTTPClient,
		Origin:         cfg.Origin,
		AttemptTimeout: cfg.AttemptTimeout,
		Observer:       metrics.NewServerObserver(),
		OnAttempt:      opts.OnAttempt,
	})

	a.Engine = transcoder.NewEngine(transcoder.Config{
		MaxInput: cfg.MaxInputBytes,
		TempDir:  cfg.TempDir,
		GPUAccel: transcoder.ParseGPUAccel(cfg.GPUAccel),
		Runner:   a.runner,
		Observer: metrics.NewTranscoderObserver(),
	})

	if opts.Vips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, images will be resized with imaging: %v", err)
		} else {
			a.vips = true
		}
	}
	a.Downscaler = media.NewDownscaler(cfg.ImageMaxDimension, cfg.ImageMaxBytes)

	sink, err := newFallback(ctx, cfg, opts.HTTPClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Fallback = sink

	pcfg := uploader.Config{
		Transcoder:         a.Engine,
		TranscodeThreshold: cfg.TranscodeThreshold,
		Resizer:            a.Downscaler,
		Publisher:          a.Blossom,
		Fallback:           sink,
	}

	if opts.History {
		db, err := database.New(ctx, cfg.DatabasePath)
		if err != nil {
			logging.Warn("Upload history disabled: %v", err)
		} else {
			a.History = db
			pcfg.History = db
		}
	}

	a.Pipeline = uploader.New(pcfg)
	return a, nil
}

func newFallback(ctx context.Context, cfg *startup.Config, client *http.Client) (fallback.Sink, error) {
	switch cfg.FallbackBackend {
	case startup.FallbackS3:
		sink, err := fallback.NewS3Sink(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 fallback: %w", err)
		}
		return sink, nil
	case startup.FallbackNone:
		return nil, nil
	default:
		return fallback.NewMultipartSink(cfg.FallbackURL, client), nil
	}
}

// FallbackName returns the configured sink's name, or "" when there is none.
func (a *App) FallbackName() string {
	if a.Fallback == nil {
		return ""
	}
	return a.Fallback.Name()
}

// SignerNPub returns the bech32 public key, or "" without a signer.
func (a *App) SignerNPub() string {
	if a.Signer == nil {
		return ""
	}
	npub, err := a.Signer.NPub()
	if err != nil {
		return ""
	}
	return npub
}

// ServerHosts returns the hosts of the resolved server list.
func (a *App) ServerHosts() []string {
	servers := a.Blossom.Servers()
	hosts := make([]string, 0, len(servers))
	for _, s := range servers {
		hosts = append(hosts, s.Host())
	}
	return hosts
}

// Close stops running ffmpeg children and closes the history.
func (a *App) Close() {
	start := time.Now()
	a.runner.Cleanup()
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			logging.Warn("Closing history database: %v", err)
		}
	}
	if a.vips {
		media.ShutdownVips()
	}
	logging.Debug("Upload stack closed in %v", time.Since(start))
}
