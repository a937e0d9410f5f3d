package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mediadrop/internal/app"
	"mediadrop/internal/blossom"
	"mediadrop/internal/filesystem"
	"mediadrop/internal/mediatypes"
	"mediadrop/internal/uploader"

	"github.com/spf13/cobra"
)

// useVips turns on libvips for image downscaling. libvips cannot be restarted
// within one process, so tests that upload more than once switch it off.
var useVips = true

type uploadOptions struct {
	mimeType string
	asJSON   bool
	quiet    bool
}

func newUploadCmd(root *rootOptions) *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Shrink and publish files, printing one URL per file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runUpload(ctx, cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.mimeType, "type", "", "MIME type to use instead of detecting it")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print each result as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not show progress")
	return cmd
}

func runUpload(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *uploadOptions, files []string) error {
	stderr := cmd.ErrOrStderr()

	buildOpts := app.Options{Vips: useVips}
	if root.verbose {
		buildOpts.OnAttempt = func(a blossom.Attempt) {
			line := fmt.Sprintf("  %s: %s (%v)", a.Server.Host(), a.Reason, a.Duration.Round(time.Millisecond))
			if a.Err != nil && !a.OK() {
				line += ": " + a.Err.Error()
			}
			fmt.Fprintln(stderr, line)
		}
	}

	stack, err := root.build(ctx, buildOpts)
	if err != nil {
		return err
	}
	defer stack.Close()

	failed := 0
	for _, path := range files {
		result, err := uploadFile(ctx, stack, path, opts, stderr)
		if err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if err := printResult(cmd, result, opts.asJSON); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

func uploadFile(ctx context.Context, stack *app.App, path string, opts *uploadOptions, stderr io.Writer) (*uploader.Result, error) {
	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	blob := mediatypes.NewBlob(filepath.Base(path), data, opts.mimeType)

	var onProgress uploader.ProgressFunc
	var printer *progressPrinter
	if !opts.quiet {
		printer = newProgressPrinter(stderr)
		onProgress = printer.Update
	}

	result, err := stack.Pipeline.Process(ctx, blob, onProgress)
	if printer != nil {
		printer.Done()
	}
	if err != nil {
		return nil, uploader.Classify(err)
	}
	return result, nil
}

func printResult(cmd *cobra.Command, result *uploader.Result, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		return enc.Encode(result)
	}
	_, err := fmt.Fprintln(out, result.URL)
	return err
}
