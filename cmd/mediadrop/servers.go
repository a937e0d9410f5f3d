package main

import (
	"fmt"
	"text/tabwriter"

	"mediadrop/internal/authz"
	"mediadrop/internal/startup"

	"github.com/spf13/cobra"
)

func newServersCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "Show the resolved server list, signer and fallback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSERVER\tPUBKEY")
			for i, s := range cfg.Servers {
				pubkey := s.PubKey
				if pubkey == "" {
					pubkey = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, s.URL, pubkey)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			if cfg.SecretKey == "" {
				fmt.Fprintln(out, "Signer:   not configured")
			} else {
				signer, err := authz.NewKeySigner(cfg.SecretKey)
				if err != nil {
					return fmt.Errorf("signing key: %w", err)
				}
				npub, err := signer.NPub()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Signer:   %s\n", npub)
			}
			fmt.Fprintf(out, "Fallback: %s\n", describeFallback(cfg.FallbackBackend, cfg.FallbackURL, cfg.S3.Bucket))
			return nil
		},
	}
}

func describeFallback(backend, url, bucket string) string {
	switch backend {
	case startup.FallbackNone:
		return "disabled"
	case startup.FallbackS3:
		return "s3://" + bucket
	default:
		return url
	}
}
