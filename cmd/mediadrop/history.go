package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"mediadrop/internal/database"

	"github.com/spf13/cobra"
)

type historyOptions struct {
	limit  int
	digest string
	asJSON bool
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded uploads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			db, err := database.New(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			var uploads []database.Upload
			if opts.digest != "" {
				uploads, err = db.FindByDigest(cmd.Context(), opts.digest)
			} else {
				uploads, err = db.ListUploads(cmd.Context(), opts.limit)
			}
			if err != nil {
				return err
			}

			if opts.asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(uploads)
			}
			return printUploads(cmd, uploads)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", database.DefaultListLimit, "maximum number of uploads")
	cmd.Flags().StringVar(&opts.digest, "sha256", "", "only show uploads of this hash")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	return cmd
}

func printUploads(cmd *cobra.Command, uploads []database.Upload) error {
	if len(uploads) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No uploads recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tNAME\tVIA\tSIZE\tURL")
	for _, u := range uploads {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			u.CreatedAt.Local().Format(time.DateTime),
			u.Name,
			u.Via,
			formatSize(u.FinalSize),
			u.URL)
	}
	return w.Flush()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
