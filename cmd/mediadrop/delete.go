package main

import (
	"fmt"

	"mediadrop/internal/app"
	"mediadrop/internal/digest"

	"github.com/spf13/cobra"
)

func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <sha256>",
		Short: "Delete a blob from every configured server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := digest.Parse(args[0])
			if err != nil {
				return err
			}

			stack, err := root.build(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer stack.Close()

			results, err := stack.Blossom.DeleteEverywhere(cmd.Context(), d)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
					fmt.Fprintf(out, "%s: %s\n", r.Server.Host(), r.Error)
					continue
				}
				fmt.Fprintf(out, "%s: deleted\n", r.Server.Host())
			}

			if stack.History != nil {
				n, err := stack.History.DeleteByDigest(cmd.Context(), d.String())
				if err != nil {
					return err
				}
				if n > 0 {
					fmt.Fprintf(out, "history: removed %d record(s)\n", n)
				}
			}

			if failed == len(results) {
				return fmt.Errorf("no server deleted %s", d.Short())
			}
			return nil
		},
	}
}
