package main

import (
	"encoding/json"
	"fmt"

	"mediadrop/internal/authz"

	"github.com/spf13/cobra"
)

// keyPair is the keygen output.
type keyPair struct {
	NSec   string `json:"nsec"`
	NPub   string `json:"npub"`
	PubKey string `json:"pubkey"`
}

func newKeygenCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a fresh signing key",
		Long: `Generate a fresh signing key. Put the nsec in MEDIADROP_SECRET_KEY or the
config file's secret_key to sign upload authorizations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := authz.GenerateKeySigner()
			if err != nil {
				return err
			}
			nsec, err := signer.NSec()
			if err != nil {
				return err
			}
			npub, err := signer.NPub()
			if err != nil {
				return err
			}
			kp := keyPair{NSec: nsec, NPub: npub, PubKey: signer.PublicKey()}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(kp)
			}
			fmt.Fprintf(out, "nsec:   %s\n", kp.NSec)
			fmt.Fprintf(out, "npub:   %s\n", kp.NPub)
			fmt.Fprintf(out, "pubkey: %s\n", kp.PubKey)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
