package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	doubleratchet "github.com/stalker-loki/heraldratchet"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an X25519 ratchet key pair",
		Args:  cobra.NoArgs,
		// keygen needs neither the configuration nor the storage.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := doubleratchet.DefaultCrypto{}.GenerateDH()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "private: %s\npublic: %s\n", pair.PrivateKey(), pair.PublicKey())
			return nil
		},
	}
}
