package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// decrypt <session> <message>: prints the plaintext.
func decryptCmd(e *env) *cobra.Command {
	var ad string

	cmd := &cobra.Command{
		Use:   "decrypt <session> <message>",
		Short: "Decrypt a base64 message within a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := decodeMessage(args[1])
			if err != nil {
				return err
			}
			s, err := e.loadSession(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			pt, err := s.RatchetDecrypt(m, []byte(ad))
			if err != nil {
				e.log.Warningf("Failed to decrypt message %d of session %s: %v", m.Header.N, args[0], err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pt))
			return nil
		},
	}
	cmd.Flags().StringVar(&ad, "ad", "", "associated data the message was encrypted with")
	return cmd
}
