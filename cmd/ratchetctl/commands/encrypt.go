package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// encrypt <session> <message>: prints the base64 message.
func encryptCmd(e *env) *cobra.Command {
	var ad string

	cmd := &cobra.Command{
		Use:   "encrypt <session> <message>",
		Short: "Encrypt a message within a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.loadSession(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.RatchetEncrypt([]byte(args[1]), []byte(ad))
			if err != nil {
				return err
			}
			out, err := encodeMessage(m)
			if err != nil {
				return err
			}
			e.log.Debugf("Encrypted message %d of session %s", m.Header.N, args[0])
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&ad, "ad", "", "associated data authenticated with the message")
	return cmd
}
