package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	doubleratchet "github.com/stalker-loki/heraldratchet"
)

func initCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a session",
	}
	cmd.AddCommand(initAliceCmd(e), initBobCmd(e))
	return cmd
}

// init alice <session>: the party that knows the peer's ratchet public key.
func initAliceCmd(e *env) *cobra.Command {
	var shared, their, initial string

	cmd := &cobra.Command{
		Use:   "alice <session>",
		Short: "Create the session of the party sending the first message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sk, err := parseKey("shared", shared)
			if err != nil {
				return err
			}
			theirPub, err := parseKey("their", their)
			if err != nil {
				return err
			}
			initialRecv, err := parseOptionalKey("initial", initial)
			if err != nil {
				return err
			}

			s, err := doubleratchet.NewAliceSession([]byte(args[0]), sk, theirPub, initialRecv, e.keys, e.sessions, e.ratchetOptions()...)
			if err != nil {
				return err
			}
			defer s.Close()
			e.log.Noticef("Created session %s", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "public: %s\n", s.PublicKey())
			return nil
		},
	}
	cmd.Flags().StringVar(&shared, "shared", "", "hex shared secret agreed with the peer")
	cmd.Flags().StringVar(&their, "their", "", "hex ratchet public key of the peer")
	cmd.Flags().StringVar(&initial, "initial", "", "hex initial receiving chain key (symmetric mode)")
	_ = cmd.MarkFlagRequired("shared")
	_ = cmd.MarkFlagRequired("their")
	return cmd
}

// init bob <session>: the party whose key pair the peer used.
func initBobCmd(e *env) *cobra.Command {
	var shared, private, their, initial string

	cmd := &cobra.Command{
		Use:   "bob <session>",
		Short: "Create the session of the party receiving the first message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sk, err := parseKey("shared", shared)
			if err != nil {
				return err
			}
			priv, err := parseKey("private", private)
			if err != nil {
				return err
			}
			theirPub, err := parseKey("their", their)
			if err != nil {
				return err
			}
			initialSend, err := parseOptionalKey("initial", initial)
			if err != nil {
				return err
			}
			ours, err := keyPairFromPrivate(priv)
			if err != nil {
				return err
			}

			s, err := doubleratchet.NewBobSession([]byte(args[0]), sk, ours, theirPub, initialSend, e.keys, e.sessions, e.ratchetOptions()...)
			if err != nil {
				return err
			}
			defer s.Close()
			e.log.Noticef("Created session %s", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "public: %s\n", s.PublicKey())
			return nil
		},
	}
	cmd.Flags().StringVar(&shared, "shared", "", "hex shared secret agreed with the peer")
	cmd.Flags().StringVar(&private, "private", "", "hex ratchet private key from keygen")
	cmd.Flags().StringVar(&their, "their", "", "hex ratchet public key of the peer")
	cmd.Flags().StringVar(&initial, "initial", "", "hex initial sending chain key (symmetric mode)")
	_ = cmd.MarkFlagRequired("shared")
	_ = cmd.MarkFlagRequired("private")
	_ = cmd.MarkFlagRequired("their")
	return cmd
}
