package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agora-commons/agora/identity"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage agent keypairs",
}

var generateOut string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new agent keypair",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := identity.GenerateKeypair()
		if err != nil {
			return err
		}
		if err := kp.Save(generateOut); err != nil {
			return fmt.Errorf("write keypair: %w", err)
		}
		cmd.Printf("fingerprint: %s\nkeypair written to %s\n", kp.Fingerprint(), generateOut)
		return nil
	},
}

var fingerprintKey string

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the fingerprint of a keypair file",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := identity.LoadKeypair(fingerprintKey)
		if err != nil {
			return err
		}
		cmd.Println(kp.Fingerprint())
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateOut, "out", "agent.json", "output path for the keypair")
	fingerprintCmd.Flags().StringVar(&fingerprintKey, "key", "agent.json", "keypair file")
	identityCmd.AddCommand(generateCmd, fingerprintCmd)
	rootCmd.AddCommand(identityCmd)
}
