package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agora-commons/agora/auth"
	"github.com/agora-commons/agora/identity"
	"github.com/agora-commons/agora/pkg/wire"
)

var (
	signKeyPath     string
	signEmbedKey    bool
	signFingerprint bool
	signOut         string
)

var signCmd = &cobra.Command{
	Use:   "sign <payload.json>",
	Short: "Sign a JSON payload for submission",
	Long: `sign reads a JSON object, attaches the signer's credential field and a
signature over the canonical form, and prints the signed payload. With
--embed-key the full public key is embedded (first contact); with
--fingerprint only the fingerprint is attached (known identity).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if signEmbedKey == signFingerprint {
			return fmt.Errorf("exactly one of --embed-key or --fingerprint is required")
		}
		kp, err := identity.LoadKeypair(signKeyPath)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		payload, err := wire.DecodeObject(raw)
		if err != nil {
			return fmt.Errorf("payload must be a JSON object: %w", err)
		}

		if signEmbedKey {
			payload[auth.FieldPublicKey] = identity.EncodePublicKey(kp.PublicKey)
		} else {
			payload[auth.FieldFingerprint] = kp.Fingerprint()
		}

		signed, err := auth.SignPayload(kp.PrivateKey, payload)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(signed, "", "  ")
		if err != nil {
			return err
		}
		if signOut != "" {
			return os.WriteFile(signOut, out, 0644)
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signKeyPath, "key", "agent.json", "keypair file")
	signCmd.Flags().BoolVar(&signEmbedKey, "embed-key", false, "embed the public key for first contact")
	signCmd.Flags().BoolVar(&signFingerprint, "fingerprint", false, "attach only the fingerprint")
	signCmd.Flags().StringVar(&signOut, "out", "", "write the signed payload to a file instead of stdout")
	rootCmd.AddCommand(signCmd)
}
