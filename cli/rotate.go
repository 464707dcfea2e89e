package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/agora-commons/agora/auth"
	"github.com/agora-commons/agora/identity"
)

var (
	rotateKeyPath    string
	rotateNewKeyPath string
	rotateServer     string
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate an identity to a new key",
	Long: `rotate builds a delegation signed by the current key and submits it to
the server. The new keypair must already exist (agora identity generate);
on success the identity's fingerprint is unchanged and the old key is
retired.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := identity.LoadKeypair(rotateKeyPath)
		if err != nil {
			return fmt.Errorf("load current keypair: %w", err)
		}
		next, err := identity.LoadKeypair(rotateNewKeyPath)
		if err != nil {
			return fmt.Errorf("load new keypair: %w", err)
		}

		fp := current.Fingerprint()
		ts := time.Now().Unix()
		sig, err := auth.SignDelegation(current.PrivateKey, fp, next.PublicKey, ts)
		if err != nil {
			return err
		}

		body, err := json.Marshal(map[string]interface{}{
			"new_public_key":       identity.EncodePublicKey(next.PublicKey),
			"delegation_signature": base64.RawURLEncoding.EncodeToString(sig),
			"timestamp":            ts,
		})
		if err != nil {
			return err
		}

		url := rotateServer + "/v1/identities/" + fp + "/rotate"
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("rotate request: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("rotation rejected (%d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
		}

		cmd.Printf("rotated %s to new key %s\n", fp, identity.EncodePublicKey(next.PublicKey))
		return nil
	},
}

func init() {
	rotateCmd.Flags().StringVar(&rotateKeyPath, "key", "agent.json", "current keypair file")
	rotateCmd.Flags().StringVar(&rotateNewKeyPath, "new-key", "", "new keypair file")
	rotateCmd.Flags().StringVar(&rotateServer, "server", "http://localhost:8080", "server base URL")
	rotateCmd.MarkFlagRequired("new-key")
	rootCmd.AddCommand(rotateCmd)
}
