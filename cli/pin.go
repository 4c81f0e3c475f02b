package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/docsign/verify"
)

var pinCmd = &cobra.Command{
	Use:   "pin <serial-or-fingerprint>",
	Short: "Pin a certificate as trusted",
	Long: `Add a certificate serial or public-key fingerprint to the pinned
list. Signatures by pinned certificates verify as SELF_SIGNED_PINNED
instead of SELF_SIGNED_UNKNOWN (trust on first use).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		if set, err := verify.LoadPinnedSet(cfg.PinnedFile); err == nil && set.Contains(id) {
			fmt.Printf("Already pinned: %s\n", id)
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(cfg.PinnedFile), 0o700); err != nil {
			return fmt.Errorf("failed to create pinned file directory: %w", err)
		}
		f, err := os.OpenFile(cfg.PinnedFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open pinned file: %w", err)
		}
		defer f.Close()
		if _, err := fmt.Fprintln(f, id); err != nil {
			return fmt.Errorf("failed to write pinned file: %w", err)
		}

		fmt.Printf("Pinned: %s\n", id)
		return nil
	},
}
