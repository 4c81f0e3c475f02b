package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/docsign/keypair"
	"github.com/georgepadayatti/docsign/keystore"
)

var (
	keygenAlgorithm  string
	keygenBits       int
	keygenPassphrase string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen <identity>",
	Short: "Generate a key pair and store it encrypted",
	Long: `Generate a signing key pair and store the private key in the
encrypted key store under the given identity. The key never leaves the
store unencrypted.

Examples:
  docsign keygen alice
  docsign keygen alice --algorithm ecdsa --bits 384
  docsign keygen alice --algorithm ed25519`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := args[0]

		algorithm, err := keypair.ParseAlgorithm(keygenAlgorithm)
		if err != nil {
			return err
		}
		bits := keygenBits
		if bits == 0 {
			bits = keypair.DefaultSizeBits(algorithm)
		}

		pair, err := keypair.Generate(algorithm, bits)
		if err != nil {
			return err
		}

		passphrase, err := resolvePassphrase(keygenPassphrase, "Key store passphrase")
		if err != nil {
			return err
		}

		store, err := keystore.Open(cfg.KeyStoreDir)
		if err != nil {
			return err
		}
		if err := store.Put(identity, pair.Private, []byte(passphrase)); err != nil {
			return err
		}

		info := keypair.KeyInfo(pair.Private)
		logger.Info().
			Str("identity", identity).
			Str("algorithm", string(info.Algorithm)).
			Msg("generated key pair")
		fmt.Printf("Generated %s key for identity %q\n", info.Algorithm, identity)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenAlgorithm, "algorithm", "rsa", "key algorithm: rsa, ecdsa, ed25519")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 0, "key size in bits (0 for the algorithm default)")
	keygenCmd.Flags().StringVar(&keygenPassphrase, "passphrase", "", "key store passphrase (prompted when empty)")
}
