package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/keystore"
)

var (
	keyPassphrase    string
	keyExportPass    string
	keyExportSerial  string
	keyExportOutFile string
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the encrypted key store",
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete <identity>",
	Short: "Remove a private key from the key store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := keystore.Open(cfg.KeyStoreDir)
		if err != nil {
			return err
		}
		if err := keys.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted key %q\n", args[0])
		return nil
	},
}

var keyExportCmd = &cobra.Command{
	Use:   "export-p12 <identity>",
	Short: "Export a key and its certificate as PKCS#12",
	Long: `Bundle a private key and its registry certificate into a
password-protected PKCS#12 file for transfer to another machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := args[0]

		passphrase, err := resolvePassphrase(keyPassphrase, "Key store passphrase")
		if err != nil {
			return err
		}
		exportPass, err := resolvePassphrase(keyExportPass, "Export password")
		if err != nil {
			return err
		}

		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		cert, err := registry.Load(keyExportSerial)
		if err != nil {
			return err
		}

		keys, err := keystore.Open(cfg.KeyStoreDir)
		if err != nil {
			return err
		}
		pfx, err := keys.ExportPKCS12(identity, []byte(passphrase), cert, exportPass)
		if err != nil {
			return err
		}

		out := keyExportOutFile
		if out == "" {
			out = identity + ".p12"
		}
		if err := os.WriteFile(out, pfx, 0o600); err != nil {
			return fmt.Errorf("failed to write PKCS#12 file: %w", err)
		}
		fmt.Printf("Exported %q to %s\n", identity, out)
		return nil
	},
}

var keyImportCmd = &cobra.Command{
	Use:   "import-p12 <identity> <p12-file>",
	Short: "Import a PKCS#12 bundle into the key store and registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, filename := args[0], args[1]

		pfx, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read PKCS#12 file: %w", err)
		}

		importPass, err := resolvePassphrase(keyExportPass, "Import password")
		if err != nil {
			return err
		}
		passphrase, err := resolvePassphrase(keyPassphrase, "Key store passphrase")
		if err != nil {
			return err
		}

		keys, err := keystore.Open(cfg.KeyStoreDir)
		if err != nil {
			return err
		}
		cert, err := keys.ImportPKCS12(identity, pfx, importPass, []byte(passphrase))
		if err != nil {
			return err
		}

		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		if _, err := registry.Import(cert.MarshalPEM()); err != nil {
			return err
		}

		fmt.Printf("Imported key %q with certificate %s\n", identity, cert.Serial())
		return nil
	},
}

func init() {
	keyExportCmd.Flags().StringVar(&keyPassphrase, "passphrase", "", "key store passphrase (prompted when empty)")
	keyExportCmd.Flags().StringVar(&keyExportPass, "export-password", "", "PKCS#12 password (prompted when empty)")
	keyExportCmd.Flags().StringVar(&keyExportSerial, "serial", "", "certificate serial to bundle (required)")
	keyExportCmd.Flags().StringVar(&keyExportOutFile, "out", "", "output file (default <identity>.p12)")
	keyExportCmd.MarkFlagRequired("serial")

	keyImportCmd.Flags().StringVar(&keyPassphrase, "passphrase", "", "key store passphrase (prompted when empty)")
	keyImportCmd.Flags().StringVar(&keyExportPass, "export-password", "", "PKCS#12 password (prompted when empty)")

	keyCmd.AddCommand(keyDeleteCmd)
	keyCmd.AddCommand(keyExportCmd)
	keyCmd.AddCommand(keyImportCmd)
}
