package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/keypair"
	"github.com/georgepadayatti/docsign/keystore"
)

var (
	certIdentity   string
	certPassphrase string
	certName       string
	certOrg        string
	certEmail      string
	certDays       int
	certOutFile    string
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Manage the certificate registry",
	Long:  "Create, list, export, import and delete self-signed certificates.",
}

var certCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a self-signed certificate",
	Long: `Create a self-signed certificate for a key in the key store and add
it to the registry. The certificate is immutable once created.

Example:
  docsign cert create --identity alice --name "Alice Example" --email alice@example.com --days 365`,
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := resolvePassphrase(certPassphrase, "Key store passphrase")
		if err != nil {
			return err
		}
		keys, err := keystore.Open(cfg.KeyStoreDir)
		if err != nil {
			return err
		}
		key, err := keys.Get(certIdentity, []byte(passphrase))
		if err != nil {
			return err
		}

		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		cert, err := registry.Create(
			certstore.SubjectAttributes{Name: certName, Organization: certOrg, Email: certEmail},
			certstore.Window(time.Now(), time.Duration(certDays)*24*time.Hour),
			&keypair.KeyPair{Private: key, Public: key.Public()},
		)
		if err != nil {
			return err
		}

		fmt.Printf("Created certificate %s for %q\n", cert.Serial(), certName)
		fmt.Printf("Fingerprint: %s\n", cert.Fingerprint())
		return nil
	},
}

var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry certificates in creation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		certs := registry.List()
		if len(certs) == 0 {
			fmt.Println("No certificates in registry")
			return nil
		}
		for _, cert := range certs {
			subject := cert.Subject()
			validity := cert.Validity()
			fmt.Printf("%s  %-24s  %s .. %s\n",
				cert.Serial(), subject.Name,
				validity.NotBefore.Format("2006-01-02"),
				validity.NotAfter.Format("2006-01-02"))
		}
		return nil
	},
}

var certExportCmd = &cobra.Command{
	Use:   "export <serial>",
	Short: "Export a certificate as PEM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		if certOutFile != "" {
			if err := registry.Export(args[0], certOutFile); err != nil {
				return err
			}
			fmt.Printf("Exported certificate %s to %s\n", args[0], certOutFile)
			return nil
		}
		cert, err := registry.Load(args[0])
		if err != nil {
			return err
		}
		os.Stdout.Write(cert.MarshalPEM())
		return nil
	},
}

var certImportCmd = &cobra.Command{
	Use:   "import <pem-file>",
	Short: "Import a peer certificate into the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read certificate file: %w", err)
		}
		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		cert, err := registry.Import(data)
		if err != nil {
			return err
		}
		fmt.Printf("Imported certificate %s (%s)\n", cert.Serial(), cert.Subject().Name)
		return nil
	},
}

var certDeleteCmd = &cobra.Command{
	Use:   "delete <serial>",
	Short: "Remove a certificate from the registry",
	Long: `Remove a certificate from the registry. Signatures already embedded
in documents are unaffected; they carry their own certificate copy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		if err := registry.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted certificate %s\n", args[0])
		return nil
	},
}

func init() {
	certCreateCmd.Flags().StringVar(&certIdentity, "identity", "", "key store identity (required)")
	certCreateCmd.Flags().StringVar(&certPassphrase, "passphrase", "", "key store passphrase (prompted when empty)")
	certCreateCmd.Flags().StringVar(&certName, "name", "", "subject common name (required)")
	certCreateCmd.Flags().StringVar(&certOrg, "org", "", "subject organization")
	certCreateCmd.Flags().StringVar(&certEmail, "email", "", "subject email address")
	certCreateCmd.Flags().IntVar(&certDays, "days", 365, "validity period in days")
	certCreateCmd.MarkFlagRequired("identity")
	certCreateCmd.MarkFlagRequired("name")

	certExportCmd.Flags().StringVar(&certOutFile, "out", "", "output file (default stdout)")

	certCmd.AddCommand(certCreateCmd)
	certCmd.AddCommand(certListCmd)
	certCmd.AddCommand(certExportCmd)
	certCmd.AddCommand(certImportCmd)
	certCmd.AddCommand(certDeleteCmd)
}
