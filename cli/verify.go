package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/docsign/verify"
)

var (
	verifyJSON bool
	verifyAt   string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify the signatures embedded in a document",
	Long: `Verify every signature embedded in a document. Integrity and trust
are reported separately for each signature; certificates pinned via
'docsign pin' report SELF_SIGNED_PINNED.

Examples:
  docsign verify report-signed.bin
  docsign verify --json report-signed.bin
  docsign verify --at 2026-01-01T00:00:00Z report-signed.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}

		opts := verify.DefaultOptions()
		if verifyAt != "" {
			at, err := time.Parse(time.RFC3339, verifyAt)
			if err != nil {
				return fmt.Errorf("invalid --at time: %w", err)
			}
			opts.ReferenceTime = at
		}
		if cfg.PinnedFile != "" {
			pinned, err := verify.LoadPinnedSet(cfg.PinnedFile)
			if err == nil {
				opts.Pinned = pinned
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}

		results, err := verify.New(opts).Verify(doc)
		if err != nil {
			return err
		}

		if verifyJSON {
			return printResultsJSON(results)
		}
		printResults(args[0], results)

		for _, r := range results {
			if r.Integrity != verify.IntegrityIntact {
				os.Exit(1)
			}
		}
		return nil
	},
}

// resultView is the JSON projection of a verification result.
type resultView struct {
	Index       int    `json:"index"`
	Integrity   string `json:"integrity"`
	Trust       string `json:"trust"`
	Signer      string `json:"signer,omitempty"`
	Serial      string `json:"serial,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	SignedAt    string `json:"signed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

func printResultsJSON(results []*verify.Result) error {
	views := make([]resultView, 0, len(results))
	for i, r := range results {
		v := resultView{
			Index:     i,
			Integrity: r.Integrity.String(),
			Trust:     r.Trust.String(),
		}
		if r.Record != nil && r.Record.Certificate != nil {
			v.Signer = r.Record.Certificate.Subject().Name
			v.Serial = r.Record.Certificate.Serial()
			v.Fingerprint = r.Record.Certificate.Fingerprint()
		}
		if !r.SignedAt.IsZero() {
			v.SignedAt = r.SignedAt.Format(time.RFC3339)
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		views = append(views, v)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func printResults(filename string, results []*verify.Result) {
	fmt.Printf("%s: %d signature(s)\n\n", filename, len(results))
	for i, r := range results {
		fmt.Printf("Signature %d: %s / %s\n", i+1, r.Integrity, r.Trust)
		if r.Record != nil && r.Record.Certificate != nil {
			cert := r.Record.Certificate
			fmt.Printf("  Signer:      %s\n", cert.Subject().Name)
			fmt.Printf("  Serial:      %s\n", cert.Serial())
			fmt.Printf("  Fingerprint: %s\n", cert.Fingerprint())
		}
		if !r.SignedAt.IsZero() {
			fmt.Printf("  Signed at:   %s\n", r.SignedAt.Format(time.RFC3339))
		}
		if r.Err != nil {
			fmt.Printf("  Detail:      %v\n", r.Err)
		}
		fmt.Println()
	}
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "output results as JSON")
	verifyCmd.Flags().StringVar(&verifyAt, "at", "", "reference time (RFC 3339) for validity evaluation")
}
