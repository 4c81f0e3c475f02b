package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/georgepadayatti/docsign/certstore"
	"github.com/georgepadayatti/docsign/digest"
	"github.com/georgepadayatti/docsign/document"
	"github.com/georgepadayatti/docsign/keystore"
	"github.com/georgepadayatti/docsign/sign"
	"github.com/georgepadayatti/docsign/stamp"
)

var (
	signIdentity   string
	signPassphrase string
	signSerial     string
	signDigestAlg  string
	signReason     string
	signLocation   string
	signPage       int
	signRect       string
	signImageFile  string
	signNoStamp    bool
)

var signCmd = &cobra.Command{
	Use:   "sign <input> <output>",
	Short: "Sign a document",
	Long: `Append a digital signature to a document. The output is an
append-only extension of the input; existing signatures remain valid
and are covered by the new one.

Examples:
  docsign sign --identity alice --serial 4f2a... report.bin report-signed.bin
  docsign sign --identity alice --serial 4f2a... --reason "Approved" --page 2 --rect 36,36,236,108 in.bin out.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, output := args[0], args[1]

		doc, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read input document: %w", err)
		}

		passphrase, err := resolvePassphrase(signPassphrase, "Key store passphrase")
		if err != nil {
			return err
		}
		keys, err := keystore.Open(cfg.KeyStoreDir)
		if err != nil {
			return err
		}
		key, err := keys.Get(signIdentity, []byte(passphrase))
		if err != nil {
			return err
		}

		registry, err := certstore.Open(cfg.RegistryDir, logger)
		if err != nil {
			return err
		}
		cert, err := registry.Load(signSerial)
		if err != nil {
			return err
		}

		placement, err := buildPlacement()
		if err != nil {
			return err
		}

		opts := sign.DefaultOptions()
		if signDigestAlg != "" {
			opts.DigestAlgorithm = digest.Algorithm(signDigestAlg)
		} else if cfg.DigestAlgorithm != "" {
			opts.DigestAlgorithm = digest.Algorithm(cfg.DigestAlgorithm)
		}
		if !signNoStamp {
			opts.Appearance, err = buildAppearanceProvider()
			if err != nil {
				return err
			}
		}

		signed, err := sign.New(opts).Sign(doc, cert, key, placement)
		if err != nil {
			return err
		}

		if err := os.WriteFile(output, signed, 0o644); err != nil {
			return fmt.Errorf("failed to write output document: %w", err)
		}

		logger.Info().
			Str("input", input).
			Str("output", output).
			Str("serial", cert.Serial()).
			Msg("signed document")
		fmt.Printf("Signed %s -> %s (%d bytes added)\n", input, output, len(signed)-len(doc))
		return nil
	},
}

// buildPlacement assembles the cosmetic placement from flags. Returns
// nil when no placement flag was given.
func buildPlacement() (*document.Placement, error) {
	if signReason == "" && signLocation == "" && signPage == 0 && signRect == "" {
		return nil, nil
	}
	placement := &document.Placement{
		Page:     signPage,
		Reason:   signReason,
		Location: signLocation,
	}
	if signRect != "" {
		rect, err := parseRectFlag(signRect)
		if err != nil {
			return nil, err
		}
		placement.Rect = rect
	}
	return placement, nil
}

// buildAppearanceProvider picks the image stamp when an image file was
// given, otherwise the default text stamp.
func buildAppearanceProvider() (sign.AppearanceProvider, error) {
	if signImageFile == "" {
		return stamp.NewProvider(nil), nil
	}
	img, err := os.ReadFile(signImageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read stamp image: %w", err)
	}
	return &stamp.ImageProvider{Stamp: &stamp.ImageStamp{Source: img}}, nil
}

// parseRectFlag parses "llx,lly,urx,ury".
func parseRectFlag(s string) (document.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return document.Rectangle{}, fmt.Errorf("invalid rect %q: want llx,lly,urx,ury", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return document.Rectangle{}, fmt.Errorf("invalid rect coordinate %q: %w", p, err)
		}
		vals[i] = v
	}
	return document.Rectangle{LLX: vals[0], LLY: vals[1], URX: vals[2], URY: vals[3]}, nil
}

func init() {
	signCmd.Flags().StringVar(&signIdentity, "identity", "", "key store identity (required)")
	signCmd.Flags().StringVar(&signPassphrase, "passphrase", "", "key store passphrase (prompted when empty)")
	signCmd.Flags().StringVar(&signSerial, "serial", "", "certificate serial (required)")
	signCmd.Flags().StringVar(&signDigestAlg, "digest", "", "digest algorithm: SHA-256, SHA-384, SHA-512")
	signCmd.Flags().StringVar(&signReason, "reason", "", "reason for signing")
	signCmd.Flags().StringVar(&signLocation, "location", "", "location of signing")
	signCmd.Flags().IntVar(&signPage, "page", 0, "page index for the visual stamp")
	signCmd.Flags().StringVar(&signRect, "rect", "", "stamp rectangle as llx,lly,urx,ury")
	signCmd.Flags().StringVar(&signImageFile, "image", "", "image file for a handwritten signature stamp")
	signCmd.Flags().BoolVar(&signNoStamp, "no-stamp", false, "skip the visual stamp")
	signCmd.MarkFlagRequired("identity")
	signCmd.MarkFlagRequired("serial")
}
