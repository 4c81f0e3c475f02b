// Package cli implements the docsign command-line interface.
package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/georgepadayatti/docsign/config"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configFile string
	cfg        *config.Config
	logger     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docsign",
	Short: "Self-contained document signing and verification",
	Long: `docsign signs documents with self-signed certificates and verifies
embedded signatures. Private keys live in an encrypted key store;
certificates live in a shareable registry. Trust is established by
pinning certificates after first contact.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configFile != "" {
			cfg, err = config.Load(configFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Default()
		}
		logger, err = newLogger(cfg.Logging)
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default built-in)")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docsign version %s\n", Version)
		fmt.Printf("Build time: %s\n", BuildTime)
	},
}

// newLogger builds the zerolog logger from config.
func newLogger(lc config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	var logger zerolog.Logger
	if lc.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(pass), nil
}

// resolvePassphrase returns the flag value or prompts when empty.
func resolvePassphrase(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return promptPassphrase(prompt)
}
