// Command docsign signs documents and verifies embedded signatures.
//
// Usage:
//
//	docsign <command> [options] <args>
//
// Commands:
//
//	keygen   Generate a key pair into the encrypted key store
//	cert     Manage the certificate registry
//	key      Manage the encrypted key store
//	sign     Sign a document
//	verify   Verify the signatures embedded in a document
//	pin      Pin a certificate as trusted
//	version  Show version information
//
// Examples:
//
//	# Create a signing identity
//	docsign keygen alice
//	docsign cert create --identity alice --name "Alice Example"
//
//	# Sign and verify
//	docsign sign --identity alice --serial 4f2a... in.bin out.bin
//	docsign verify out.bin
package main

import (
	"github.com/georgepadayatti/docsign/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/docsign
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime
	cli.Execute()
}
