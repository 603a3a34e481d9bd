// Package cli provides the interactive gophauth command-line client.
//
// It wires configuration, the gRPC client and a REPL. Typical flow: register
// or log in, list accounts, refresh or drop the session.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
