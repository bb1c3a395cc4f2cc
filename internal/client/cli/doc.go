// Package cli provides the interactive FinKeeper command-line client.
//
// It wires configuration, local storage, the sync client, the network
// monitor and the sync coordinator, and runs a line-oriented REPL over the
// ledger service. Mutations are applied locally at once; the coordinator
// pushes them in the background whenever the server is reachable.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL and the command handlers for details.
package cli
