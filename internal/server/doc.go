// Package server implements the HTTP server and HTTP handlers for
// Filegate. It wires together the HTTP routes, the credential store,
// the file registry and the blob storage, and provides lifecycle
// helpers used by tests and the production binary.
package server
