// Package signer turns a stored wallet name, an explicit key or the
// environment-backed default key into a per-call signing context bound to a
// network connection. Keys are carried as redacting Credential values.
package signer
