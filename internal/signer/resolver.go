package signer

import (
	"context"
	"log/slog"
	"os"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/web3"
	"OpenMCP-EVM/pkg/logger"
)

// DefaultCredentialEnv names the environment variable holding the default signer key.
const DefaultCredentialEnv = "PRIVATE_KEY"

// ErrCredentialNotSet is returned when the default signer has no configured key.
var ErrCredentialNotSet = xerrors.New(xerrors.CodeCredentialNotSet, "PRIVATE_KEY environment variable is not set.")

// Connections hands out shared read connections per network key.
type Connections interface {
	Connection(ctx context.Context, key string) (web3.Client, error)
}

// WalletLookup returns the raw stored credential of a named wallet, failing
// with WALLET_NOT_FOUND when no wallet has that name.
type WalletLookup interface {
	CredentialByName(ctx context.Context, name string) (string, error)
}

type identityKind int

const (
	identityDefault identityKind = iota
	identityWallet
	identityKey
)

// Identity selects where the signing key comes from.
type Identity struct {
	kind       identityKind
	wallet     string
	credential Credential
}

// Wallet signs with the stored wallet of the given name.
func Wallet(name string) Identity {
	return Identity{kind: identityWallet, wallet: name}
}

// Key signs with an explicit credential.
func Key(c Credential) Identity {
	return Identity{kind: identityKey, credential: c}
}

// Default signs with the credential from the environment.
func Default() Identity {
	return Identity{kind: identityDefault}
}

// String describes the identity without exposing key material.
func (i Identity) String() string {
	switch i.kind {
	case identityWallet:
		return "wallet:" + i.wallet
	case identityKey:
		return "key"
	default:
		return "default"
	}
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithCredentialEnv changes the environment variable read by the default signer.
func WithCredentialEnv(name string) ResolverOption {
	return func(r *Resolver) {
		if strings.TrimSpace(name) != "" {
			r.envName = strings.TrimSpace(name)
		}
	}
}

// WithEnvLookup replaces os.LookupEnv.
func WithEnvLookup(lookup func(string) (string, bool)) ResolverOption {
	return func(r *Resolver) {
		if lookup != nil {
			r.lookupEnv = lookup
		}
	}
}

// Resolver turns an Identity plus a network key into a ready Context.
// Contexts are built per call and never cached.
type Resolver struct {
	conns     Connections
	wallets   WalletLookup
	envName   string
	lookupEnv func(string) (string, bool)
	log       *slog.Logger
}

// NewResolver wires a resolver to the connection cache and wallet store.
// wallets may be nil when stored-wallet signing is not offered.
func NewResolver(conns Connections, wallets WalletLookup, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		conns:     conns,
		wallets:   wallets,
		envName:   DefaultCredentialEnv,
		lookupEnv: os.LookupEnv,
		log:       logger.Named("signer"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve dispatches on the identity kind.
func (r *Resolver) Resolve(ctx context.Context, id Identity, network string) (*Context, error) {
	switch id.kind {
	case identityWallet:
		return r.FromStoredWallet(ctx, id.wallet, network)
	case identityKey:
		return r.FromCredential(ctx, id.credential, network)
	default:
		return r.FromDefault(ctx, network)
	}
}

// FromCredential binds an explicit credential to the network's connection.
func (r *Resolver) FromCredential(ctx context.Context, c Credential, network string) (*Context, error) {
	key, err := c.privateKey()
	if err != nil {
		return nil, err
	}
	client, err := r.conns.Connection(ctx, network)
	if err != nil {
		return nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return newContext(client, key, chainID), nil
}

// FromStoredWallet loads the named wallet's credential and validates it the
// same way as an explicit one.
func (r *Resolver) FromStoredWallet(ctx context.Context, name string, network string) (*Context, error) {
	if r.wallets == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "wallet store is not configured")
	}
	raw, err := r.wallets.CredentialByName(ctx, name)
	if err != nil {
		return nil, err
	}
	credential, err := ParseCredential(raw)
	if err != nil {
		return nil, err
	}
	r.log.Debug("resolved stored wallet", slog.String("wallet", name), slog.String("network", network))
	return r.FromCredential(ctx, credential, network)
}

// FromDefault uses the credential held in the configured environment variable.
func (r *Resolver) FromDefault(ctx context.Context, network string) (*Context, error) {
	raw, ok := r.lookupEnv(r.envName)
	if !ok || strings.TrimSpace(raw) == "" {
		if r.envName == DefaultCredentialEnv {
			return nil, ErrCredentialNotSet
		}
		return nil, xerrors.New(xerrors.CodeCredentialNotSet, r.envName+" environment variable is not set.")
	}
	credential, err := ParseCredential(raw)
	if err != nil {
		return nil, err
	}
	return r.FromCredential(ctx, credential, network)
}
