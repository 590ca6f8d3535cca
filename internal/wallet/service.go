package wallet

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/pkg/logger"

	"github.com/google/uuid"
)

// Option customises a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the wallet management API used by tools and by stored-wallet signing.
type Service struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

var _ signer.WalletLookup = (*Service)(nil)

// NewService wraps a store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, log: logger.Named("wallet")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateWallet generates a fresh key and stores it under name.
func (s *Service) CreateWallet(ctx context.Context, name string) (Summary, error) {
	credential, err := signer.GenerateCredential()
	if err != nil {
		return Summary{}, err
	}
	return s.save(ctx, name, credential, "wallet_created")
}

// ImportWallet stores an existing key under name.
func (s *Service) ImportWallet(ctx context.Context, name, rawKey string) (Summary, error) {
	credential, err := signer.ParseCredential(rawKey)
	if err != nil {
		return Summary{}, err
	}
	return s.save(ctx, name, credential, "wallet_imported")
}

func (s *Service) save(ctx context.Context, name string, credential signer.Credential, event string) (Summary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Summary{}, xerrors.New(xerrors.CodeInvalidArgument, "wallet name is required")
	}
	address, err := signer.AddressOf(credential)
	if err != nil {
		return Summary{}, err
	}
	now := s.now().UTC()
	w := Wallet{
		ID:         uuid.NewString(),
		Name:       name,
		Address:    strings.ToLower(address.Hex()),
		Credential: credential.Expose(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, w); err != nil {
		if errors.Is(err, ErrDuplicateWallet) {
			return Summary{}, xerrors.Wrap(xerrors.CodeConflict, err, "a wallet with this name or address already exists",
				xerrors.WithMetadata("name", name), xerrors.WithMetadata("address", w.Address))
		}
		return Summary{}, err
	}
	logger.Audit().Info(event, "wallet", w.Name, "address", w.Address, "wallet_id", w.ID)
	return w.Summary(), nil
}

// WalletByName returns the stored wallet, key included.
func (s *Service) WalletByName(ctx context.Context, name string) (Wallet, error) {
	w, err := s.store.ByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return Wallet{}, notFound(err, name)
	}
	return w, nil
}

// WalletByAddress matches the lowercased address.
func (s *Service) WalletByAddress(ctx context.Context, address string) (Wallet, error) {
	w, err := s.store.ByAddress(ctx, strings.ToLower(strings.TrimSpace(address)))
	if err != nil {
		return Wallet{}, notFound(err, address)
	}
	return w, nil
}

// ListWallets returns summaries ordered newest first.
func (s *Service) ListWallets(ctx context.Context) ([]Summary, error) {
	wallets, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, w.Summary())
	}
	return out, nil
}

// CredentialByName implements signer.WalletLookup.
func (s *Service) CredentialByName(ctx context.Context, name string) (string, error) {
	w, err := s.WalletByName(ctx, name)
	if err != nil {
		return "", err
	}
	s.log.Debug("credential loaded", slog.String("wallet", w.Name))
	return w.Credential, nil
}

func notFound(err error, identifier string) error {
	if errors.Is(err, ErrWalletNotFound) {
		return xerrors.New(xerrors.CodeWalletNotFound, "Wallet not found: "+identifier, xerrors.WithMetadata("wallet", identifier))
	}
	return err
}
