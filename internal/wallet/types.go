// Package wallet stores named signing accounts. Credentials are persisted in
// clear by every backend; access to the store is the trust boundary.
package wallet

import (
	"context"
	"log/slog"
	"time"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrWalletNotFound is returned by stores when no wallet matches.
	ErrWalletNotFound = xerrors.New(xerrors.CodeWalletNotFound, "wallet not found")
	// ErrDuplicateWallet is returned when the name or address is already taken.
	ErrDuplicateWallet = xerrors.New(xerrors.CodeConflict, "wallet already exists")
)

// Wallet is a stored account including its key.
type Wallet struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Credential string    `json:"privateKey"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Summary is the key-free view of a wallet handed to callers.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary drops the credential and renders the address with its checksum.
func (w Wallet) Summary() Summary {
	return Summary{
		ID:        w.ID,
		Name:      w.Name,
		Address:   common.HexToAddress(w.Address).Hex(),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

// LogValue keeps the credential out of structured logs.
func (w Wallet) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", w.ID),
		slog.String("name", w.Name),
		slog.String("address", w.Address),
		slog.String("credential", logger.Redacted),
	)
}

// Store persists wallets. Addresses are stored and matched lowercased.
// Create fails with ErrDuplicateWallet and lookups with ErrWalletNotFound.
type Store interface {
	Create(ctx context.Context, w Wallet) error
	ByName(ctx context.Context, name string) (Wallet, error)
	ByAddress(ctx context.Context, address string) (Wallet, error)
	// List returns wallets newest first.
	List(ctx context.Context) ([]Wallet, error)
}
