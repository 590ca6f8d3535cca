package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidCredential is returned for keys that are not 32 bytes of hex.
var ErrInvalidCredential = xerrors.New(xerrors.CodeInvalidCredential, "Invalid private key format. Must be a 64-character hexadecimal string.")

// Credential is a validated secp256k1 private key. Every printable or
// serializable form of it is redacted.
type Credential struct {
	hex string
}

// ParseCredential accepts exactly 64 hex characters with an optional 0x prefix.
func ParseCredential(raw string) (Credential, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(trimmed) != 64 {
		return Credential{}, ErrInvalidCredential
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return Credential{}, ErrInvalidCredential
	}
	return Credential{hex: strings.ToLower(trimmed)}, nil
}

// GenerateCredential creates a fresh random key.
func GenerateCredential() (Credential, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Credential{}, fmt.Errorf("生成私钥失败: %w", err)
	}
	return Credential{hex: hex.EncodeToString(crypto.FromECDSA(key))}, nil
}

// IsZero reports whether the credential is unset.
func (c Credential) IsZero() bool {
	return c.hex == ""
}

// Expose returns the 0x-prefixed key. Only wallet persistence calls it.
func (c Credential) Expose() string {
	if c.hex == "" {
		return ""
	}
	return "0x" + c.hex
}

func (c Credential) privateKey() (*ecdsa.PrivateKey, error) {
	if c.hex == "" {
		return nil, ErrInvalidCredential
	}
	key, err := crypto.HexToECDSA(c.hex)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidCredential, err, ErrInvalidCredential.Message())
	}
	return key, nil
}

// AddressOf derives the account address controlled by the credential.
func AddressOf(c Credential) (common.Address, error) {
	key, err := c.privateKey()
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (Credential) String() string   { return logger.Redacted }
func (Credential) GoString() string { return logger.Redacted }

// Format covers %v, %+v, %#v, %s, %x and every other verb.
func (Credential) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, logger.Redacted)
}

func (Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + logger.Redacted + `"`), nil
}

func (Credential) MarshalText() ([]byte, error) {
	return []byte(logger.Redacted), nil
}

func (Credential) LogValue() slog.Value {
	return slog.StringValue(logger.Redacted)
}
