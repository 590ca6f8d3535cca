// Package transfer moves native currency, fungible tokens and NFTs. Every
// variant follows the same pipeline: resolve names, resolve the signer,
// describe and scale the amount where needed, build one call and submit it.
package transfer

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultNetwork is used when a request leaves the network empty.
const DefaultNetwork = "bsc"

// SignerSource resolves an identity into a signing context.
type SignerSource interface {
	Resolve(ctx context.Context, id signer.Identity, network string) (*signer.Context, error)
}

// NameResolver maps a name or hex address to an address.
type NameResolver interface {
	Resolve(ctx context.Context, nameOrAddress string, network string) (common.Address, error)
}

// TokenDescriber reads token decimals and symbol.
type TokenDescriber interface {
	Describe(ctx context.Context, token common.Address, network string) (units.TokenDescriptor, error)
}

// Option customises a Service.
type Option func(*Service)

// WithDefaultNetwork overrides DefaultNetwork.
func WithDefaultNetwork(network string) Option {
	return func(s *Service) {
		if strings.TrimSpace(network) != "" {
			s.defaultNetwork = strings.TrimSpace(network)
		}
	}
}

// WithRecorder publishes an event for every broadcast.
func WithRecorder(recorder *events.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// Service is the transfer pipeline.
type Service struct {
	signers        SignerSource
	names          NameResolver
	tokens         TokenDescriber
	recorder       *events.Recorder
	defaultNetwork string
	log            *slog.Logger
}

// NewService wires the pipeline collaborators.
func NewService(signers SignerSource, names NameResolver, tokens TokenDescriber, opts ...Option) *Service {
	s := &Service{
		signers:        signers,
		names:          names,
		tokens:         tokens,
		defaultNetwork: DefaultNetwork,
		log:            logger.Named("transfer"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NativeRequest sends native currency.
type NativeRequest struct {
	Signer  signer.Identity
	To      string
	Amount  string
	Network string
}

// NativeResult describes a broadcast native transfer.
type NativeResult struct {
	TxHash  common.Hash
	Network string
	From    common.Address
	To      common.Address
	Amount  units.Amount
}

// TokenRequest sends an ERC20 amount in human units.
type TokenRequest struct {
	Signer  signer.Identity
	Token   string
	To      string
	Amount  string
	Network string
}

// ApproveRequest grants a spender an ERC20 allowance in human units.
type ApproveRequest struct {
	Signer  signer.Identity
	Token   string
	Spender string
	Amount  string
	Network string
}

// TokenResult describes a broadcast ERC20 transfer or approval.
type TokenResult struct {
	TxHash  common.Hash
	Network string
	From    common.Address
	// To is the recipient, or the spender for approvals.
	To     common.Address
	Token  units.TokenDescriptor
	Amount units.Amount
}

// NFTRequest moves one ERC721 token.
type NFTRequest struct {
	Signer  signer.Identity
	Token   string
	To      string
	TokenID string
	Network string
}

// Metadata is the collection name and symbol read after an NFT transfer.
// Degraded is set when the read failed and placeholders were used.
type Metadata struct {
	Name     string
	Symbol   string
	Degraded bool
}

// NFTResult describes a broadcast ERC721 transfer.
type NFTResult struct {
	TxHash   common.Hash
	Network  string
	From     common.Address
	To       common.Address
	Token    common.Address
	TokenID  *big.Int
	Metadata Metadata
}

// MultiTokenRequest moves an integer amount of one ERC1155 id.
type MultiTokenRequest struct {
	Signer  signer.Identity
	Token   string
	To      string
	TokenID string
	Amount  string
	Network string
}

// MultiTokenResult describes a broadcast ERC1155 transfer.
type MultiTokenResult struct {
	TxHash  common.Hash
	Network string
	From    common.Address
	To      common.Address
	Token   common.Address
	TokenID *big.Int
	Amount  *big.Int
}

func (s *Service) network(requested string) string {
	if strings.TrimSpace(requested) == "" {
		return s.defaultNetwork
	}
	return strings.TrimSpace(requested)
}

func (s *Service) record(ctx context.Context, kind string, sc *signer.Context, to common.Address, hash common.Hash, meta map[string]string) {
	s.log.Info("transaction broadcast",
		slog.String("kind", kind),
		slog.String("network", sc.Network().Name),
		slog.String("hash", hash.Hex()),
	)
	s.recorder.Record(ctx, events.Event{
		Kind:     kind,
		Network:  sc.Network().Name,
		From:     sc.Address().Hex(),
		To:       to.Hex(),
		Hash:     hash.Hex(),
		Metadata: meta,
	})
}
