package transfer

import (
	"context"
	"math/big"

	"OpenMCP-EVM/internal/events"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/units"
	"OpenMCP-EVM/internal/web3/abis"

	"github.com/ethereum/go-ethereum/common"
)

// Native sends native currency scaled at a fixed 18 decimals.
func (s *Service) Native(ctx context.Context, req NativeRequest) (NativeResult, error) {
	network := s.network(req.Network)
	amount, err := units.NewAmount(req.Amount, units.NativeDecimals)
	if err != nil {
		return NativeResult{}, err
	}
	to, err := s.names.Resolve(ctx, req.To, network)
	if err != nil {
		return NativeResult{}, err
	}
	sc, err := s.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return NativeResult{}, err
	}
	hash, err := sc.Submit(ctx, signer.Call{To: to, Value: amount.Base})
	if err != nil {
		return NativeResult{}, err
	}
	s.record(ctx, events.KindNativeTransfer, sc, to, hash, map[string]string{"amount": amount.Human})
	return NativeResult{TxHash: hash, Network: sc.Network().Name, From: sc.Address(), To: to, Amount: amount}, nil
}

// ERC20 sends a token amount given in human units.
func (s *Service) ERC20(ctx context.Context, req TokenRequest) (TokenResult, error) {
	return s.tokenCall(ctx, "transfer", events.KindTokenTransfer, req.Signer, req.Token, req.To, req.Amount, req.Network)
}

// Approve sets the spender's allowance to an amount given in human units.
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (TokenResult, error) {
	return s.tokenCall(ctx, "approve", events.KindTokenApproval, req.Signer, req.Token, req.Spender, req.Amount, req.Network)
}

// tokenCall is shared by transfer and approve: both take (address, uint256)
// with the amount scaled by the token's on-chain decimals.
func (s *Service) tokenCall(ctx context.Context, method, kind string, id signer.Identity, tokenRef, counterpartyRef, human, requested string) (TokenResult, error) {
	network := s.network(requested)
	token, err := s.names.Resolve(ctx, tokenRef, network)
	if err != nil {
		return TokenResult{}, err
	}
	counterparty, err := s.names.Resolve(ctx, counterpartyRef, network)
	if err != nil {
		return TokenResult{}, err
	}
	sc, err := s.signers.Resolve(ctx, id, network)
	if err != nil {
		return TokenResult{}, err
	}
	desc, err := s.tokens.Describe(ctx, token, network)
	if err != nil {
		return TokenResult{}, err
	}
	amount, err := units.NewAmount(human, desc.Decimals)
	if err != nil {
		return TokenResult{}, err
	}
	data, err := abis.ERC20.Pack(method, counterparty, amount.Base)
	if err != nil {
		return TokenResult{}, err
	}
	hash, err := sc.Submit(ctx, signer.Call{To: token, Data: data})
	if err != nil {
		return TokenResult{}, err
	}
	s.record(ctx, kind, sc, counterparty, hash, map[string]string{
		"token":  token.Hex(),
		"symbol": desc.Symbol,
		"amount": amount.Human,
		"raw":    amount.Base.String(),
	})
	return TokenResult{
		TxHash:  hash,
		Network: sc.Network().Name,
		From:    sc.Address(),
		To:      counterparty,
		Token:   desc,
		Amount:  amount,
	}, nil
}

// ERC721 transfers one NFT with transferFrom and then reads the collection
// name and symbol on a best-effort basis.
func (s *Service) ERC721(ctx context.Context, req NFTRequest) (NFTResult, error) {
	network := s.network(req.Network)
	tokenID, err := units.ParseInteger(req.TokenID)
	if err != nil {
		return NFTResult{}, err
	}
	token, err := s.names.Resolve(ctx, req.Token, network)
	if err != nil {
		return NFTResult{}, err
	}
	to, err := s.names.Resolve(ctx, req.To, network)
	if err != nil {
		return NFTResult{}, err
	}
	sc, err := s.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return NFTResult{}, err
	}
	data, err := abis.ERC721.Pack("transferFrom", sc.Address(), to, tokenID)
	if err != nil {
		return NFTResult{}, err
	}
	hash, err := sc.Submit(ctx, signer.Call{To: token, Data: data})
	if err != nil {
		return NFTResult{}, err
	}
	meta := s.nftMetadata(ctx, sc, token)
	s.record(ctx, events.KindNFTTransfer, sc, to, hash, map[string]string{
		"token":    token.Hex(),
		"token_id": tokenID.String(),
		"symbol":   meta.Symbol,
	})
	return NFTResult{
		TxHash:   hash,
		Network:  sc.Network().Name,
		From:     sc.Address(),
		To:       to,
		Token:    token,
		TokenID:  tokenID,
		Metadata: meta,
	}, nil
}

func (s *Service) nftMetadata(ctx context.Context, sc *signer.Context, token common.Address) Metadata {
	name, nameErr := readString(ctx, sc, token, "name")
	symbol, symbolErr := readString(ctx, sc, token, "symbol")
	if nameErr != nil || symbolErr != nil {
		s.log.Debug("nft metadata unavailable", "token", token.Hex())
		return Metadata{Name: "Unknown", Symbol: "NFT", Degraded: true}
	}
	return Metadata{Name: name, Symbol: symbol}
}

func readString(ctx context.Context, sc *signer.Context, token common.Address, method string) (string, error) {
	data, err := abis.ERC721.Pack(method)
	if err != nil {
		return "", err
	}
	out, err := sc.Call(ctx, token, data)
	if err != nil {
		return "", err
	}
	values, err := abis.ERC721.Unpack(method, out)
	if err != nil {
		return "", err
	}
	value, _ := values[0].(string)
	return value, nil
}

// ERC1155 transfers an exact integer amount of one token id. The trailing
// data argument is always empty.
func (s *Service) ERC1155(ctx context.Context, req MultiTokenRequest) (MultiTokenResult, error) {
	network := s.network(req.Network)
	tokenID, err := units.ParseInteger(req.TokenID)
	if err != nil {
		return MultiTokenResult{}, err
	}
	amount, err := units.ParseInteger(req.Amount)
	if err != nil {
		return MultiTokenResult{}, err
	}
	token, err := s.names.Resolve(ctx, req.Token, network)
	if err != nil {
		return MultiTokenResult{}, err
	}
	to, err := s.names.Resolve(ctx, req.To, network)
	if err != nil {
		return MultiTokenResult{}, err
	}
	sc, err := s.signers.Resolve(ctx, req.Signer, network)
	if err != nil {
		return MultiTokenResult{}, err
	}
	data, err := abis.ERC1155.Pack("safeTransferFrom", sc.Address(), to, tokenID, amount, []byte{})
	if err != nil {
		return MultiTokenResult{}, err
	}
	hash, err := sc.Submit(ctx, signer.Call{To: token, Data: data})
	if err != nil {
		return MultiTokenResult{}, err
	}
	s.record(ctx, events.KindMultiTransfer, sc, to, hash, map[string]string{
		"token":    token.Hex(),
		"token_id": tokenID.String(),
		"amount":   amount.String(),
	})
	return MultiTokenResult{
		TxHash:  hash,
		Network: sc.Network().Name,
		From:    sc.Address(),
		To:      to,
		Token:   token,
		TokenID: tokenID,
		Amount:  new(big.Int).Set(amount),
	}, nil
}
