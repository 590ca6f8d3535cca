package tools

import (
	"context"

	"OpenMCP-EVM/internal/transfer"
)

func transferTools(svc *transfer.Service) []Tool {
	native := func(ctx context.Context, args Args) (Payload, error) {
		to := args.String("to")
		if to == "" {
			to = args.String("toAddress")
		}
		res, err := svc.Native(ctx, transfer.NativeRequest{
			Signer:  identity(args),
			To:      to,
			Amount:  args.String("amount"),
			Network: args.String("network"),
		})
		if err != nil {
			return nil, err
		}
		return Payload{
			"transactionHash": res.TxHash.Hex(),
			"network":         res.Network,
			"fromWallet":      signerLabel(args),
			"from":            res.From.Hex(),
			"to":              res.To.Hex(),
			"amount":          res.Amount.Human,
			"amountWei":       res.Amount.Base.String(),
		}, nil
	}

	token := func(ctx context.Context, args Args) (Payload, error) {
		res, err := svc.ERC20(ctx, transfer.TokenRequest{
			Signer:  identity(args),
			Token:   args.String("tokenAddress"),
			To:      args.String("toAddress"),
			Amount:  args.String("amount"),
			Network: args.String("network"),
		})
		if err != nil {
			return nil, err
		}
		return tokenPayload(args, res, "to"), nil
	}

	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "transfer_eth",
				Description: "Transfer native tokens (ETH, BNB, etc.) to an address",
				Params: []Param{
					walletParam(false),
					{Name: "to", Type: TypeString, Required: true, Description: "The recipient address or ENS name (e.g., '0x1234...' or 'vitalik.eth')"},
					{Name: "amount", Type: TypeString, Required: true, Description: "Amount to send in native token, as a string (e.g., '0.1')"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error transferring native token",
			Handler:     native,
		},
		{
			Descriptor: Descriptor{
				Name:        "transfer_erc20",
				Description: "Transfer ERC20 tokens to another address",
				Params: []Param{
					walletParam(false),
					{Name: "tokenAddress", Type: TypeString, Required: true, Description: "The address of the ERC20 token contract"},
					{Name: "toAddress", Type: TypeString, Required: true, Description: "The recipient address or ENS name"},
					{Name: "amount", Type: TypeString, Required: true, Description: "The amount of tokens to send in token units (e.g., '10' for 10 tokens)"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error transferring ERC20 tokens",
			Handler:     token,
		},
		{
			Descriptor: Descriptor{
				Name:        "approve",
				Description: "Approve another address (like a DeFi protocol or exchange) to spend your ERC20 tokens",
				Params: []Param{
					walletParam(false),
					{Name: "tokenAddress", Type: TypeString, Required: true, Description: "The contract address of the ERC20 token to approve for spending"},
					{Name: "spenderAddress", Type: TypeString, Required: true, Description: "The contract address being approved to spend your tokens"},
					{Name: "amount", Type: TypeString, Required: true, Description: "The amount of tokens to approve in token units, not wei"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error approving token spending",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				res, err := svc.Approve(ctx, transfer.ApproveRequest{
					Signer:  identity(args),
					Token:   args.String("tokenAddress"),
					Spender: args.String("spenderAddress"),
					Amount:  args.String("amount"),
					Network: args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return tokenPayload(args, res, "spender"), nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "transfer_nft",
				Description: "Transfer an NFT (ERC721 token) from one address to another",
				Params: []Param{
					walletParam(false),
					{Name: "tokenAddress", Type: TypeString, Required: true, Description: "The contract address of the NFT collection"},
					{Name: "tokenId", Type: TypeString, Required: true, Description: "The ID of the specific NFT to transfer (e.g., '1234')"},
					{Name: "toAddress", Type: TypeString, Required: true, Description: "The recipient address or ENS name"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error transferring NFT",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				res, err := svc.ERC721(ctx, transfer.NFTRequest{
					Signer:  identity(args),
					Token:   args.String("tokenAddress"),
					To:      args.String("toAddress"),
					TokenID: args.String("tokenId"),
					Network: args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"transactionHash": res.TxHash.Hex(),
					"network":         res.Network,
					"fromWallet":      signerLabel(args),
					"from":            res.From.Hex(),
					"to":              res.To.Hex(),
					"collection": Payload{
						"address":  res.Token.Hex(),
						"name":     res.Metadata.Name,
						"symbol":   res.Metadata.Symbol,
						"degraded": res.Metadata.Degraded,
					},
					"tokenId": res.TokenID.String(),
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "transfer_erc1155",
				Description: "Transfer ERC1155 tokens to another address",
				Params: []Param{
					walletParam(false),
					{Name: "tokenAddress", Type: TypeString, Required: true, Description: "The contract address of the ERC1155 token"},
					{Name: "tokenId", Type: TypeString, Required: true, Description: "The ID of the token to transfer"},
					{Name: "amount", Type: TypeString, Required: true, Description: "The integer quantity of tokens to send"},
					{Name: "toAddress", Type: TypeString, Required: true, Description: "The recipient address or ENS name"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error transferring ERC1155 tokens",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				res, err := svc.ERC1155(ctx, transfer.MultiTokenRequest{
					Signer:  identity(args),
					Token:   args.String("tokenAddress"),
					To:      args.String("toAddress"),
					TokenID: args.String("tokenId"),
					Amount:  args.String("amount"),
					Network: args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"transactionHash": res.TxHash.Hex(),
					"network":         res.Network,
					"fromWallet":      signerLabel(args),
					"from":            res.From.Hex(),
					"to":              res.To.Hex(),
					"contract":        res.Token.Hex(),
					"tokenId":         res.TokenID.String(),
					"amount":          res.Amount.String(),
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "transfer_eth_from_wallet",
				Description: "Transfer ETH from a stored wallet to an address",
				Params: []Param{
					walletParam(true),
					{Name: "toAddress", Type: TypeString, Required: true, Description: "The recipient address or ENS name"},
					{Name: "amount", Type: TypeString, Required: true, Description: "Amount of ETH to send (e.g., '0.1')"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error transferring ETH",
			Handler:     native,
		},
		{
			Descriptor: Descriptor{
				Name:        "transfer_token_from_wallet",
				Description: "Transfer ERC20 tokens from a stored wallet to an address",
				Params: []Param{
					walletParam(true),
					{Name: "tokenAddress", Type: TypeString, Required: true, Description: "The ERC20 token contract address"},
					{Name: "toAddress", Type: TypeString, Required: true, Description: "The recipient address or ENS name"},
					{Name: "amount", Type: TypeString, Required: true, Description: "Amount of tokens to send in token units"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error transferring tokens",
			Handler:     token,
		},
	}
}

func tokenPayload(args Args, res transfer.TokenResult, counterparty string) Payload {
	return Payload{
		"transactionHash": res.TxHash.Hex(),
		"network":         res.Network,
		"fromWallet":      signerLabel(args),
		"from":            res.From.Hex(),
		counterparty:      res.To.Hex(),
		"token": Payload{
			"address":  res.Token.Address.Hex(),
			"symbol":   res.Token.Symbol,
			"decimals": res.Token.Decimals,
		},
		"amount": Payload{
			"formatted": res.Amount.Human,
			"raw":       res.Amount.Base.String(),
		},
	}
}
