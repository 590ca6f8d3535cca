package tools

import (
	"context"

	"OpenMCP-EVM/internal/chainread"
)

func readTools(chain *chainread.Service) []Tool {
	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "get_chain_info",
				Description: "Get information about an EVM network",
				Params:      []Param{networkParam("BSC")},
			},
			ErrorPrefix: "Error fetching chain info",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				info, err := chain.ChainInfo(ctx, args.String("network"))
				if err != nil {
					return nil, err
				}
				return Payload{
					"network":     info.Network,
					"chainId":     info.ChainID,
					"blockNumber": info.BlockNumber,
					"rpcUrl":      info.RPCURL,
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "resolve_ens",
				Description: "Resolve an ENS name to an Ethereum address",
				Params: []Param{
					{Name: "ensName", Type: TypeString, Required: true, Description: "ENS name to resolve (e.g., 'vitalik.eth')"},
					networkParam("Ethereum"),
				},
			},
			ErrorPrefix: "Error resolving ENS name",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				res, err := chain.ResolveName(ctx, args.String("ensName"), args.StringOr("network", "ethereum"))
				if err != nil {
					return nil, err
				}
				return Payload{
					"ensName":         res.Name,
					"normalizedName":  res.Normalized,
					"resolvedAddress": res.Address.Hex(),
					"network":         res.Network,
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_supported_networks",
				Description: "Get a list of supported EVM networks",
			},
			ErrorPrefix: "Error fetching supported networks",
			Handler: func(context.Context, Args) (Payload, error) {
				return Payload{"supportedNetworks": chain.SupportedNetworks()}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_latest_block",
				Description: "Get the latest block from the EVM",
				Params:      []Param{networkParam("BSC")},
			},
			ErrorPrefix: "Error fetching latest block",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				block, err := chain.LatestBlock(ctx, args.String("network"))
				if err != nil {
					return nil, err
				}
				return Payload{"block": block}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_balance",
				Description: "Get the native token balance (ETH, BNB, etc.) for an address",
				Params: []Param{
					{Name: "address", Type: TypeString, Required: true, Description: "The wallet address or ENS name"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error fetching balance",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				bal, err := chain.NativeBalance(ctx, args.String("address"), args.String("network"))
				if err != nil {
					return nil, err
				}
				return Payload{
					"address": bal.Address.Hex(),
					"network": bal.Network,
					"wei":     bal.Wei,
					"ether":   bal.Ether,
					"symbol":  bal.Symbol,
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_token_balance",
				Description: "Get the balance of an ERC20 token for an address",
				Params: []Param{
					{Name: "tokenAddress", Type: TypeString, Required: true, Description: "The ERC20 token contract address or ENS name"},
					{Name: "ownerAddress", Type: TypeString, Required: true, Description: "The wallet address or ENS name to check"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error fetching token balance",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				bal, err := chain.TokenBalance(ctx, args.String("tokenAddress"), args.String("ownerAddress"), args.String("network"))
				if err != nil {
					return nil, err
				}
				return Payload{
					"tokenAddress": bal.Token.Hex(),
					"owner":        bal.Owner.Hex(),
					"network":      bal.Network,
					"raw":          bal.Raw,
					"formatted":    bal.Formatted,
					"symbol":       bal.Symbol,
					"decimals":     bal.Decimals,
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_transaction",
				Description: "Get detailed information about a specific transaction by its hash. Includes sender, recipient, value, data, and more.",
				Params: []Param{
					{Name: "txHash", Type: TypeString, Required: true, Description: "The transaction hash to look up (e.g., '0x1234...')"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error fetching transaction",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				tx, err := chain.Transaction(ctx, args.String("txHash"), args.String("network"))
				if err != nil {
					return nil, err
				}
				return Payload{"transaction": tx}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_transaction_receipt",
				Description: "Get a transaction receipt by its hash",
				Params: []Param{
					{Name: "txHash", Type: TypeString, Required: true, Description: "The transaction hash to look up"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error fetching transaction receipt",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				receipt, err := chain.Receipt(ctx, args.String("txHash"), args.String("network"))
				if err != nil {
					return nil, err
				}
				return Payload{"receipt": receipt}, nil
			},
		},
	}
}
