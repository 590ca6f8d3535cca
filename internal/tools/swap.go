package tools

import (
	"context"

	"OpenMCP-EVM/internal/swap"
)

func swapTools(engine *swap.Engine) []Tool {
	slippage := Param{Name: "slippagePercent", Type: TypeString, Required: true, Description: "Maximum slippage percentage (e.g., 0.5 for 0.5%)"}

	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "buy_usdt_from_wallet",
				Description: "Buy USDT using PancakeSwap's Router",
				Params: []Param{
					{Name: "walletName", Type: TypeString, Required: true, Description: "Name of the stored wallet to execute swap from"},
					{Name: "amountWantToBuy", Type: TypeString, Required: true, Description: "Amount of USDT to buy"},
					slippage,
					networkParam("bsc-testnet"),
				},
			},
			ErrorPrefix: "Error executing swap",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				res, err := engine.Buy(ctx, swap.Request{
					Signer:   identity(args),
					Amount:   args.String("amountWantToBuy"),
					Slippage: args.String("slippagePercent"),
					Network:  args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"transactionHash": res.TxHash.Hex(),
					"wallet":          res.From.Hex(),
					"network":         res.Network,
					"slippagePercent": res.Bound.SlippagePercent.String(),
					"amountWantToBuy": args.String("amountWantToBuy"),
					"nativeIn":        res.Value.String(),
					"minAmountOut":    res.Bound.Minimum.String(),
					"deadline":        res.Deadline.String(),
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "sell_usdt_from_wallet",
				Description: "Sell USDT for ETH using PancakeSwap's Router",
				Params: []Param{
					{Name: "walletName", Type: TypeString, Required: true, Description: "Name of the stored wallet to execute swap from"},
					{Name: "amountToSell", Type: TypeString, Required: true, Description: "Amount of USDT to sell"},
					slippage,
					networkParam("bsc-testnet"),
				},
			},
			ErrorPrefix: "Error executing swap",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				res, err := engine.Sell(ctx, swap.Request{
					Signer:   identity(args),
					Amount:   args.String("amountToSell"),
					Slippage: args.String("slippagePercent"),
					Network:  args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"transactionHash": res.TxHash.Hex(),
					"wallet":          res.From.Hex(),
					"network":         res.Network,
					"slippagePercent": res.Bound.SlippagePercent.String(),
					"amountToSell":    args.String("amountToSell"),
					"minNativeOut":    res.Bound.Minimum.String(),
					"deadline":        res.Deadline.String(),
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "quote_usdt",
				Description: "Estimate a USDT buy or sell against PancakeSwap's Router without sending a transaction",
				Params: []Param{
					{Name: "side", Type: TypeString, Required: true, Description: "'buy' to price USDT out, 'sell' to price USDT in"},
					{Name: "amount", Type: TypeString, Required: true, Description: "Amount of USDT"},
					{Name: "slippagePercent", Type: TypeString, Description: "Slippage percentage used for the minimum (default: 0.5)"},
					networkParam("bsc-testnet"),
				},
			},
			ErrorPrefix: "Error quoting swap",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				est, err := engine.Estimate(ctx, swap.EstimateRequest{
					Side:     swap.Side(args.String("side")),
					Amount:   args.String("amount"),
					Slippage: args.StringOr("slippagePercent", "0.5"),
					Network:  args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"side":            string(est.Side),
					"network":         est.Network,
					"amount":          args.String("amount"),
					"nativeAmount":    est.NativeAmount,
					"minimumOut":      est.MinimumOut,
					"slippagePercent": est.Bound.SlippagePercent.String(),
				}, nil
			},
		},
	}
}
