package tools

import (
	"context"

	"OpenMCP-EVM/internal/contract"
	"OpenMCP-EVM/internal/swap"
)

func writeTools(writer *contract.Writer, engine *swap.Engine) []Tool {
	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "write_contract",
				Description: "Write data to a smart contract by calling a state-changing function using a stored wallet",
				Params: []Param{
					walletParam(true),
					{Name: "contractAddress", Type: TypeString, Required: true, Description: "The address of the smart contract to interact with"},
					{Name: "abi", Type: TypeArray, Required: true, Description: "The ABI of the smart contract function, as a JSON array"},
					{Name: "functionName", Type: TypeString, Required: true, Description: "The name of the function to call on the contract (e.g., 'transfer')"},
					{Name: "args", Type: TypeArray, Description: "The arguments to pass to the function, as an array (e.g., ['0x1234...', '1000000000000000000'])"},
					{Name: "value", Type: TypeString, Description: "Native amount to attach for payable functions (e.g., '0.1')"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error writing to contract",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				abiJSON, err := args.Raw("abi")
				if err != nil {
					return nil, err
				}
				callArgs, err := args.Slice("args")
				if err != nil {
					return nil, err
				}
				res, err := writer.Write(ctx, contract.WriteRequest{
					Signer:   identity(args),
					Contract: args.String("contractAddress"),
					ABI:      abiJSON,
					Function: args.String("functionName"),
					Args:     callArgs,
					Value:    args.String("value"),
					Network:  args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"network":         res.Network,
					"transactionHash": res.TxHash.Hex(),
					"fromWallet":      signerLabel(args),
					"contract":        res.Contract.Hex(),
					"functionName":    res.Function,
					"message":         "Contract write transaction sent successfully",
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "add_liquidity",
				Description: "Add ETH and token liquidity to create or increase a Uniswap/PancakeSwap liquidity pool position",
				Params: []Param{
					walletParam(true),
					{Name: "tokenAddress", Type: TypeString, Required: true, Description: "The ERC20 token contract address to pair with ETH"},
					{Name: "amountToken", Type: TypeString, Required: true, Description: "Amount of tokens to add as liquidity (in token units)"},
					{Name: "amountETH", Type: TypeString, Required: true, Description: "Amount of ETH to add as liquidity (in ETH units)"},
					{Name: "dexRouter", Type: TypeString, Required: true, Description: "DEX router contract address for liquidity pair creation"},
					{Name: "slippage", Type: TypeNumber, Description: "Maximum allowed slippage percentage (default: 0.5)"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error adding liquidity",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				res, err := engine.AddLiquidityETH(ctx, swap.LiquidityRequest{
					Signer:       identity(args),
					Router:       args.String("dexRouter"),
					Token:        args.String("tokenAddress"),
					AmountToken:  args.String("amountToken"),
					AmountNative: args.String("amountETH"),
					Slippage:     args.StringOr("slippage", "0.5"),
					Network:      args.StringOr("network", "bsc"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"network":         res.Network,
					"transactionHash": res.TxHash.Hex(),
					"tokenAddress":    res.Token.Address.Hex(),
					"amountToken":     res.AmountToken.Human,
					"amountETH":       res.AmountNative.Human,
					"minToken":        res.MinToken.String(),
					"minETH":          res.MinNative.String(),
					"fromWallet":      signerLabel(args),
					"message":         "Successfully added liquidity to PancakeSwap pool",
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "lock_lp_token",
				Description: "Lock LP tokens in the UniswapV2Lock contract to demonstrate locked liquidity",
				Params: []Param{
					walletParam(true),
					{Name: "lpTokenAddress", Type: TypeString, Required: true, Description: "The LP token address to lock"},
					{Name: "amount", Type: TypeString, Required: true, Description: "Amount of LP tokens to lock (in LP token base units)"},
					{Name: "unlockDate", Type: TypeNumber, Required: true, Description: "Unix timestamp when tokens can be unlocked"},
					networkParam("BSC"),
				},
			},
			ErrorPrefix: "Error locking LP tokens",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				unlock, err := args.Int64("unlockDate")
				if err != nil {
					return nil, err
				}
				res, err := writer.LockLPToken(ctx, contract.LockRequest{
					Signer:     identity(args),
					LPToken:    args.String("lpTokenAddress"),
					Amount:     args.String("amount"),
					UnlockDate: unlock,
					Network:    args.String("network"),
				})
				if err != nil {
					return nil, err
				}
				return Payload{
					"network":         res.Network,
					"transactionHash": res.TxHash.Hex(),
					"lpTokenAddress":  args.String("lpTokenAddress"),
					"amount":          args.String("amount"),
					"unlockDate":      unlock,
					"fee":             res.Value.String(),
					"fromWallet":      signerLabel(args),
					"message":         "Successfully locked LP tokens in UniswapV2Lock contract",
				}, nil
			},
		},
	}
}
