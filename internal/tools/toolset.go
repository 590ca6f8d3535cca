package tools

import (
	"errors"

	"OpenMCP-EVM/internal/chainread"
	"OpenMCP-EVM/internal/contract"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/swap"
	"OpenMCP-EVM/internal/transfer"
	"OpenMCP-EVM/internal/wallet"
)

// Deps are the services the built-in tools drive.
type Deps struct {
	Chain     *chainread.Service
	Transfers *transfer.Service
	Swaps     *swap.Engine
	Wallets   *wallet.Service
	Contracts *contract.Writer
}

func (d Deps) validate() error {
	var errs []error
	if d.Chain == nil {
		errs = append(errs, errors.New("chain read service is required"))
	}
	if d.Transfers == nil {
		errs = append(errs, errors.New("transfer service is required"))
	}
	if d.Swaps == nil {
		errs = append(errs, errors.New("swap engine is required"))
	}
	if d.Wallets == nil {
		errs = append(errs, errors.New("wallet service is required"))
	}
	if d.Contracts == nil {
		errs = append(errs, errors.New("contract writer is required"))
	}
	return errors.Join(errs...)
}

// RegisterBuiltins registers the full tool set on r.
func RegisterBuiltins(r *Registry, deps Deps) error {
	if err := deps.validate(); err != nil {
		return err
	}
	var all []Tool
	all = append(all, readTools(deps.Chain)...)
	all = append(all, transferTools(deps.Transfers)...)
	all = append(all, swapTools(deps.Swaps)...)
	all = append(all, walletTools(deps.Wallets)...)
	all = append(all, writeTools(deps.Contracts, deps.Swaps)...)
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

const networkHelp = "Network name (e.g., 'bsc', 'ethereum', 'optimism', 'arbitrum', etc.) or chain ID."

func networkParam(defaultName string) Param {
	return Param{Name: "network", Type: TypeString, Description: networkHelp + " Defaults to " + defaultName + "."}
}

func walletParam(required bool) Param {
	desc := "The name of the stored wallet to use for the transaction"
	if !required {
		desc += ". When omitted the PRIVATE_KEY credential is used"
	}
	return Param{Name: "walletName", Type: TypeString, Required: required, Description: desc}
}

// identity selects the stored wallet when named and the default credential
// otherwise.
func identity(args Args) signer.Identity {
	if name := args.String("walletName"); name != "" {
		return signer.Wallet(name)
	}
	return signer.Default()
}

// signerLabel is what payloads report as the sender source.
func signerLabel(args Args) string {
	if name := args.String("walletName"); name != "" {
		return name
	}
	return signer.DefaultCredentialEnv
}
