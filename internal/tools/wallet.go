package tools

import (
	"context"

	xerrors "OpenMCP-EVM/internal/errors"
	"OpenMCP-EVM/internal/signer"
	"OpenMCP-EVM/internal/wallet"
)

func walletTools(wallets *wallet.Service) []Tool {
	return []Tool{
		{
			Descriptor: Descriptor{
				Name:        "create_wallet",
				Description: "Create a new wallet with a generated private key and store it under a name",
				Params: []Param{
					{Name: "name", Type: TypeString, Required: true, Description: "Unique name for the wallet"},
				},
			},
			ErrorPrefix: "Error creating wallet",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				summary, err := wallets.CreateWallet(ctx, args.String("name"))
				if err != nil {
					return nil, err
				}
				return Payload{"wallet": summary}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "import_private_key",
				Description: "Import an existing private key and store it under a name",
				Params: []Param{
					{Name: "name", Type: TypeString, Required: true, Description: "Unique name for the wallet"},
					{Name: "privateKey", Type: TypeString, Required: true, Description: "Private key in hex format (with or without 0x prefix)"},
				},
			},
			ErrorPrefix: "Error importing private key",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				summary, err := wallets.ImportWallet(ctx, args.String("name"), args.String("privateKey"))
				if err != nil {
					return nil, err
				}
				return Payload{"wallet": summary}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_stored_wallet",
				Description: "Look up a stored wallet by name or address",
				Params: []Param{
					{Name: "identifier", Type: TypeString, Required: true, Description: "Wallet name or address"},
					{Name: "lookupBy", Type: TypeString, Required: true, Description: "Either 'name' or 'address'"},
				},
			},
			ErrorPrefix: "Error retrieving wallet",
			Handler: func(ctx context.Context, args Args) (Payload, error) {
				var (
					w   wallet.Wallet
					err error
				)
				switch args.String("lookupBy") {
				case "name":
					w, err = wallets.WalletByName(ctx, args.String("identifier"))
				case "address":
					w, err = wallets.WalletByAddress(ctx, args.String("identifier"))
				default:
					return nil, xerrors.New(xerrors.CodeInvalidArgument, "lookupBy must be 'name' or 'address'")
				}
				if err != nil {
					return nil, err
				}
				s := w.Summary()
				return Payload{
					"id":        s.ID,
					"name":      s.Name,
					"address":   s.Address,
					"createdAt": s.CreatedAt,
					"updatedAt": s.UpdatedAt,
				}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "list_wallets",
				Description: "Get a list of all stored wallets ordered by creation date",
			},
			ErrorPrefix: "Error listing wallets",
			Handler: func(ctx context.Context, _ Args) (Payload, error) {
				list, err := wallets.ListWallets(ctx)
				if err != nil {
					return nil, err
				}
				if list == nil {
					list = []wallet.Summary{}
				}
				return Payload{"wallets": list}, nil
			},
		},
		{
			Descriptor: Descriptor{
				Name:        "get_address_from_private_key",
				Description: "Get the EVM address derived from a private key. The key is not stored or echoed",
				Params: []Param{
					{Name: "privateKey", Type: TypeString, Required: true, Description: "Private key in hex format (with or without 0x prefix)"},
				},
			},
			ErrorPrefix: "Error deriving address from private key",
			Handler: func(_ context.Context, args Args) (Payload, error) {
				credential, err := signer.ParseCredential(args.String("privateKey"))
				if err != nil {
					return nil, err
				}
				addr, err := signer.AddressOf(credential)
				if err != nil {
					return nil, err
				}
				return Payload{"address": addr.Hex()}, nil
			},
		},
	}
}
