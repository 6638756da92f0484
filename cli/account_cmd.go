package cli

import (
	"encoding/json"

	"PLedger/module/account"

	"github.com/spf13/cobra"
)

type accountView struct {
	Address        string `json:"address"`
	PrivateKey     string `json:"private_key,omitempty"`
	SequenceNumber uint64 `json:"sequence_number"`
	Balance        uint64 `json:"balance"`
}

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create or inspect accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Generate a keypair and print its address and private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := account.Generate()
			if err != nil {
				return err
			}
			return printJSON(cmd, accountView{
				Address:    acct.Address().String(),
				PrivateKey: acct.PrivateKeyHex(),
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <address>",
		Short: "Print an account's sequence number and balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := account.ParseAddress(args[0])
			if err != nil {
				return err
			}
			node := a.nodeClient()
			info, err := node.Account(cmd.Context(), addr.String())
			if err != nil {
				return err
			}
			bal, err := node.Balance(cmd.Context(), addr.String())
			if err != nil {
				return err
			}
			return printJSON(cmd, accountView{
				Address:        addr.String(),
				SequenceNumber: info.SequenceNumber,
				Balance:        bal,
			})
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
