package cli

import (
	"strconv"

	"PLedger/module/account"
	"PLedger/tools/errs"

	"github.com/spf13/cobra"
)

func newFundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <address> <amount>",
		Short: "Mint coins into an account through the faucet and wait for them to commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := account.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return errs.ErrArgs.WrapMsg("invalid amount", "amount", args[1])
			}
			node := a.nodeClient()
			if err := a.faucetClient().FundAndWait(cmd.Context(), node, addr.String(), amount); err != nil {
				return err
			}
			bal, err := node.Balance(cmd.Context(), addr.String())
			if err != nil {
				return err
			}
			return printJSON(cmd, accountView{Address: addr.String(), Balance: bal})
		},
	}
}
