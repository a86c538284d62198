package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/reconcile"
)

func newPayCommand(opts *rootOptions) *cobra.Command {
	var method, amount string

	cmd := &cobra.Command{
		Use:   "pay <bill-id>",
		Short: "Pay a bill and earn cashback",
		Long: `Pay a bill. Without --amount the bill's full amount is charged through the
payment gateway; with --amount a payment already made elsewhere is recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := model.PaymentMethod(method)
			if !m.Valid() {
				return fmt.Errorf("%w: %q", reconcile.ErrUnknownMethod, method)
			}

			p, err := openProject(cmd.Context(), opts, ocrOff)
			if err != nil {
				return err
			}
			defer p.Close()

			var res reconcile.Result
			if amount == "" {
				res, err = p.Pay(cmd.Context(), p.user, args[0], m)
			} else {
				a, perr := parseAmount(amount)
				if perr != nil {
					return perr
				}
				res, err = p.RecordPayment(cmd.Context(), p.user, args[0], a, m)
			}
			if res.Payment.ID != "" {
				printPayment(cmd.OutOrStdout(), res.Payment)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&method, "method", string(model.MethodCard), "card, saved_card, apple_pay, google_pay or bank_transfer")
	cmd.Flags().StringVar(&amount, "amount", "", "record a payment of this amount instead of charging the bill")

	return cmd
}

func newCashbackCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cashback",
		Short: "Show the cashback balance and payment history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts, ocrOff)
			if err != nil {
				return err
			}
			defer p.Close()

			balance, payments, err := p.Cashback(p.user)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cashback balance: %s (%s)\n", balance.StringFixed(2), balance.String())
			for _, pay := range payments {
				printPayment(out, pay)
			}
			return nil
		},
	}
}
