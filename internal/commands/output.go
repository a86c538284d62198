package commands

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/billbox/internal/app"
	"github.com/cleared-dev/billbox/internal/extract"
	"github.com/cleared-dev/billbox/internal/model"
)

const dateLayout = "2006-01-02"

func printCandidate(w io.Writer, c extract.Candidate) {
	amount := c.Amount.StringFixed(2)
	if !c.AmountParsed {
		amount += " (not found)"
	}
	due := c.DueDate.Format(dateLayout)
	if c.DueDateDefaulted {
		due += " (defaulted to today)"
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Format:\t%s\n", c.Format)
	fmt.Fprintf(tw, "Creditor:\t%s\n", c.Creditor)
	fmt.Fprintf(tw, "Description:\t%s\n", c.Description)
	fmt.Fprintf(tw, "Category:\t%s\n", c.Category)
	fmt.Fprintf(tw, "Amount:\t%s\n", amount)
	fmt.Fprintf(tw, "Due:\t%s\n", due)
	tw.Flush()
	if c.NeedsConfirmation() {
		fmt.Fprintln(w, "Check the amount and due date before confirming.")
	}
}

func printBills(w io.Writer, bills []app.BillView) {
	if len(bills) == 0 {
		fmt.Fprintln(w, "No bills.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tCATEGORY\tAMOUNT\tSTATUS\tCREDITOR")
	for _, b := range bills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.DueDate.Format(dateLayout), b.Category, b.Amount.StringFixed(2), b.Effective, b.Creditor)
	}
	tw.Flush()
}

func printSummary(w io.Writer, s app.Summary) {
	cats := make([]model.Category, 0, len(s.Categories))
	for c := range s.Categories {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTOTAL")
	total := decimal.Zero
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\n", c, s.Categories[c].StringFixed(2))
		total = total.Add(s.Categories[c])
	}
	fmt.Fprintf(tw, "total\t%s\n", total.StringFixed(2))
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "STATUS\tBILLS")
	for _, st := range model.AllStatuses {
		fmt.Fprintf(tw, "%s\t%d\n", st, s.Statuses[st])
	}
	tw.Flush()
	fmt.Fprintf(w, "\nCashback: %s\n", s.Cashback.StringFixed(2))
}

func printPayment(w io.Writer, p model.Payment) {
	fmt.Fprintf(w, "Payment %s for bill %s: %s via %s, %s", p.ID, p.BillID, p.Amount.StringFixed(2), p.Method, p.Status)
	if p.ExternalTransactionID != "" {
		fmt.Fprintf(w, " (%s)", p.ExternalTransactionID)
	}
	fmt.Fprintln(w)
	if !p.Cashback.IsZero() {
		fmt.Fprintf(w, "Cashback earned: %s\n", p.Cashback.String())
	}
}
