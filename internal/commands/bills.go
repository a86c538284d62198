package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/billbox/internal/capture"
	"github.com/cleared-dev/billbox/internal/extract"
	"github.com/cleared-dev/billbox/internal/ledger"
	"github.com/cleared-dev/billbox/internal/model"
)

// billFlags are the bill fields a user can set or correct from the command line.
type billFlags struct {
	amount      string
	due         string
	creditor    string
	description string
	category    string
	note        string
}

func (f *billFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in euros, e.g. 85.50")
	cmd.Flags().StringVar(&f.due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.creditor, "creditor", "", "who the bill is owed to")
	cmd.Flags().StringVar(&f.description, "description", "", "what the bill is for")
	cmd.Flags().StringVar(&f.category, "category", "", "category (default: classified from the text)")
	cmd.Flags().StringVar(&f.note, "note", "", "free-form note")
}

func (f *billFlags) overrides() (capture.Overrides, error) {
	o := capture.Overrides{Creditor: f.creditor, Description: f.description, Note: f.note}
	if f.amount != "" {
		amount, err := parseAmount(f.amount)
		if err != nil {
			return o, err
		}
		o.Amount = &amount
	}
	if f.due != "" {
		due, err := parseDate(f.due)
		if err != nil {
			return o, err
		}
		o.DueDate = &due
	}
	if f.category != "" {
		c, err := parseCategory(f.category)
		if err != nil {
			return o, err
		}
		o.Category = c
	}
	return o, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

func parseCategory(s string) (model.Category, error) {
	c, ok := model.ParseCategory(s)
	if !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func newScanCommand(opts *rootOptions) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Read a bill from a QR code payload, OCR text or a photo",
	}
	scanCmd.AddCommand(
		newScanSubcommand(opts, "qr <payload>", "Decode a PagoPA or SEPA QR payload", ocrOff,
			func(p *project, cmd *cobra.Command, arg string) (extract.Candidate, error) {
				return p.ScanQR(arg)
			}),
		newScanSubcommand(opts, "text <file|->", "Parse bill text from a file or stdin", ocrOff,
			func(p *project, cmd *cobra.Command, arg string) (extract.Candidate, error) {
				text, err := readInput(cmd, arg)
				if err != nil {
					return extract.Candidate{}, err
				}
				return p.ScanText(text)
			}),
		newScanSubcommand(opts, "image <file>", "Read a bill photo with Google Cloud Vision", ocrRequired,
			func(p *project, cmd *cobra.Command, arg string) (extract.Candidate, error) {
				f, err := os.Open(arg)
				if err != nil {
					return extract.Candidate{}, fmt.Errorf("opening image: %w", err)
				}
				defer f.Close()
				return p.ScanImage(cmd.Context(), f)
			}),
	)
	return scanCmd
}

type scanFunc func(p *project, cmd *cobra.Command, arg string) (extract.Candidate, error)

func newScanSubcommand(opts *rootOptions, use, short string, mode ocrMode, scan scanFunc) *cobra.Command {
	var flags billFlags
	var confirm bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := flags.overrides()
			if err != nil {
				return err
			}

			p, err := openProject(cmd.Context(), opts, mode)
			if err != nil {
				return err
			}
			defer p.Close()

			cand, err := scan(p, cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printCandidate(out, cand)
			if !confirm {
				fmt.Fprintln(out, "\nRun again with --confirm to add this bill.")
				return nil
			}

			bill, err := p.Confirm(cmd.Context(), p.user, cand, overrides)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nAdded bill %s\n", bill.ID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&confirm, "confirm", false, "add the bill to the ledger")
	return cmd
}

func readInput(cmd *cobra.Command, arg string) (string, error) {
	var (
		data []byte
		err  error
	)
	if arg == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(data), nil
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	var flags billFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a bill by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(flags.amount)
			if err != nil {
				return err
			}
			due, err := parseDate(flags.due)
			if err != nil {
				return err
			}
			params := capture.ManualParams{
				Amount:      amount,
				DueDate:     due,
				Creditor:    flags.creditor,
				Description: flags.description,
				Note:        flags.note,
			}
			if flags.category != "" {
				if params.Category, err = parseCategory(flags.category); err != nil {
					return err
				}
			}

			p, err := openProject(cmd.Context(), opts, ocrOff)
			if err != nil {
				return err
			}
			defer p.Close()

			bill, err := p.AddManual(cmd.Context(), p.user, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added bill %s (%s, %s due %s)\n",
				bill.ID, bill.Category, bill.Amount.StringFixed(2), bill.DueDate.Format(dateLayout))
			return nil
		},
	}
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func queryFlags(cmd *cobra.Command, status, category *string) {
	cmd.Flags().StringVar(status, "status", "all", "all, pending, paid, overdue_or_late, this_month or this_year")
	cmd.Flags().StringVar(category, "category", "all", "category to show, or all")
}

func buildQuery(status, category string) (ledger.Query, error) {
	f, err := ledger.ParseStatusFilter(status)
	if err != nil {
		return ledger.Query{}, err
	}
	q := ledger.Query{Status: f}
	if category != "" && category != string(ledger.AllCategories) {
		if q.Category, err = parseCategory(category); err != nil {
			return ledger.Query{}, err
		}
	}
	return q, nil
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var status, category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(status, category)
			if err != nil {
				return err
			}
			p, err := openProject(cmd.Context(), opts, ocrOff)
			if err != nil {
				return err
			}
			defer p.Close()

			bills, err := p.Bills(p.user, q)
			if err != nil {
				return err
			}
			printBills(cmd.OutOrStdout(), bills)
			return nil
		},
	}
	queryFlags(cmd, &status, &category)
	return cmd
}

func newUpcomingCommand(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List unpaid bills due soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts, ocrOff)
			if err != nil {
				return err
			}
			defer p.Close()

			if !cmd.Flags().Changed("days") {
				days = -1
			} else if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			bills, err := p.Upcoming(p.user, days)
			if err != nil {
				return err
			}
			printBills(cmd.OutOrStdout(), bills)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "window in days (default ledger.upcoming_days)")
	return cmd
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var status, category string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals by category and bill counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(status, category)
			if err != nil {
				return err
			}
			p, err := openProject(cmd.Context(), opts, ocrOff)
			if err != nil {
				return err
			}
			defer p.Close()

			sum, err := p.Summary(p.user, q)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	queryFlags(cmd, &status, &category)
	return cmd
}
