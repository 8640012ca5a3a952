package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/fee-ledger/api"
	"github.com/warp/fee-ledger/config"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/receipt"
	"gopkg.in/yaml.v3"
)

// errFindings is returned by verify when the report is not clean.
var errFindings = errors.New("ledger has inconsistencies")

func sweepCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Recompute Active/Inactive status for every student",
		RunE: func(cmd *cobra.Command, args []string) error {
			today := ledger.Today()
			if asOf != "" {
				d, err := ledger.ParseDate(asOf)
				if err != nil {
					return err
				}
				today = d
			}

			_, engine, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := engine.Sweep(cmd.Context(), today)
			fmt.Fprintf(cmd.OutOrStdout(), "Sweep as of %s: %d checked, %d activated, %d deactivated, %d failed\n",
				today, res.Checked, res.Activated, res.Deactivated, res.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Evaluate status for this day (DD-MM-YYYY)")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check receipts, installments and running totals",
		Long: `Recompute the ledger from raw rows and report:
- duplicate, malformed or missing receipt numbers per year
- payments referencing unknown students
- installment numbers that do not run 1..K
- running totals or remaining balances that do not match

Findings are never repaired. Exits 1 when anything is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			rep, err := engine.Verify(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d students, %d payments\n", rep.Students, rep.Payments)
			if rep.OK() {
				fmt.Fprintln(out, "OK")
				return nil
			}
			for _, f := range rep.Findings {
				line := fmt.Sprintf("  %-24s %-16s %s", f.Kind, f.Ref, f.Detail)
				if f.Expected != "" {
					line += " (expected " + f.Expected + ")"
				}
				fmt.Fprintln(out, line)
			}
			return fmt.Errorf("%w: %d finding(s)", errFindings, len(rep.Findings))
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state [phone]",
		Short: "Print the ledger of the student registered under a phone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := engine.CurrentState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !st.Exists() {
				fmt.Fprintf(out, "No student registered under %s\n", args[0])
				return nil
			}
			s := st.Student
			fmt.Fprintf(out, "%s (%s) %s, %s\n", s.Name, s.ID, s.Course, ledger.DeriveStatus(ledger.Today(), *s))
			fmt.Fprintf(out, "Course %s to %s\n", s.StartDate, s.EndDate)
			fmt.Fprintln(out, strings.Repeat("-", 60))
			for _, p := range st.Payments {
				fmt.Fprintf(out, "#%-3d %s  %s  %-5s %12s  remaining %12s\n",
					p.InstallmentNo, p.ReceiptNo, p.PaymentDate, p.Mode,
					receipt.FormatRupees(p.Amount), receipt.FormatRupees(p.RunningRemaining))
			}
			fmt.Fprintln(out, strings.Repeat("-", 60))
			fmt.Fprintf(out, "Total fees %s, paid %s, remaining %s\n",
				receipt.FormatRupees(s.TotalFees), receipt.FormatRupees(st.TotalPaid), receipt.FormatRupees(st.Remaining))
			return nil
		},
	}
}

func receiptCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "receipt [receipt-no]",
		Short: "Write the PDF of a recorded receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, closeFn, err := openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			s, p, err := engine.FindPayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			doc, err := receipt.NewPDFRenderer(cfg.Receipt.Institute).Render(ledger.NewReceiptData(s, p))
			if err != nil {
				return err
			}
			if output == "" {
				output = receipt.FileName(p.ReceiptNo)
			}
			if err := os.WriteFile(output, doc, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <receipt-no>.pdf)")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := api.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			redacted := *cfg
			if redacted.Auth.JWTSecret != "" {
				redacted.Auth.JWTSecret = "********"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(redacted)
		},
	}
}
