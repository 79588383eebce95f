package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

func newReportCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:       "report people|categories",
		Short:     "Print income, expense and balance totals",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"people", "categories"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), a, func(svc *services.Services) error {
				return runReport(cmd.Context(), svc, args[0], asJSON, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

// withServices opens the configured store without an event publisher;
// reports never mutate.
func withServices(ctx context.Context, a *app, fn func(*services.Services) error) (err error) {
	bcfg, err := a.backendConfig()
	if err != nil {
		return err
	}
	bcfg.AMQPURL = ""

	res, err := backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Cleanup(); err == nil {
			err = cerr
		}
	}()
	return fn(res.Services)
}

func runReport(ctx context.Context, svc *services.Services, kind string, asJSON bool, out io.Writer) error {
	var report any
	var err error
	switch kind {
	case "people":
		report, err = svc.Reports.PersonTotals(ctx)
	case "categories":
		report, err = svc.Reports.CategoryTotals(ctx)
	default:
		return fmt.Errorf("unknown report %q", kind)
	}
	if err != nil {
		return fmt.Errorf("compute %s report: %w", kind, err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	switch r := report.(type) {
	case core.PersonTotalsReport:
		fmt.Fprintln(tw, "NAME\tAGE\tMINOR\tINCOME\tEXPENSE\tBALANCE\t")
		for _, p := range r.People {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n", p.Name, p.Age, yesNo(p.IsMinor), p.TotalIncome, p.TotalExpense, p.Balance)
		}
		fmt.Fprintf(tw, "TOTAL\t\t\t%s\t%s\t%s\t\n", r.GrandTotalIncome, r.GrandTotalExpense, r.GrandBalance)
	case core.CategoryTotalsReport:
		fmt.Fprintln(tw, "CATEGORY\tPURPOSE\tINCOME\tEXPENSE\tBALANCE\t")
		for _, c := range r.Categories {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", c.Description, c.PurposeLabel, c.TotalIncome, c.TotalExpense, c.Balance)
		}
		fmt.Fprintf(tw, "TOTAL\t\t%s\t%s\t%s\t\n", r.GrandTotalIncome, r.GrandTotalExpense, r.GrandBalance)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
