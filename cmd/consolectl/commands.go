package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/console/internal/catalog/service"
	"github.com/smallbiznis/console/internal/entitlement"
	ierr "github.com/smallbiznis/console/internal/errors"
	invoicedomain "github.com/smallbiznis/console/internal/invoice/domain"
	"github.com/smallbiznis/console/internal/projection"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var publicOnly bool

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List plan cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, log, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		out := cmd.OutOrStdout()

		opts := displayOptions(log)
		var cards []projection.PlanCard
		if publicOnly {
			plans, err := client.ListPublicPlans(ctx)
			if err != nil {
				return userError(err)
			}
			cards = projection.PlanCards(catalogdomain.Snapshot{Plans: plans}, opts)
		} else {
			store := catalogservice.NewStore(client, log, nil)
			snap, err := store.Load(ctx)
			if err != nil {
				return userError(err)
			}
			cards = projection.PlanCards(snap, opts)
		}

		if outputJSON {
			return printJSON(out, cards)
		}
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMONTHLY\tYEARLY\tUSERS\tMODULES\tSTATUS")
		for _, c := range cards {
			names := make([]string, 0, len(c.Modules))
			for _, m := range c.Modules {
				names = append(names, m.Name)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				c.PlanID, c.Name, c.MonthlyPrice, c.YearlyPrice, c.UserLimit, strings.Join(names, ", "), badge(c.Status))
		}
		return w.Flush()
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List module cards with the plans that include them",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, log, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		out := cmd.OutOrStdout()

		snap, err := catalogservice.NewStore(client, log, nil).Load(ctx)
		if err != nil {
			return userError(err)
		}
		cards := projection.ModuleCards(snap)
		if outputJSON {
			return printJSON(out, cards)
		}
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPLANS\tSTATUS")
		for _, c := range cards {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ModuleID, c.Name, strings.Join(c.Plans, ", "), badge(c.Status))
		}
		return w.Flush()
	},
}

var myModulesCmd = &cobra.Command{
	Use:   "my-modules",
	Short: "Show the modules the token's subscription is entitled to",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, log, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		out := cmd.OutOrStdout()

		store := catalogservice.NewStore(client, log, nil)
		var limits subscriptiondomain.PlanLimits
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			_, err := store.Load(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			limits, err = client.GetPlanLimits(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return userError(err)
		}

		snap := store.Snapshot()
		page := projection.MyModules(snap, entitlement.ResolveLimits(limits, snap), displayOptions(log))
		if outputJSON {
			return printJSON(out, page)
		}
		if !page.HasSubscription {
			fmt.Fprintln(out, "No active subscription.")
		} else {
			fmt.Fprintf(out, "Plan: %s %s\n", page.PlanName, badge(page.Status))
			if page.RenewsOn != "" {
				fmt.Fprintf(out, "Renews: %s\n", page.RenewsOn)
			}
			fmt.Fprintf(out, "Users: %s\n", page.Usage.Label)
		}
		for _, m := range page.Modules {
			fmt.Fprintf(out, "  %-10s %s %s\n", m.ModuleID, m.Name, badge(m.Status))
		}
		if len(page.Unresolved) > 0 {
			fmt.Fprintf(out, "Unresolved module references: %s\n", strings.Join(page.Unresolved, ", "))
		}
		return nil
	},
}

var invoiceStatus string

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "List invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, log, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		out := cmd.OutOrStdout()

		invoices, err := client.ListInvoices(ctx, invoicedomain.ListRequest{Status: invoiceStatus})
		if err != nil {
			return userError(err)
		}
		rows := projection.InvoiceRows(invoices, displayOptions(log))
		if outputJSON {
			return printJSON(out, rows)
		}
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "NUMBER\tCREATED\tDUE\tPAID\tSTATUS")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Number, r.Created, r.AmountDue, r.AmountPaid, badge(r.Status))
		}
		return w.Flush()
	},
}

func init() {
	plansCmd.Flags().BoolVar(&publicOnly, "public", false, "read the public plan list")
	invoicesCmd.Flags().StringVar(&invoiceStatus, "status", "", "filter by invoice status")
}

// userError prints the user-facing message of a classified error.
func userError(err error) error {
	if err == nil || err == context.Canceled {
		return err
	}
	return fmt.Errorf("%s: %s", ierr.Code(err), ierr.DisplayMessage(err))
}
