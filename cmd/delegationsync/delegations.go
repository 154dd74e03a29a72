package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"delegation_sync/internal/app"
	"delegation_sync/internal/store"
	"delegation_sync/internal/table"
)

type delegationFlags struct {
	nationality string
	status      string
	kind        string
	from        string
	to          string
	on          string
	search      string
	sort        string
	desc        bool
}

// query turns the command line into a table query.
func (f delegationFlags) query() table.Query {
	q := table.Query{
		Filters: map[string]table.FilterValue{},
		Search:  f.search,
		SortBy:  f.sort,
		Desc:    f.desc,
	}
	if f.nationality != "" {
		q.Filters["nationality"] = table.Token(f.nationality)
	}
	if f.status != "" {
		q.Filters["delegationStatus"] = table.Token(f.status)
	}
	if f.kind != "" {
		q.Filters["delegationType"] = table.Token(f.kind)
	}
	switch {
	case f.on != "":
		q.Filters["arrivalDate"] = table.Token(f.on)
	case f.from != "" || f.to != "":
		q.Filters["arrivalDate"] = table.DateRange{Start: f.from, End: f.to}
	}
	return q
}

func delegationsCommand() *cobra.Command {
	var flags delegationFlags
	cmd := &cobra.Command{
		Use:   "delegations",
		Short: "Print the arrivals table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := commonRun()
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()
			if err := a.Login(ctx); err != nil {
				return err
			}
			if err := a.Store.Refresh(ctx, store.TargetDelegations); err != nil {
				return err
			}

			rows := table.ProjectDelegations(a.Store.Cache(store.TargetDelegations).Records())
			rows, err = table.Apply(rows, table.DelegationColumns(), flags.query())
			if err != nil {
				return err
			}
			return printDelegations(cmd.OutOrStdout(), rows)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&flags.nationality, "nationality", "", "nationality contains (\"empty\" for none)")
	fs.StringVar(&flags.status, "status", "", "all_departed, partial_departed or not_departed")
	fs.StringVar(&flags.kind, "type", "", "military, civil or unknown")
	fs.StringVar(&flags.from, "from", "", "earliest arrival date (YYYY-MM-DD)")
	fs.StringVar(&flags.to, "to", "", "latest arrival date (YYYY-MM-DD)")
	fs.StringVar(&flags.on, "on", "", "exact arrival date (YYYY-MM-DD)")
	fs.StringVar(&flags.search, "search", "", "search every searchable column")
	fs.StringVar(&flags.sort, "sort", "", "column id to sort by, e.g. arrivalDate")
	fs.BoolVar(&flags.desc, "desc", false, "sort descending")
	return cmd
}

func printDelegations(out io.Writer, rows []table.DelegationRow) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tTYPE\tNATIONALITY\tHEAD\tMEMBERS\tHALL\tAIRLINE\tFLIGHT\tDATE\tTIME\tDESTINATION")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.DelegationStatus, r.DelegationType, dash(r.Nationality), dash(r.DelegationHead),
			r.CurrentMembers, r.MembersCount, dash(r.ArrivalHall), dash(r.ArrivalAirline),
			dash(r.ArrivalFlightNumber), dash(r.ArrivalDate), dash(r.ArrivalTime), dash(r.ArrivalDestination))
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
