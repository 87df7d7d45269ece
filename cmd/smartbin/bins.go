package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/SmartBin/SmartBin-Backend/internal/bins"
	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/spf13/cobra"
)

type binReader interface {
	ListBins(ctx context.Context, status string) ([]gateway.Bin, error)
	GetBin(ctx context.Context, id string) (*gateway.Bin, error)
}

func newBinsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bins",
		Short: "Inspect bins known to the gateway",
	}

	var status string
	var available bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List bins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			return listBins(gateway.WithBearer(ctx, opts.token), gatewayClient(), cmd.OutOrStdout(), status, available)
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (active, full, maintenance, inactive)")
	list.Flags().BoolVar(&available, "available", false, "only bins that can accept deposits")

	show := &cobra.Command{
		Use:   "show <bin-id>",
		Short: "Show one bin and whether it can be opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			return showBin(gateway.WithBearer(ctx, opts.token), gatewayClient(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func listBins(ctx context.Context, gw binReader, out io.Writer, status string, available bool) error {
	all, err := gw.ListBins(ctx, status)
	if err != nil {
		return fmt.Errorf("list bins: %w", err)
	}
	if available {
		all = bins.Available(all)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQR\tSTATUS\tFILL")
	for _, b := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\n", b.ID, b.Name, b.QRCode, bins.StatusLabel(b.Status), b.FillLevel)
	}
	return tw.Flush()
}

func showBin(ctx context.Context, gw binReader, out io.Writer, id string) error {
	b, err := gw.GetBin(ctx, id)
	if err != nil {
		return fmt.Errorf("get bin %s: %w", id, err)
	}
	v := bins.CanOpen(*b)

	fmt.Fprintf(out, "%s (%s)\n", b.Name, b.ID)
	fmt.Fprintf(out, "  location: %s\n", b.Location)
	fmt.Fprintf(out, "  status:   %s\n", bins.StatusLabel(b.Status))
	fmt.Fprintf(out, "  fill:     %d%% of %dL\n", b.FillLevel, b.Capacity)
	if v.Allowed {
		fmt.Fprintln(out, "  can open: yes")
	} else {
		fmt.Fprintf(out, "  can open: no (%s)\n", v.Message)
	}
	return nil
}
