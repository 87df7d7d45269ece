package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/SmartBin/SmartBin-Backend/internal/gateway"
	"github.com/spf13/cobra"
)

type detectionSimulator interface {
	SimulateDetection(ctx context.Context, in gateway.SimulateDetectionInput) (*gateway.Detection, error)
}

func newDetectCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detection utilities",
	}

	var in gateway.SimulateDetectionInput
	simulate := &cobra.Command{
		Use:   "simulate",
		Short: "Record a fake detection, as if the camera classified a deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			return simulateDetection(gateway.WithBearer(ctx, opts.token), gatewayClient(), cmd.OutOrStdout(), in)
		},
	}
	simulate.Flags().StringVar(&in.BinID, "bin", "", "bin id (required)")
	simulate.Flags().StringVar(&in.UserNFCCode, "nfc", "", "NFC code of the depositing user (required)")
	simulate.Flags().StringVar(&in.Material, "material", "plastic", "detected material")
	simulate.Flags().Float64Var(&in.Confidence, "confidence", 0.95, "classifier confidence in [0,1]")
	_ = simulate.MarkFlagRequired("bin")
	_ = simulate.MarkFlagRequired("nfc")

	cmd.AddCommand(simulate)
	return cmd
}

func simulateDetection(ctx context.Context, gw detectionSimulator, out io.Writer, in gateway.SimulateDetectionInput) error {
	if in.Confidence < 0 || in.Confidence > 1 {
		return errors.New("confidence must be between 0 and 1")
	}
	d, err := gw.SimulateDetection(ctx, in)
	if err != nil {
		return fmt.Errorf("simulate detection: %w", err)
	}
	fmt.Fprintf(out, "detection %s: %s on bin %s, +%d points\n", d.ID, d.MaterialType, d.BinID, d.PointsAwarded)
	return nil
}
