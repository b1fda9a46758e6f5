package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/drift-predictor/internal/api"
	"github.com/signalsfoundry/drift-predictor/internal/predict"
	"github.com/signalsfoundry/drift-predictor/model"
	"github.com/signalsfoundry/drift-predictor/timectrl"
)

func newPredictCmd(opts *options) *cobra.Command {
	var (
		objectType string
		lat, lon   float64
		start      string
		hours      float64
		step       time.Duration
		report     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a drift trajectory and search pattern",
		Long: `Integrates the object's drift from the incident position and time through
the current and wind fields, then recommends a search pattern centred on the
final position.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime := time.Now().UTC().Truncate(time.Second)
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				startTime = t
			}

			in, err := api.PredictRequestToStruct(predict.Request{
				ObjectType:     objectType,
				Start:          model.Position{Lat: lat, Lon: lon},
				StartTime:      startTime,
				Duration:       timectrl.FromHours(hours),
				Step:           step,
				ReportInterval: report,
			})
			if err != nil {
				return err
			}

			client, err := opts.connect()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			out, err := client.Predict(ctx, in)
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}

			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writePredictionTable(cmd.OutOrStdout(), out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&objectType, "object", "t", "Person_Adult_LifeJacket", "object type id")
	f.Float64Var(&lat, "lat", 0, "incident latitude (decimal degrees)")
	f.Float64Var(&lon, "lon", 0, "incident longitude (decimal degrees)")
	f.StringVar(&start, "start", "", "incident time, RFC 3339 (default now)")
	f.Float64Var(&hours, "hours", 6, "drift duration in hours")
	f.DurationVar(&step, "step", 0, "integration step (default 15m)")
	f.DurationVar(&report, "report", 0, "report interval (default 1h)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}
