package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func writeJSON(w io.Writer, s *structpb.Struct) error {
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writePredictionTable(w io.Writer, s *structpb.Struct) error {
	f := s.GetFields()
	fmt.Fprintf(w, "Prediction %s for %s\n", f["prediction_id"].GetStringValue(), f["object_type"].GetStringValue())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOURS\tTIME\tLAT\tLON\tCONFIDENCE")
	for _, v := range f["points"].GetListValue().GetValues() {
		p := v.GetStructValue().GetFields()
		confidence := "ok"
		if p["low_confidence"].GetBoolValue() {
			confidence = "low"
		}
		fmt.Fprintf(tw, "%.2f\t%s\t%.5f\t%.5f\t%s\n",
			p["elapsed_hours"].GetNumberValue(),
			p["timestamp"].GetStringValue(),
			p["lat"].GetNumberValue(),
			p["lon"].GetNumberValue(),
			confidence)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	diag := f["diagnostics"].GetStructValue().GetFields()
	fmt.Fprintf(w, "\nDistance: %.2f km over %.2f h", f["distance_km"].GetNumberValue(), f["elapsed_hours"].GetNumberValue())
	if diag["truncated"].GetBoolValue() {
		fmt.Fprintf(w, " (truncated: %s, %.2f h requested)",
			diag["truncation_reason"].GetStringValue(), f["requested_hours"].GetNumberValue())
	}
	fmt.Fprintf(w, "\nDegraded steps: %.0f of %.0f\n",
		diag["degraded_steps"].GetNumberValue(), diag["total_steps"].GetNumberValue())

	rec := f["recommendation"].GetStructValue().GetFields()
	fmt.Fprintf(w, "\nSearch pattern: %s\n", rec["pattern"].GetStringValue())
	fmt.Fprintf(w, "  Centre:  %.5f, %.5f\n", rec["center_lat"].GetNumberValue(), rec["center_lon"].GetNumberValue())
	fmt.Fprintf(w, "  Radius:  %.2f km\n", rec["radius_km"].GetNumberValue())
	switch rec["pattern"].GetStringValue() {
	case "ParallelSweep", "ParallelTrack":
		fmt.Fprintf(w, "  Bearing: %.0f°\n", rec["bearing_deg"].GetNumberValue())
	}
	if remaining := rec["survival_hours_remaining"].GetNumberValue(); remaining != 0 {
		fmt.Fprintf(w, "  Survival window remaining: %.1f h\n", remaining)
	}
	_, err := fmt.Fprintf(w, "  Rationale: %s\n", rec["rationale"].GetStringValue())
	return err
}

func writeProfilesTable(w io.Writer, s *structpb.Struct) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDRAG\tWIND\tSURVIVAL (h)\tDESCRIPTION")
	for _, v := range s.GetFields()["profiles"].GetListValue().GetValues() {
		p := v.GetStructValue().GetFields()
		fmt.Fprintf(tw, "%s\t%.3g\t%.3g\t%.0f\t%s\n",
			p["id"].GetStringValue(),
			p["drag_factor"].GetNumberValue(),
			p["wind_factor"].GetNumberValue(),
			p["survival_hours"].GetNumberValue(),
			p["description"].GetStringValue())
	}
	return tw.Flush()
}
