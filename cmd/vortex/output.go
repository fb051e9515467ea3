package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"vortex-go/internal/restore"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func printRestorePoints(w io.Writer, points []restore.RestorePoint, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	case outputTable, "":
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", format, outputTable, outputJSON)
	}

	if len(points) == 0 {
		fmt.Fprintln(w, "No restore points.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tCREATED\tDESCRIPTION\tSHADOW COPY")
	for _, p := range points {
		shadow := p.ShadowID
		if shadow == "" {
			shadow = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.SequenceNumber, p.DisplayTime(), p.Description, shadow)
	}
	return tw.Flush()
}

func printStorage(w io.Writer, s restore.StorageSummary) error {
	if len(s.PerVolume) == 0 {
		fmt.Fprintln(w, "No shadow storage in use.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, label := range s.Volumes() {
		fmt.Fprintf(tw, "%s\t%s\n", label, restore.FormatGiB(s.PerVolume[label]))
	}
	fmt.Fprintf(tw, "Total\t%s\n", restore.FormatGiB(s.TotalBytes))
	return tw.Flush()
}

func printAudit(w io.Writer, entries []restore.AuditEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Audit log is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tACTION\tNAME\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Timestamp, e.Action, e.Name, e.Description)
	}
	return tw.Flush()
}
