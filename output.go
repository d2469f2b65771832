package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"diskcli/core"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatSize(size *int64) string {
	if size == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d bytes", *size)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func printEntries(w io.Writer, entries []core.RemoteEntry) error {
	tw := newTable(w)
	for _, e := range entries {
		kind := "file"
		name := e.Name
		if e.IsFolder {
			kind = "folder"
			name += "/"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", kind, name, formatSize(e.Size), formatTime(e.Modified))
	}
	return tw.Flush()
}

func printVersions(w io.Writer, versions []core.VersionInfo) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tMODIFIED\tSIZE\tKEEP")
	for _, v := range versions {
		modified := v.Modified
		keep := ""
		if v.KeepForever {
			keep = "forever"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, formatTime(&modified), formatSize(v.Size), keep)
	}
	return tw.Flush()
}

func printAbout(w io.Writer, backend core.Backend, info core.AccountInfo) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "service:\t%s\n", backend)
	fmt.Fprintf(tw, "user:\t%s\n", info.User)
	fmt.Fprintf(tw, "used:\t%d bytes\n", info.UsedSpace)
	if info.TotalSpace > 0 {
		fmt.Fprintf(tw, "total:\t%d bytes\n", info.TotalSpace)
	} else {
		fmt.Fprintln(tw, "total:\tunlimited")
	}
	return tw.Flush()
}

func printReport(w io.Writer, verb string, report core.TransferReport) {
	for _, f := range report.Files {
		fmt.Fprintf(w, "%s %s\n", verb, f)
	}
	for _, f := range report.Skipped {
		fmt.Fprintf(w, "skipped %s (not a regular file)\n", f)
	}
	fmt.Fprintf(w, "%d file(s) %s, %d folder(s) created\n", len(report.Files), verb, len(report.Folders))
}

// printPartial lists what completed before a transfer aborted.
func printPartial(w io.Writer, verb string, report core.TransferReport) {
	if len(report.Files) == 0 {
		return
	}
	fmt.Fprintf(w, "%d file(s) %s before the failure:\n", len(report.Files), verb)
	for _, f := range report.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}
