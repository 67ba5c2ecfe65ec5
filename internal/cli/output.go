package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/config"
	"github.com/glorpus-work/modsync/pkg/engine"
	"github.com/glorpus-work/modsync/pkg/model"
)

type outcomeView struct {
	engine.Outcome
	Message string `json:"error,omitempty"`
}

type reportView struct {
	Status   model.BatchStatus `json:"status"`
	Items    []outcomeView     `json:"items"`
	Optional []model.Identity  `json:"optional,omitempty"`
}

// printReport renders report and returns its combined failure, so partial
// and failed runs exit non-zero.
func printReport(cfg *config.Config, report *engine.Report) error {
	if jsonOutput(cfg) {
		view := reportView{Status: report.Status(), Optional: report.Optional}
		for _, o := range report.Items {
			view.Items = append(view.Items, outcomeView{Outcome: o, Message: o.Error()})
		}
		if err := printJSON(view); err != nil {
			return err
		}
		return report.Err()
	}

	if len(report.Items) == 0 {
		_, _ = fmt.Fprintln(stdout, "No mods found")
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSTATUS\tFROM\tTO\tDETAIL")
	for _, o := range report.Items {
		detail := o.Reason
		if o.Err != nil {
			detail = o.Err.Error()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.Name, o.Status, dash(o.FromVersion), dash(o.ToVersion), detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, id := range report.Optional {
		_, _ = fmt.Fprintf(stdout, "optional dependency not installed: %s\n", id)
	}

	fields := logger.Fields{
		"succeeded": len(report.Succeeded()),
		"skipped":   len(report.Skipped()),
		"planned":   len(report.Planned()),
		"failed":    len(report.Failed()),
	}
	switch report.Status() {
	case model.StatusSucceeded:
		logger.Success("Done", fields)
	case model.StatusPartial:
		logger.Warn("Done with failures", fields)
	default:
		logger.Error("Failed", fields)
	}
	return report.Err()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
