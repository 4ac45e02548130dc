package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ternarybob/cartograb/internal/models"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// printRunSummary renders the end-of-run counts
func printRunSummary(run *models.RunRecord, ledgerEntries int) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("%s %s", run.Mode, run.Kind))
	t.AppendRows([]table.Row{
		{"Run", run.ID},
		{"Pages", fmt.Sprintf("%d (%d failed)", run.Pages, run.PagesFailed)},
		{"Assets", run.Assets},
		{"Succeeded", run.Succeeded},
		{"Failed", run.Failed},
	})
	if run.Mode == models.RunModeExport {
		t.AppendRow(table.Row{"Files", run.Files})
	} else {
		t.AppendRow(table.Row{"Rows x columns", fmt.Sprintf("%d x %d", run.Rows, run.Columns)})
	}
	t.AppendRows([]table.Row{
		{"Output", run.OutputPath},
		{"Ledger", fmt.Sprintf("%s (%d entries)", run.LedgerPath, ledgerEntries)},
		{"Elapsed", run.Duration().Round(time.Second)},
	})
	if run.Aborted != "" {
		t.AppendRow(table.Row{"Aborted", run.Aborted})
	}
	t.Render()
}

// printRuns renders the run history listing
func printRuns(runs []*models.RunRecord) {
	t := newTable()
	t.AppendHeader(table.Row{"Run", "Mode", "Kind", "Started", "Elapsed", "Pages", "Assets", "OK", "Failed", "Output", "Aborted"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.Mode,
			r.Kind,
			humanize.Time(r.StartedAt),
			r.Duration().Round(time.Second),
			r.Pages,
			r.Assets,
			r.Succeeded,
			r.Failed,
			r.OutputPath,
			r.Aborted,
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d runs", len(runs))})
	t.Render()
}
