package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nls90/bootplane/pkg/agent"
)

// Color variables for consistent styling across the commands.
var (
	colorHeader  = color.New(color.FgWhite, color.Bold)
	colorSuccess = color.New(color.FgGreen)
	colorError   = color.New(color.FgRed)
	colorMuted   = color.New(color.Faint)
)

// newStyledTable creates a pre-configured go-pretty table with StyleLight
// base, upper-case headers and no row separators.
func newStyledTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)

	style := table.StyleLight
	style.Options.SeparateRows = false
	style.Options.DrawBorder = false
	style.Options.SeparateColumns = true
	style.Format.Header = text.FormatUpper
	style.Format.HeaderAlign = text.AlignLeft
	t.SetStyle(style)

	return t
}

func renderUnitTable(units []agent.LogicalUnit) {
	t := newStyledTable()
	t.AppendHeader(table.Row{"id", "name", "volume group", "size (gib)", "status", "boot count"})
	for _, u := range units {
		t.AppendRow(table.Row{u.ID, u.Name, u.VolumeGroup, u.SizeGiB, u.StatusName, u.BootCount})
	}
	t.Render()
}
