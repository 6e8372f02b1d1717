package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"flibrary/pkg/data"
)

// renderBooks prints catalog rows as a rounded table.
func renderBooks(books []*data.Book) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"LibID", "Title", "Authors", "Series", "#", "Size", "Date"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, WidthMax: 48},
		{Number: 3, WidthMax: 36},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	for _, b := range books {
		serno := ""
		if b.SerNo > 0 {
			serno = strconv.Itoa(b.SerNo)
		}
		date := ""
		if !b.Date.IsZero() {
			date = b.Date.Format("2006-01-02")
		}
		tw.AppendRow(table.Row{
			b.LibID, b.Title, b.AuthorsLabel(), b.Series, serno,
			fmt.Sprintf("%d", b.Size), date,
		})
	}
	return tw.Render()
}
