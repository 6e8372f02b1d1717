package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <libid>",
	Short: "Show which archives hold a book's payload, cover and illustrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		libID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("libid must be numeric: %q", args[0])
		}

		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()

		res, err := lib.Resolver()
		if err != nil {
			return err
		}
		loc := res.Resolve(libID)

		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Kind", "Archive"})
		for _, row := range []struct{ kind, path string }{
			{"payload", loc.Book},
			{"cover", loc.Cover},
			{"illustrations", loc.Images},
		} {
			path := row.path
			if path == "" {
				path = "(none)"
			}
			tw.AppendRow(table.Row{row.kind, path})
		}
		fmt.Println(tw.Render())
		return nil
	},
}
