package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <dump.inpx>",
	Short: "Import a metadata dump into the catalog",
	Long: "Parse the INPX dump, resolve which archives hold each book, and\n" +
		"store the records in the catalog. Records already present are left\n" +
		"untouched.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()

		var (
			bar     *progressbar.ProgressBar
			current string
		)
		progress := func(member string, processed, total int64) {
			if member != current {
				if bar != nil {
					bar.Finish()
				}
				bar = progressbar.DefaultBytes(total, member)
				current = member
			}
			bar.Set64(processed)
		}

		result, err := lib.Import(args[0], progress)
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return err
		}

		fmt.Printf("\nimported %d books (%d duplicates, %d without ID skipped)\n",
			result.Imported, result.Duplicates, result.Skipped)
		return nil
	},
}
