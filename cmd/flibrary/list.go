package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()

		books, err := lib.List(listLimit)
		if err != nil {
			return err
		}
		total, err := lib.Count()
		if err != nil {
			return err
		}
		if total == 0 {
			fmt.Println("catalog is empty; run 'flibrary import' first")
			return nil
		}

		fmt.Println(renderBooks(books))
		fmt.Printf("%d of %d books\n", len(books), total)
		return nil
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "maximum rows to show (0 = all)")
}
