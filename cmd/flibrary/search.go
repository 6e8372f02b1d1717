package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the catalog by title, author or series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()

		books, err := lib.Search(args[0])
		if err != nil {
			return err
		}
		if len(books) == 0 {
			fmt.Printf("nothing matches %q\n", args[0])
			return nil
		}

		fmt.Println(renderBooks(books))
		fmt.Printf("%d matches\n", len(books))
		return nil
	},
}
