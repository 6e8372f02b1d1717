package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch <libid>",
	Short: "Assemble a complete FB2 file for one book",
	Long: "Stream the book's payload out of its archive, inline the cover and\n" +
		"every referenced illustration, and write the composed FB2 file.",
	Args: cobra.ExactArgs(1),
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

		out, err := lib.Fetch(libID)
		if err != nil {
			return err
		}

		path := fetchOutput
		if path == "" {
			path = fmt.Sprintf("%d.fb2", libID)
		}
		if path == "-" {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d bytes)\n", path, len(out))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file ('-' for stdout, default <libid>.fb2)")
}
