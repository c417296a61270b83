package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dt-pm-tools/confluence-sync/internal/render"
)

var convertFile string

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a Markdown file to Confluence storage format",
	Long: `Converts a Markdown file to Confluence storage format and writes it to stdout.
No Confluence access is needed, which makes it handy for previewing output.

Reads stdin when --file is omitted or "-".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			content []byte
			err     error
		)
		if convertFile == "" || convertFile == "-" {
			content, err = io.ReadAll(cmd.InOrStdin())
		} else {
			content, err = os.ReadFile(convertFile)
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		out, err := render.Convert(content)
		if err != nil {
			return fmt.Errorf("converting %s: %w", convertFile, err)
		}
		if out.Meta.Title != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Title: %s\n", out.Meta.Title)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Body)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertFile, "file", "f", "", "markdown file to convert (default stdin)")
	rootCmd.AddCommand(convertCmd)
}
