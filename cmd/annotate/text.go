package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pdf-annotator/internal/domain"
)

var (
	textPage int
	textJSON bool
)

var textCmd = &cobra.Command{
	Use:   "text [file.pdf]",
	Short: "List the text fragments of a page",
	Long: `Prints the positioned text fragments the edit-text tool can replace.
Positions and sizes are in page points.`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

func init() {
	textCmd.Flags().IntVarP(&textPage, "page", "p", 1, "page number (1-based)")
	textCmd.Flags().BoolVar(&textJSON, "json", false, "output fragments as JSON")
	rootCmd.AddCommand(textCmd)
}

func runText(cmd *cobra.Command, args []string) error {
	s, err := openSession(context.Background(), args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	page, err := s.Page(textPage)
	if err != nil {
		return fmt.Errorf("page %d: %w", textPage, err)
	}

	if textJSON {
		return outputFragmentsJSON(cmd, page.Fragments)
	}
	return outputFragmentsTable(cmd, page)
}

func outputFragmentsJSON(cmd *cobra.Command, frags []domain.TextFragment) error {
	if frags == nil {
		frags = []domain.TextFragment{}
	}
	data, err := json.MarshalIndent(frags, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fragments: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputFragmentsTable(cmd *cobra.Command, page domain.PageDescriptor) error {
	cmd.Printf("Page %d (%.0fx%.0f pt)\n", page.Number, page.Width, page.Height)
	if len(page.Fragments) == 0 {
		cmd.Println("No text found.")
		return nil
	}
	for _, f := range page.Fragments {
		cmd.Printf("  [%7.1f %7.1f] %5.1fpt  %s\n", f.X, f.Y, f.FontSize, f.Text)
	}
	return nil
}
