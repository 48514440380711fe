package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/store"
)

var (
	templatesFormat string
	templatesYear   int
	templatesLimit  int
	templatesUser   string
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List generated evidence documents",
	Long:  "List the recorded evidence documents, most recent first, as a table, JSON, CSV or Markdown.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return templatesRun()
	},
}

func init() {
	templatesCmd.Flags().StringVar(&templatesFormat, "format", "table", "Output format: table, json, csv, markdown")
	templatesCmd.Flags().IntVar(&templatesYear, "year", 0, "Filter by year")
	templatesCmd.Flags().IntVar(&templatesLimit, "limit", 0, "Maximum number of records")
	templatesCmd.Flags().StringVar(&templatesUser, "user", "", "Username (default auth.username)")
	rootCmd.AddCommand(templatesCmd)
}

func templatesRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	user := templatesUser
	if user == "" {
		user = configCredentials().Username
	}

	templates, err := s.ListTemplates(context.Background(), store.TemplateFilter{
		Username: user,
		Year:     templatesYear,
		Limit:    templatesLimit,
	})
	if err != nil {
		return err
	}
	return writeTemplates(ui.Out, templatesFormat, templates)
}

func writeTemplates(out io.Writer, format string, templates []*models.UserTemplate) error {
	switch format {
	case "table":
		if len(templates) == 0 {
			ui.Info("No evidence documents recorded")
			return nil
		}
		return ui.TemplatesTable(templates)
	case "json":
		if templates == nil {
			templates = []*models.UserTemplate{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(templates)
	case "csv":
		w := csv.NewWriter(out)
		_ = w.Write([]string{"ID", "Username", "Year", "Month", "Source", "Name", "Path", "Updated"})
		for _, t := range templates {
			_ = w.Write([]string{
				t.ID, t.Username, strconv.Itoa(t.Year), strconv.Itoa(t.Month),
				t.Source, t.EvidenceUserDisplayName, t.Path, t.UpdatedAt.Format("2006-01-02"),
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(out, "# Evidence documents")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "| Period | Source | Name | Path |")
		fmt.Fprintln(out, "|--------|--------|------|------|")
		for _, t := range templates {
			fmt.Fprintf(out, "| %02d/%d | %s | %s | %s |\n", t.Month, t.Year, t.Source, t.EvidenceUserDisplayName, t.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s (use: table, json, csv, markdown)", format)
	}
}
