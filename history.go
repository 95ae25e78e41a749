package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"node.town/subtitles/db"
	"node.town/subtitles/etc"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived captions in a table",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int32P("limit", "n", 50, "Number of recent captions to show")
	historyCmd.Flags().String("run", "", "Show every caption of one serve run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	url := viper.GetString("database_url")
	if url == "" {
		return fmt.Errorf("missing SUBTITLES_DATABASE_URL or --database-url=")
	}

	_, _, _, _, dataLogger := createLoggers(logLevel())

	pool, queries, err := db.OpenDatabase(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer pool.Close()

	var captions []db.Caption
	if run, _ := cmd.Flags().GetString("run"); run != "" {
		captions, err = queries.CaptionsForRun(cmd.Context(), run)
	} else {
		limit, _ := cmd.Flags().GetInt32("limit")
		captions, err = queries.RecentCaptions(cmd.Context(), limit)
	}
	if err != nil {
		return fmt.Errorf("fetch captions: %w", err)
	}

	dataLogger.Debug("fetched captions", "count", len(captions))

	if len(captions) == 0 {
		fmt.Println("No captions found.")
		return nil
	}

	renderCaptions(captions)
	return nil
}

func renderCaptions(captions []db.Caption) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Created At", "Run", "Restart", "At", "Text"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, row := range captionRows(captions) {
		table.Append(row)
	}

	table.Render()
}

func captionRows(captions []db.Caption) [][]string {
	rows := make([][]string, 0, len(captions))
	for _, c := range captions {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.CreatedAt.Time.Local().Format("2006-01-02 15:04:05"),
			c.RunID,
			strconv.Itoa(int(c.Restart)),
			etc.Millis(c.CorrectedEndMs),
			c.Text,
		})
	}
	return rows
}
