package cmd

import (
	"strconv"

	"github.com/camden-git/facesession/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 3, 64)
}

func formatOptional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func faceRows(records []models.FaceRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.TrackID, r.Match, formatScore(r.Score), formatOptional(r.FrontalizedImageURL), r.ThumbnailURL})
	}
	return rows
}

func identifiedCount(records []models.FaceRecord) int {
	n := 0
	for i := range records {
		if records[i].Identified() {
			n++
		}
	}
	return n
}

var faceHeaders = []string{"Track", "Match", "Score", "Frontal", "Thumbnail"}
