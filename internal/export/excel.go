// Package export renders admin analytics as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/openmunicipal/civicportal/internal/model"
)

// WriteStatsWorkbook writes an .xlsx with an Overview sheet and a Wards
// sheet to w.
func WriteStatsWorkbook(w io.Writer, ov *model.StatsOverview, wards []model.WardStats) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const overview = "Overview"
	// the default sheet is renamed rather than left dangling
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		return err
	}

	rows := [][]any{
		{"Metric", "Value"},
		{"Total complaints", ov.Total},
		{"Avg resolution (hours)", ov.AvgResolutionHrs},
	}
	for _, status := range sortedStatusKeys(ov.ByStatus) {
		rows = append(rows, []any{fmt.Sprintf("Status: %s", status), ov.ByStatus[status]})
	}
	for _, typ := range sortedTypeKeys(ov.ByType) {
		rows = append(rows, []any{fmt.Sprintf("Type: %s", typ), ov.ByType[typ]})
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(overview, cell, &row); err != nil {
			return err
		}
	}

	const wardSheet = "Wards"
	if _, err := f.NewSheet(wardSheet); err != nil {
		return err
	}
	header := []any{"Ward #", "Ward", "Total", "Open", "Resolved"}
	if err := f.SetSheetRow(wardSheet, "A1", &header); err != nil {
		return err
	}
	for i, ws := range wards {
		row := []any{ws.WardNumber, ws.WardName, ws.Total, ws.Open, ws.Resolved}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(wardSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func sortedStatusKeys(m map[model.ComplaintStatus]int64) []model.ComplaintStatus {
	keys := make([]model.ComplaintStatus, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedTypeKeys(m map[model.ComplaintType]int64) []model.ComplaintType {
	keys := make([]model.ComplaintType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
