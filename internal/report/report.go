// Package report exports processed recordings as an .xlsx workbook for
// offline review of tags, titles and place suffixes.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sound-memos-go/internal/types"
)

const sheetName = "Recordings"

var header = []string{
	"ID", "Created", "Duration (s)", "Audio URL", "Title", "Finalized",
	"Tags", "Location", "Weather", "Music", "Transcript",
}

// BuildWorkbook renders one row per recording. Callers own closing the
// returned file.
func BuildWorkbook(recs []*types.Recording) (*excelize.File, error) {
	f := excelize.NewFile()
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	for row, rec := range recs {
		values := []any{
			rec.ID,
			rec.CreatedAt.Format(time.RFC3339),
			rec.Duration.Seconds(),
			rec.AudioURL,
			rec.Title,
			rec.TitleFinal,
			strings.Join(rec.Tags, ", "),
			rec.Location,
			rec.Weather,
			musicColumn(rec),
			rec.Transcript,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}
	return f, nil
}

func musicColumn(rec *types.Recording) string {
	switch {
	case rec.MusicArtist != "" && rec.MusicTitle != "":
		return rec.MusicArtist + " - " + rec.MusicTitle
	case rec.MusicTitle != "":
		return rec.MusicTitle
	default:
		return ""
	}
}
