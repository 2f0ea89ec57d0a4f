package follows

import (
	"encoding/csv"
	"encoding/json"
	"io"
)

// CSVHeader is the fixed column order of the CSV export.
var CSVHeader = []string{"title", "source_url", "stable_id", "last_read_marker", "last_read_url", "captured_at"}

// WriteCSV writes the items as RFC 4180 CSV. The header row is always
// written, zero items included.
func WriteCSV(w io.Writer, items []FollowItem) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, it := range items {
		row := []string{it.Title, it.SourceURL, it.StableID, it.LastReadMarker, it.LastReadURL, it.CapturedAt}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// ReadCSV parses an export previously written by WriteCSV, skipping the
// header row.
func ReadCSV(r io.Reader) ([]FollowItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	items := []FollowItem{}
	for i, row := range rows {
		if i == 0 {
			continue
		}

		items = append(items, FollowItem{
			Title:          row[0],
			SourceURL:      row[1],
			StableID:       row[2],
			LastReadMarker: row[3],
			LastReadURL:    row[4],
			CapturedAt:     row[5],
		})
	}

	return items, nil
}

// WriteJSON writes v with two-space indentation. Struct field order keeps
// the key order stable across runs.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(v)
}
