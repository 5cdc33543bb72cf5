package table

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/reefgenomics/symbiomisc"
)

// readDelimited parses an in-memory table. A zero delimiter is detected from
// the content.
func readDelimited(b []byte, delimiter rune) ([][]string, error) {
	if delimiter == 0 {
		delimiter = symbiomisc.DetermineDelimiterBytes(b)
	}

	r := csv.NewReader(bytes.NewReader(b))
	r.Comma = delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}

	for _, row := range rows {
		for k, v := range row {
			row[k] = strings.TrimSpace(v)
		}
	}

	return rows, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// headerIndex maps column names to positions and rejects duplicated names
// among the columns the caller needs.
func headerIndex(source string, header []string, needed ...string) (map[string]int, error) {
	out := make(map[string]int, len(header))
	dups := make(map[string]struct{})
	for i, v := range header {
		if _, exists := out[v]; exists {
			dups[v] = struct{}{}
			continue
		}
		out[v] = i
	}

	for _, v := range needed {
		if v == "" {
			continue
		}
		if _, dup := dups[v]; dup {
			return nil, symbiomisc.Malformed(source, "column %q appears more than once", v)
		}
	}

	return out, nil
}
