package symbiomisc

import (
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// DetermineDelimiterBytes is DetermineDelimiter for an in-memory table. A tab
// in the header line settles it (SymPortal writes tab-delimited tables);
// otherwise the leading lines are handed to the detector.
func DetermineDelimiterBytes(b []byte) rune {
	header := b
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		header = b[:i]
	}
	if bytes.IndexByte(header, '\t') >= 0 {
		return '\t'
	}

	sample := b
	lines := 0
	for i, c := range b {
		if c == '\n' {
			lines++
			if lines == 20 {
				sample = b[:i+1]
				break
			}
		}
	}

	return DetermineDelimiter(bytes.NewReader(sample))
}
