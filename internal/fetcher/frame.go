package fetcher

import (
	"bytes"
	"context"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/customer-pipeline/internal/frame"
)

// ErrEmptyCSV is returned when the payload has no header row.
var ErrEmptyCSV = eris.New("csv: empty input, no header row")

// DecodeFrame parses a CSV payload with a header row into a frame. Every cell is a
// string; empty fields decode as null. Short records are padded with nulls, long
// records are rejected.
func DecodeFrame(ctx context.Context, data []byte) (*frame.Frame, error) {
	return ReadFrame(ctx, bytes.NewReader(data))
}

// ReadFrame is DecodeFrame over a stream.
func ReadFrame(ctx context.Context, r io.Reader) (*frame.Frame, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{
		HasHeader:    true,
		HeaderCh:     headerCh,
		ValidateUTF8: true,
	})

	var f *frame.Frame
	var decodeErr error
	line := 1
	for record := range rowCh {
		line++
		if decodeErr != nil {
			continue
		}
		if f == nil {
			f = frame.New(<-headerCh...)
		}
		if len(record) > len(f.Columns) {
			decodeErr = eris.Errorf("csv: line %d has %d fields, header has %d", line, len(record), len(f.Columns))
			continue
		}
		row := make([]any, len(f.Columns))
		for i, v := range record {
			if v != "" {
				row[i] = v
			}
		}
		f.Rows = append(f.Rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	if f == nil {
		select {
		case header := <-headerCh:
			f = frame.New(header...)
		default:
			return nil, ErrEmptyCSV
		}
	}
	if dup := duplicateColumn(f.Columns); dup != "" {
		return nil, eris.Errorf("csv: duplicate column %q in header", dup)
	}
	return f, nil
}

func duplicateColumn(cols []string) string {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return c
		}
		seen[c] = true
	}
	return ""
}
