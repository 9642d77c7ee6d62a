// Package fetcher decodes CSV payloads fetched from the object store into frames.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter    rune            // default ','
	HasHeader    bool            // if true, first row is sent to HeaderCh instead of the row channel
	HeaderCh     chan<- []string // optional: receives the header row
	LazyQuotes   bool
	ValidateUTF8 bool // reject records containing invalid UTF-8
}

// StreamCSV reads UTF-8 CSV from r and sends records to a channel. A leading
// byte-order mark is dropped. Both channels are closed when processing completes;
// at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1
		reader.ReuseRecord = false

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.ValidateUTF8 {
				for _, field := range record {
					if !utf8.ValidString(field) {
						line, _ := reader.FieldPos(0)
						errCh <- eris.Errorf("csv: invalid UTF-8 on line %d", line)
						return
					}
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
