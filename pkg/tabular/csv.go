package tabular

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ctxCheckInterval is how many records are read between context checks.
const ctxCheckInterval = 10000

// ReadCSV loads a CSV file with a header row.
func ReadCSV(ctx context.Context, name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(ctx, name, f)
}

// Read loads CSV data with a header row from r. Records whose field count
// differs from the header are skipped and counted in Table.Malformed.
func Read(ctx context.Context, name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(bufio.NewReaderSize(r, 1<<20))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: missing header", name)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	// The header slice is reused by the reader.
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	t := New(name, header)
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(rec) != len(header) {
			t.Malformed++
			continue
		}
		_ = t.Append(rec)
	}

	return t, nil
}

// WriteCSV writes the table to path, creating parent directories.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := t.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes the header and all rows as CSV. Null cells are written empty.
func (t *Table) Write(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	cw := csv.NewWriter(bw)

	if err := cw.Write(t.header); err != nil {
		return err
	}
	record := make([]string, len(t.cols))
	for i := 0; i < t.rows; i++ {
		for c := range t.cols {
			record[c] = t.cols[c][i]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
