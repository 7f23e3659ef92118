package record

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dnswd/cukai"
)

// DefaultCSVPath is where records go when nothing else is configured.
const DefaultCSVPath = "tax_records.csv"

// CSVStore appends records to a comma separated file with a header row.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	if path == "" {
		path = DefaultCSVPath
	}
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string { return s.path }

// Append writes r, preceded by the header when the file is new or empty.
func (s *CSVStore) Append(ctx context.Context, r cukai.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		_ = w.Write(cukai.RecordFields)
	}
	row := r.Row()
	line := make([]string, len(cukai.RecordFields))
	for i, name := range cukai.RecordFields {
		line[i] = row[name]
	}
	_ = w.Write(line)
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return f.Close()
}

// ReadAll decodes every row. Columns are matched by header name so files
// with extra or reordered columns still load.
func (s *CSVStore) ReadAll(ctx context.Context) ([]cukai.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	header, err := rd.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var out []cukai.Record
	for line := 2; ; line++ {
		cols, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(cols) {
				row[name] = cols[i]
			}
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *CSVStore) Close() error { return nil }
