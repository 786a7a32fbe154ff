package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// DateLayout is the timestamp format written to table files.
const DateLayout = "2006-01-02 15:04:05"

// indexHeaders name the leading row-index column of a table file.
var indexHeaders = map[string]bool{"": true, "Unnamed: 0": true}

// CSVTableStore keeps one CSV file per province under a directory.
type CSVTableStore struct {
	dir string
}

// NewCSVTableStore creates a store rooted at dir.
func NewCSVTableStore(dir string) *CSVTableStore {
	return &CSVTableStore{dir: dir}
}

// Path returns the file backing a province.
func (s *CSVTableStore) Path(province string) string {
	return filepath.Join(s.dir, sites.FileName(province))
}

// Read implements TableStore.
func (s *CSVTableStore) Read(province string) (types.Table, error) {
	f, err := os.Open(s.Path(province))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", types.ErrNoCache, province)
		}
		return nil, &types.StorageError{Backend: "csv", Err: err}
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("read %s: %w", f.Name(), err)}
	}
	return t, nil
}

// Write implements TableStore. The file is replaced atomically.
func (s *CSVTableStore) Write(province string, t types.Table) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &types.StorageError{Backend: "csv", Err: fmt.Errorf("create data dir: %w", err)}
	}

	path := s.Path(province)
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := WriteTable(tmp, t); err != nil {
		tmp.Close()
		return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write %s: %w", path, err)}
	}
	if err := tmp.Close(); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	return nil
}

// WriteTable writes a header with a leading unnamed index column followed by
// one row per article.
func WriteTable(w io.Writer, t types.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, types.Columns...)); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for i, a := range t {
		row := []string{
			strconv.Itoa(i),
			a.StartDate.Format(DateLayout),
			a.Country,
			a.Region,
			a.Subregion,
			a.SourceURL,
			a.SourceCategory,
			a.SourceTitle,
			a.SourceFullText,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses a table file. Columns are matched by header name; the
// index column is dropped.
func ReadTable(r io.Reader) (types.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return types.Table{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if i == 0 && indexHeaders[h] {
			continue
		}
		pos[h] = i
	}
	for _, col := range []string{"start_date", "source_full_text"} {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var t types.Table
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			if i, ok := pos[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}

		date, err := parseStoredDate(get("start_date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t = append(t, types.Article{
			StartDate:      date,
			Country:        get("country"),
			Region:         get("region"),
			Subregion:      get("subregion"),
			SourceURL:      get("source_url"),
			SourceCategory: get("source_category"),
			SourceTitle:    get("source_title"),
			SourceFullText: get("source_full_text"),
		})
	}
	return t, nil
}

func parseStoredDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad start_date %q", s)
}
