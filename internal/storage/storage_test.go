package storage

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/pressgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleTable() types.Table {
	return types.Table{
		types.NewArticle("Nova Scotia", time.Date(2021, 3, 5, 10, 15, 0, 0, time.UTC),
			"https://novascotia.ca/news/release/?id=1", "Funding, announced", `Body with "quotes", commas`),
		types.NewArticle("Nova Scotia", time.Date(2021, 3, 3, 0, 0, 0, 0, time.UTC),
			"https://novascotia.ca/news/release/?id=2", "Second", "Second body"),
	}
}

func TestCSVTableStoreWriteRead(t *testing.T) {
	store := NewCSVTableStore(t.TempDir())
	want := sampleTable()

	if err := store.Write("Nova Scotia", want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(store.Path("nova scotia")) != "novascotia.csv" {
		t.Errorf("path = %s", store.Path("nova scotia"))
	}

	raw, err := os.ReadFile(store.Path("nova scotia"))
	if err != nil {
		t.Fatal(err)
	}
	firstLine, _, _ := strings.Cut(string(raw), "\n")
	if firstLine != ",start_date,country,region,subregion,source_url,source_category,source_title,source_full_text" {
		t.Errorf("header = %q", firstLine)
	}
	if !strings.Contains(string(raw), "\n0,2021-03-05 10:15:00,Canada,") {
		t.Errorf("first row not indexed/dated as expected:\n%s", raw)
	}

	got, err := store.Read("nova scotia")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("rows = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCSVTableStoreOverwrite(t *testing.T) {
	store := NewCSVTableStore(t.TempDir())
	if err := store.Write("pei", sampleTable()); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("pei", sampleTable()[:1]); err != nil {
		t.Fatal(err)
	}
	got, err := store.Read("pei")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected overwrite to leave 1 row, got %d", len(got))
	}

	entries, _ := os.ReadDir(filepath.Dir(store.Path("pei")))
	if len(entries) != 1 {
		t.Errorf("expected only the table file, found %d entries", len(entries))
	}
}

func TestCSVTableStoreMissing(t *testing.T) {
	store := NewCSVTableStore(t.TempDir())
	_, err := store.Read("yukon")
	if !errors.Is(err, types.ErrNoCache) {
		t.Errorf("expected ErrNoCache, got %v", err)
	}
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "csv" {
		t.Errorf("expected csv StorageError, got %v", err)
	}
}

func TestReadTableVariants(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		rows    int
		wantErr bool
	}{
		{
			name: "pandas index header",
			in:   "Unnamed: 0,start_date,country,region,subregion,source_url,source_category,source_title,source_full_text\n0,2021-03-05,Canada,Yukon,,https://yukon.ca/a,Government Website,A,body\n",
			rows: 1,
		},
		{
			name: "no index column",
			in:   "start_date,source_url,source_full_text\n2021-03-05T10:00:00Z,https://yukon.ca/a,body\n",
			rows: 1,
		},
		{name: "empty file", in: "", rows: 0},
		{name: "missing text column", in: "start_date,source_url\n2021-03-05,x\n", wantErr: true},
		{name: "bad date", in: ",start_date,source_full_text\n0,yesterday,body\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadTable(strings.NewReader(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.rows {
				t.Errorf("rows = %d, want %d", len(got), tt.rows)
			}
		})
	}
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "corpus.csv")
	sink, err := NewFileSink("csv", path, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = sink.Store(ctx, sampleTable())
	_ = sink.Store(ctx, sampleTable()[:1])
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := ReadTable(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("rows = %d, want 3", len(got))
	}
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	sink, err := NewFileSink("jsonl", path, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Store(context.Background(), sampleTable()); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if !strings.Contains(sc.Text(), `"source_full_text"`) {
			t.Errorf("line missing text field: %s", sc.Text())
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d", lines)
	}

	if _, err := NewFileSink("parquet", path, testLogger); err == nil {
		t.Error("expected unsupported format error")
	}
}

type failingSink struct{ stored int }

func (s *failingSink) Store(context.Context, types.Table) error {
	s.stored++
	return errors.New("down")
}
func (s *failingSink) Close() error { return nil }
func (s *failingSink) Name() string { return "failing" }

func TestMultiSinkContinuesPastFailure(t *testing.T) {
	bad := &failingSink{}
	path := filepath.Join(t.TempDir(), "c.csv")
	good, _ := NewCSVSink(path, testLogger)

	m := NewMultiSink([]Sink{bad, good}, testLogger)
	if err := m.Store(context.Background(), sampleTable()); err == nil {
		t.Error("expected first error to surface")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if bad.stored != 1 {
		t.Errorf("bad sink store calls = %d", bad.stored)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("good sink did not write: %v", err)
	}
}

func TestRunLog(t *testing.T) {
	log, err := OpenRunLog(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	defer log.Close()

	ctx := context.Background()
	base := time.Date(2021, 3, 10, 6, 0, 0, 0, time.UTC)
	w := types.Window{Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), End: base}

	first, err := log.Record(ctx, Run{Province: "ontario", Window: w, StartedAt: base, FinishedAt: base.Add(time.Minute), Fetched: 10, Added: 10, Total: 10})
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Error("expected generated ID")
	}
	_, _ = log.Record(ctx, Run{Province: "ontario", Window: w, StartedAt: base.Add(24 * time.Hour), FinishedAt: base.Add(25 * time.Hour), Fetched: 2, Added: 1, Total: 11})
	_, _ = log.Record(ctx, Run{Province: "yukon", Window: w, StartedAt: base, FinishedAt: base, Error: "fetch error"})

	recent, err := log.Recent(ctx, "ontario", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Total != 11 {
		t.Fatalf("recent = %+v", recent)
	}
	if !recent[1].Window.Start.Equal(w.Start) || !recent[1].StartedAt.Equal(base) {
		t.Errorf("times not preserved: %+v", recent[1])
	}

	all, _ := log.Recent(ctx, "", 0)
	if len(all) != 3 {
		t.Errorf("all runs = %d", len(all))
	}

	latest, err := log.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 2 || latest[0].Province != "ontario" || latest[0].Added != 1 || latest[1].Error != "fetch error" {
		t.Errorf("latest = %+v", latest)
	}
}
