package filestore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"elo-ledger/server/ledger"
)

// column is one CSV field. since is the schema version that introduced it;
// version 1 columns are required, later ones are back-filled with def.
type column struct {
	name  string
	since int
	def   string
}

type schema struct {
	name    string
	columns []column
}

func (sc schema) header() []string {
	out := make([]string, len(sc.columns))
	for i, c := range sc.columns {
		out[i] = c.name
	}
	return out
}

func (sc schema) version() int {
	v := 1
	for _, c := range sc.columns {
		v = max(v, c.since)
	}
	return v
}

// table is a decoded file with rows normalised to the current column order.
type table struct {
	rows    [][]string
	version int  // version of the header found on disk
	stale   bool // on-disk header differs from the current schema
}

var (
	ledgerSchema = schema{name: "ledger", columns: []column{
		{name: "rating", since: 1},
		{name: "opponent", since: 1},
		{name: "result", since: 1},
		{name: "colour", since: 1},
		{name: "timestamp", since: 1},
	}}

	resultSchema = schema{name: "results", columns: []column{
		{name: "timestamp", since: 1},
		{name: "game", since: 1},
		{name: "player1", since: 1},
		{name: "player2", since: 1},
		{name: "result", since: 1},
		{name: "probability", since: 1},
		{name: "player1_change", since: 2},
		{name: "player2_change", since: 2},
		{name: "comments", since: 3, def: "[]"},
	}}

	pendingSchema = schema{name: "pending", columns: []column{
		{name: "timestamp", since: 1},
		{name: "game", since: 1},
		{name: "player1", since: 1},
		{name: "player2", since: 1},
		{name: "result", since: 1},
		{name: "probability", since: 1},
		{name: "player1_change", since: 2},
		{name: "player2_change", since: 2},
		{name: "comments", since: 3, def: "[]"},
		{name: "submission_timestamp", since: 4},
		{name: "notes_to_admin", since: 4},
		{name: "id", since: 5},
	}}

	deletedSchema = schema{name: "deleted", columns: []column{
		{name: "original_timestamp", since: 1},
		{name: "deletion_timestamp", since: 1},
		{name: "game", since: 1},
		{name: "player1", since: 1},
		{name: "player2", since: 1},
		{name: "result", since: 1},
		{name: "probability", since: 1},
	}}
)

// read loads path. A missing file yields ok=false and no error.
func (sc schema) read(path string) (t table, ok bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return table{}, false, nil
	}
	if err != nil {
		return table{}, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return table{version: sc.version()}, true, nil
	}
	if err != nil {
		return table{}, false, corrupt(path, err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	t.version = 1
	index := make([]int, len(sc.columns))
	for i, c := range sc.columns {
		j, found := pos[c.name]
		if !found {
			if c.since == 1 {
				return table{}, false, corrupt(path, fmt.Errorf("missing %s column %q", sc.name, c.name))
			}
			index[i] = -1
			t.stale = true
			continue
		}
		index[i] = j
		t.version = max(t.version, c.since)
	}
	if len(header) != len(sc.columns) {
		t.stale = true
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, false, corrupt(path, err)
		}
		row := make([]string, len(sc.columns))
		for i, j := range index {
			switch {
			case j < 0 || j >= len(rec):
				row[i] = sc.columns[i].def
			default:
				row[i] = rec[j]
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, true, nil
}

// write replaces path with the full current header and rows.
func (sc schema) write(path string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(sc.header()); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return replaceFile(path, buf.Bytes())
}

// append adds one row. A missing file gets a header first; a file written
// under an older schema is rewritten with defaults back-filled.
func (sc schema) append(path string, row []string) error {
	t, ok, err := sc.read(path)
	if err != nil {
		return err
	}
	if !ok || t.stale {
		return sc.write(path, append(t.rows, row))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

// replaceFile writes through a temp file in the same directory so readers
// never see a half-written log.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func corrupt(path string, err error) error {
	return ledger.Wrap(ledger.CodeCorruptStorage, "read "+path, err)
}
