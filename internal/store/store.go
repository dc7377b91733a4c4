// Package store persists a whole experiment hierarchy as a single
// SQLite snapshot file. Cell values are JSON-encoded and snappy
// compressed; series and electrodes are stored once and referenced by
// UUID so cross-table references resolve to the same logical objects
// after a read.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/icetab/icetab/internal/aligned"
	"github.com/icetab/icetab/internal/errors"
	"github.com/icetab/icetab/internal/icephys"
	"github.com/icetab/icetab/internal/schema"
	"github.com/icetab/icetab/internal/table"
)

const snapshotFormatVersion = "1"

// Table kinds in the snapshot catalog.
const (
	kindMain     = "main"
	kindCategory = "category"
	kindLevel    = "level"
)

const createSnapshotSQL = `
CREATE TABLE snapshot_info (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE objects (
	uid           TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	registered_as TEXT NOT NULL DEFAULT '',
	reg_ord       INTEGER NOT NULL DEFAULT 0,
	payload       BLOB NOT NULL
) WITHOUT ROWID;

CREATE TABLE tables (
	name        TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	description TEXT NOT NULL,
	ord         INTEGER NOT NULL,
	category_of TEXT NOT NULL DEFAULT ''
) WITHOUT ROWID;

CREATE TABLE columns (
	table_name  TEXT NOT NULL,
	name        TEXT NOT NULL,
	ord         INTEGER NOT NULL,
	description TEXT NOT NULL,
	required    INTEGER NOT NULL,
	indexed     INTEGER NOT NULL,
	reference   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (table_name, name)
) WITHOUT ROWID;

CREATE TABLE row_ids (
	table_name TEXT NOT NULL,
	pos        INTEGER NOT NULL,
	id         INTEGER NOT NULL,
	PRIMARY KEY (table_name, pos)
) WITHOUT ROWID;

CREATE TABLE cells (
	table_name  TEXT NOT NULL,
	column_name TEXT NOT NULL,
	pos         INTEGER NOT NULL,
	payload     BLOB NOT NULL,
	PRIMARY KEY (table_name, column_name, pos)
) WITHOUT ROWID;
`

// Write stores the experiment at path, replacing any existing snapshot.
func Write(ctx context.Context, path string, exp *icephys.Experiment) error {
	if exp == nil {
		return errors.New(errors.ErrCategoryStore, errors.CodeWriteFailed, "experiment is nil")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewStoreError(errors.CodeWriteFailed, "create snapshot directory", err)
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewStoreError(errors.CodeWriteFailed, "replace existing snapshot", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "open snapshot database", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "set journal mode", err)
	}
	if _, err := db.ExecContext(ctx, createSnapshotSQL); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "create snapshot schema", err)
	}

	sink := newObjectSink()
	tables, objects := 0, 0

	rec := exp.Recordings()
	ord := 0
	if err := writeTable(ctx, db, rec.Table(), kindMain, "", ord, sink); err != nil {
		return err
	}
	ord++
	tables++
	for _, catName := range rec.Group().Categories() {
		cat, err := rec.Group().Category(catName)
		if err != nil {
			return errors.NewStoreError(errors.CodeWriteFailed, "resolve category", err)
		}
		if err := writeTable(ctx, db, cat, kindCategory, rec.Table().Name(), ord, sink); err != nil {
			return err
		}
		ord++
		tables++
	}
	for _, lvl := range []*table.Table{
		exp.SimultaneousRecordings().Table(),
		exp.SequentialRecordings().Table(),
		exp.Repetitions().Table(),
		exp.ExperimentalConditions().Table(),
	} {
		if err := writeTable(ctx, db, lvl, kindLevel, "", ord, sink); err != nil {
			return err
		}
		ord++
		tables++
	}

	// Registered objects are written even when no cell references them.
	for _, el := range exp.Electrodes() {
		sink.addElectrode(el)
	}
	for _, ts := range exp.Stimuli() {
		sink.addSeries(ts)
	}
	for _, ts := range exp.Acquisitions() {
		sink.addSeries(ts)
	}
	objects, err = writeObjects(ctx, db, exp, sink)
	if err != nil {
		return err
	}

	infoStmt, err := db.PrepareContext(ctx, "INSERT INTO snapshot_info (key, value) VALUES (?, ?)")
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "prepare snapshot info", err)
	}
	defer infoStmt.Close()
	for _, kv := range [][2]string{
		{"format_version", snapshotFormatVersion},
		{"created_at", time.Now().UTC().Format(time.RFC3339)},
	} {
		if _, err := infoStmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return errors.NewStoreError(errors.CodeWriteFailed, "write snapshot info", err)
		}
	}

	// Checkpoint WAL and switch to DELETE mode so the snapshot is a
	// single immutable file.
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "checkpoint WAL", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "finalize journal mode", err)
	}
	if err := db.Close(); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "close snapshot database", err)
	}

	log.Printf("store: wrote snapshot %s (%d tables, %d objects)", path, tables, objects)
	return nil
}

func writeTable(ctx context.Context, db *sql.DB, tbl *table.Table, kind, categoryOf string, ord int, sink *objectSink) error {
	if _, err := db.ExecContext(ctx,
		"INSERT INTO tables (name, kind, description, ord, category_of) VALUES (?, ?, ?, ?, ?)",
		tbl.Name(), kind, tbl.Description(), ord, categoryOf); err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "write table catalog row", err)
	}

	colStmt, err := db.PrepareContext(ctx,
		"INSERT INTO columns (table_name, name, ord, description, required, indexed, reference) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "prepare column insert", err)
	}
	defer colStmt.Close()
	for i, col := range tbl.Columns() {
		ref := ""
		if col.Target() != nil {
			ref = col.Target().Name()
		}
		if _, err := colStmt.ExecContext(ctx, tbl.Name(), col.Name(), i,
			col.Description(), col.Required(), col.Indexed(), ref); err != nil {
			return errors.NewStoreError(errors.CodeWriteFailed, "write column catalog row", err)
		}
	}

	idStmt, err := db.PrepareContext(ctx, "INSERT INTO row_ids (table_name, pos, id) VALUES (?, ?, ?)")
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "prepare row id insert", err)
	}
	defer idStmt.Close()
	for pos, id := range tbl.IDs() {
		if _, err := idStmt.ExecContext(ctx, tbl.Name(), pos, id); err != nil {
			return errors.NewStoreError(errors.CodeWriteFailed, "write row id", err)
		}
	}

	cellStmt, err := db.PrepareContext(ctx,
		"INSERT INTO cells (table_name, column_name, pos, payload) VALUES (?, ?, ?, ?)")
	if err != nil {
		return errors.NewStoreError(errors.CodeWriteFailed, "prepare cell insert", err)
	}
	defer cellStmt.Close()
	for _, col := range tbl.Columns() {
		for pos := 0; pos < tbl.Len(); pos++ {
			blob, err := marshalCell(col.Cell(pos), sink)
			if err != nil {
				return err
			}
			if _, err := cellStmt.ExecContext(ctx, tbl.Name(), col.Name(), pos, blob); err != nil {
				return errors.NewStoreError(errors.CodeWriteFailed, "write cell", err)
			}
		}
	}
	return nil
}

func writeObjects(ctx context.Context, db *sql.DB, exp *icephys.Experiment, sink *objectSink) (int, error) {
	stmt, err := db.PrepareContext(ctx,
		"INSERT INTO objects (uid, kind, registered_as, reg_ord, payload) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, errors.NewStoreError(errors.CodeWriteFailed, "prepare object insert", err)
	}
	defer stmt.Close()

	registered := make(map[string]registration)
	for i, el := range exp.Electrodes() {
		registered[el.UID.String()] = registration{as: "electrode", ord: i}
	}
	for i, ts := range exp.Stimuli() {
		registered[ts.UID.String()] = registration{as: "stimulus", ord: i}
	}
	for i, ts := range exp.Acquisitions() {
		registered[ts.UID.String()] = registration{as: "acquisition", ord: i}
	}

	count := 0
	for _, uid := range sortedSeriesUIDs(sink) {
		ts := sink.series[uid]
		blob, err := marshalSeries(ts)
		if err != nil {
			return 0, err
		}
		reg := registered[ts.UID.String()]
		if _, err := stmt.ExecContext(ctx, ts.UID.String(), "series", reg.as, reg.ord, blob); err != nil {
			return 0, errors.NewStoreError(errors.CodeWriteFailed, "write series object", err)
		}
		count++
	}
	for _, uid := range sortedElectrodeUIDs(sink) {
		el := sink.electrodes[uid]
		blob, err := marshalElectrode(el)
		if err != nil {
			return 0, err
		}
		reg := registered[el.UID.String()]
		if _, err := stmt.ExecContext(ctx, el.UID.String(), "electrode", reg.as, reg.ord, blob); err != nil {
			return 0, errors.NewStoreError(errors.CodeWriteFailed, "write electrode object", err)
		}
		count++
	}
	return count, nil
}

type registration struct {
	as  string
	ord int
}

// Read loads the experiment stored at path.
func Read(ctx context.Context, path string) (*icephys.Experiment, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "stat snapshot", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "open snapshot database", err)
	}
	defer db.Close()

	var version string
	err = db.QueryRowContext(ctx,
		"SELECT value FROM snapshot_info WHERE key = 'format_version'").Scan(&version)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "read format version", err)
	}
	if version != snapshotFormatVersion {
		return nil, errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
			"unsupported snapshot format version %q", version)
	}

	exp := icephys.NewExperiment()
	pool, err := readObjects(ctx, db, exp)
	if err != nil {
		return nil, err
	}
	if err := readTables(ctx, db, exp, pool); err != nil {
		return nil, err
	}
	return exp, nil
}

func readObjects(ctx context.Context, db *sql.DB, exp *icephys.Experiment) (*objectPool, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT uid, kind, registered_as, reg_ord, payload FROM objects ORDER BY registered_as, reg_ord")
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "query objects", err)
	}
	defer rows.Close()

	pool := newObjectPool()
	for rows.Next() {
		var uid, kind, registeredAs string
		var regOrd int
		var blob []byte
		if err := rows.Scan(&uid, &kind, &registeredAs, &regOrd, &blob); err != nil {
			return nil, errors.NewStoreError(errors.CodeReadFailed, "scan object row", err)
		}
		switch kind {
		case "series":
			ts, err := unmarshalSeries(blob)
			if err != nil {
				return nil, err
			}
			pool.series[uid] = ts
			switch registeredAs {
			case "stimulus":
				if err := exp.AddStimulus(ts); err != nil {
					return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "register stimulus", err)
				}
			case "acquisition":
				if err := exp.AddAcquisition(ts); err != nil {
					return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "register acquisition", err)
				}
			}
		case "electrode":
			el, err := unmarshalElectrode(blob)
			if err != nil {
				return nil, err
			}
			pool.electrodes[uid] = el
			if registeredAs == "electrode" {
				if err := exp.AddElectrode(el); err != nil {
					return nil, errors.NewStoreError(errors.CodeCorruptSnapshot, "register electrode", err)
				}
			}
		default:
			return nil, errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
				"unknown object kind %q", kind)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "iterate objects", err)
	}
	return pool, nil
}

// catalogTable is one row of the snapshot's tables catalog.
type catalogTable struct {
	name        string
	kind        string
	description string
	categoryOf  string
}

// catalogColumn is one row of the snapshot's columns catalog.
type catalogColumn struct {
	name        string
	description string
	required    bool
	indexed     bool
	reference   string
}

func readTables(ctx context.Context, db *sql.DB, exp *icephys.Experiment, pool *objectPool) error {
	cats, err := readCatalog(ctx, db)
	if err != nil {
		return err
	}

	// Level tables exist up front so their reference links are in place.
	rec := exp.Recordings()
	byName := map[string]*table.Table{
		rec.Table().Name():                          rec.Table(),
		exp.SimultaneousRecordings().Table().Name(): exp.SimultaneousRecordings().Table(),
		exp.SequentialRecordings().Table().Name():   exp.SequentialRecordings().Table(),
		exp.Repetitions().Table().Name():            exp.Repetitions().Table(),
		exp.ExperimentalConditions().Table().Name(): exp.ExperimentalConditions().Table(),
	}

	// First pass: declare columns and attach categories while empty.
	for _, cat := range cats {
		cols, err := readColumns(ctx, db, cat.name)
		if err != nil {
			return err
		}
		switch cat.kind {
		case kindMain, kindLevel:
			tbl, ok := byName[cat.name]
			if !ok {
				return errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
					"snapshot table %q is not part of the hierarchy", cat.name)
			}
			if err := declareColumns(tbl, cols, byName); err != nil {
				return err
			}
		case kindCategory:
			tbl := table.New(cat.name, cat.description)
			if err := declareColumns(tbl, cols, byName); err != nil {
				return err
			}
			if err := rec.AddCategory(tbl); err != nil {
				return errors.NewStoreError(errors.CodeCorruptSnapshot, "attach category", err)
			}
			byName[cat.name] = tbl
		default:
			return errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
				"unknown table kind %q", cat.kind)
		}
	}

	// Second pass: replay rows bottom-up. The catalog order puts the
	// recordings group first and each level before the one above it.
	for _, cat := range cats {
		switch cat.kind {
		case kindMain:
			if err := replayGroupRows(ctx, db, rec, cats, pool); err != nil {
				return err
			}
		case kindLevel:
			if err := replayTableRows(ctx, db, byName[cat.name], pool); err != nil {
				return err
			}
		}
	}
	return nil
}

func readCatalog(ctx context.Context, db *sql.DB) ([]catalogTable, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name, kind, description, category_of FROM tables ORDER BY ord")
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "query tables catalog", err)
	}
	defer rows.Close()

	var out []catalogTable
	for rows.Next() {
		var ct catalogTable
		if err := rows.Scan(&ct.name, &ct.kind, &ct.description, &ct.categoryOf); err != nil {
			return nil, errors.NewStoreError(errors.CodeReadFailed, "scan table catalog row", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func readColumns(ctx context.Context, db *sql.DB, tableName string) ([]catalogColumn, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name, description, required, indexed, reference FROM columns WHERE table_name = ? ORDER BY ord",
		tableName)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "query columns catalog", err)
	}
	defer rows.Close()

	var out []catalogColumn
	for rows.Next() {
		var cc catalogColumn
		if err := rows.Scan(&cc.name, &cc.description, &cc.required, &cc.indexed, &cc.reference); err != nil {
			return nil, errors.NewStoreError(errors.CodeReadFailed, "scan column catalog row", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// declareColumns adds the cataloged columns that the freshly built
// table does not already carry.
func declareColumns(tbl *table.Table, cols []catalogColumn, byName map[string]*table.Table) error {
	for _, cc := range cols {
		if _, ok := tbl.Column(cc.name); ok {
			continue
		}
		var target *table.Table
		if cc.reference != "" {
			t, ok := byName[cc.reference]
			if !ok {
				return errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
					"column %q of %q references unknown table %q", cc.name, tbl.Name(), cc.reference)
			}
			target = t
		}
		spec := schema.ColumnSpec{
			Name:        cc.name,
			Description: cc.description,
			Required:    cc.required,
			Indexed:     cc.indexed,
			Reference:   cc.reference,
		}
		if err := tbl.AddColumn(spec, nil, target); err != nil {
			return errors.NewStoreError(errors.CodeCorruptSnapshot, "declare column", err)
		}
	}
	return nil
}

// tableRows holds the decoded rows of one snapshot table.
type tableRows struct {
	ids   []int
	cells map[string][]interface{}
}

func readRows(ctx context.Context, db *sql.DB, tableName string, pool *objectPool) (*tableRows, error) {
	idRows, err := db.QueryContext(ctx,
		"SELECT id FROM row_ids WHERE table_name = ? ORDER BY pos", tableName)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "query row ids", err)
	}
	defer idRows.Close()

	tr := &tableRows{cells: make(map[string][]interface{})}
	for idRows.Next() {
		var id int
		if err := idRows.Scan(&id); err != nil {
			return nil, errors.NewStoreError(errors.CodeReadFailed, "scan row id", err)
		}
		tr.ids = append(tr.ids, id)
	}
	if err := idRows.Err(); err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "iterate row ids", err)
	}

	cellRows, err := db.QueryContext(ctx,
		"SELECT column_name, pos, payload FROM cells WHERE table_name = ? ORDER BY column_name, pos",
		tableName)
	if err != nil {
		return nil, errors.NewStoreError(errors.CodeReadFailed, "query cells", err)
	}
	defer cellRows.Close()

	for cellRows.Next() {
		var column string
		var pos int
		var blob []byte
		if err := cellRows.Scan(&column, &pos, &blob); err != nil {
			return nil, errors.NewStoreError(errors.CodeReadFailed, "scan cell", err)
		}
		if pos < 0 || pos >= len(tr.ids) {
			return nil, errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
				"cell position %d out of range for table %q", pos, tableName)
		}
		v, err := unmarshalCell(blob, pool)
		if err != nil {
			return nil, err
		}
		if tr.cells[column] == nil {
			tr.cells[column] = make([]interface{}, len(tr.ids))
		}
		tr.cells[column][pos] = v
	}
	return tr, cellRows.Err()
}

// replayTableRows re-adds a plain table's rows through the public API,
// preserving the original ids.
func replayTableRows(ctx context.Context, db *sql.DB, tbl *table.Table, pool *objectPool) error {
	tr, err := readRows(ctx, db, tbl.Name(), pool)
	if err != nil {
		return err
	}
	for pos := range tr.ids {
		id := tr.ids[pos]
		values := make(map[string]interface{}, len(tr.cells))
		for column, cells := range tr.cells {
			values[column] = cells[pos]
		}
		if _, err := tbl.AddRow(table.RowInput{ID: &id, Values: values}); err != nil {
			return errors.NewStoreError(errors.CodeCorruptSnapshot,
				fmt.Sprintf("replay row %d of %q", id, tbl.Name()), err)
		}
	}
	return nil
}

// replayGroupRows re-adds the recordings group rows, carrying each
// category's payload so the aligned append keeps every table in step.
func replayGroupRows(ctx context.Context, db *sql.DB, rec *icephys.RecordingsTable, cats []catalogTable, pool *objectPool) error {
	main, err := readRows(ctx, db, rec.Table().Name(), pool)
	if err != nil {
		return err
	}
	catRows := make(map[string]*tableRows)
	for _, cat := range cats {
		if cat.kind != kindCategory {
			continue
		}
		tr, err := readRows(ctx, db, cat.name, pool)
		if err != nil {
			return err
		}
		if len(tr.ids) != len(main.ids) {
			return errors.Newf(errors.ErrCategoryStore, errors.CodeCorruptSnapshot,
				"category %q has %d rows, main table has %d", cat.name, len(tr.ids), len(main.ids))
		}
		catRows[cat.name] = tr
	}

	for pos := range main.ids {
		id := main.ids[pos]
		values := make(map[string]interface{}, len(main.cells))
		for column, cells := range main.cells {
			values[column] = cells[pos]
		}
		categories := make(map[string]map[string]interface{}, len(catRows))
		for name, tr := range catRows {
			payload := make(map[string]interface{}, len(tr.cells))
			for column, cells := range tr.cells {
				payload[column] = cells[pos]
			}
			categories[name] = payload
		}
		in := aligned.RowInput{ID: &id, Values: values, Categories: categories}
		if _, err := rec.Group().AddRow(in); err != nil {
			return errors.NewStoreError(errors.CodeCorruptSnapshot,
				fmt.Sprintf("replay recording %d", id), err)
		}
	}
	return nil
}

func sortedSeriesUIDs(sink *objectSink) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(sink.series))
	for uid := range sink.series {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func sortedElectrodeUIDs(sink *objectSink) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(sink.electrodes))
	for uid := range sink.electrodes {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
