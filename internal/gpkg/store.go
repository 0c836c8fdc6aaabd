// Package gpkg reads and writes feature layers in a GeoPackage (SQLite)
// file.
package gpkg

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/service-area/internal/crs"
	"github.com/sells-group/service-area/internal/layer"
)

var (
	// ErrLayerNotFound is returned when a named layer is absent.
	ErrLayerNotFound = eris.New("gpkg: layer not found")
	// ErrDuplicateLayer is returned when a layer name is written twice.
	ErrDuplicateLayer = eris.New("gpkg: layer already written")
	// ErrReadOnly is returned when writing to a package opened with Open.
	ErrReadOnly = eris.New("gpkg: store is read-only")
	// ErrClosed is returned for operations after Commit or Close.
	ErrClosed = eris.New("gpkg: store is closed")
	// ErrMissingGeometry is returned when a feature has a NULL or empty
	// geometry.
	ErrMissingGeometry = eris.New("gpkg: feature has no geometry")
)

const (
	fidColumn  = "fid"
	geomColumn = "geom"
)

// Info summarises one feature layer.
type Info struct {
	Name         string
	GeometryType string
	SRID         int
	Features     int64
}

// ReadOptions controls how ReadLayerWith treats incomplete features.
type ReadOptions struct {
	// SkipMissingGeometry drops features without geometry instead of failing.
	SkipMissingGeometry bool
}

// Store is a GeoPackage opened for reading (Open) or built fresh for one run
// (Create).
type Store struct {
	db       *sql.DB
	path     string
	tmpPath  string
	readOnly bool
	closed   bool
	written  map[string]bool
}

// Create starts a new package at path. Any file already at path is removed
// first so stale layers from a previous run cannot leak into this one. Layers
// are written to a temporary file beside path that Commit moves into place.
func Create(path string) (*Store, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "gpkg: remove existing %s", p)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "gpkg: create dir %s", dir)
	}
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()))

	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: open")
	}
	// One connection keeps the temporary file's schema visible to every
	// statement and makes Close deterministic.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, tmpPath: tmpPath, written: make(map[string]bool)}
	for _, stmt := range []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		fmt.Sprintf("PRAGMA user_version = %d", userVersion),
		gpkgMigration,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = s.Close()
			return nil, eris.Wrap(err, "gpkg: initialise")
		}
	}

	zap.L().Debug("gpkg: created package",
		zap.String("path", path),
		zap.String("tmp_path", tmpPath),
	)
	return s, nil
}

// Open opens an existing package read-only.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "gpkg: open %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: open %s", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "gpkg: open %s", path)
	}

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'gpkg_contents'`).Scan(&n)
	if err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "gpkg: inspect %s", path)
	}
	if n == 0 {
		db.Close()
		return nil, eris.Errorf("gpkg: %s is not a GeoPackage (no gpkg_contents)", path)
	}

	return &Store{db: db, path: path, readOnly: true}, nil
}

// Path returns the final location of the package.
func (s *Store) Path() string { return s.path }

// Commit finalises a store returned by Create and moves it into place.
func (s *Store) Commit() error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		_ = os.Remove(s.tmpPath)
		return eris.Wrap(err, "gpkg: close before commit")
	}
	if err := os.Rename(s.tmpPath, s.path); err != nil {
		_ = os.Remove(s.tmpPath)
		return eris.Wrapf(err, "gpkg: move package into %s", s.path)
	}
	return nil
}

// Close releases the store. An uncommitted store created with Create is
// discarded, leaving nothing at its path.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if !s.readOnly {
		if rmErr := os.Remove(s.tmpPath); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	if err != nil {
		return eris.Wrap(err, "gpkg: close")
	}
	return nil
}

// Layers lists the feature layers in the package, in table-name order.
func (s *Store) Layers(ctx context.Context) ([]Info, error) {
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT gc.table_name, gc.geometry_type_name, gc.srs_id
		FROM gpkg_geometry_columns gc
		JOIN gpkg_contents c ON c.table_name = gc.table_name
		WHERE c.data_type = 'features'
		ORDER BY gc.table_name`)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: list layers")
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Name, &info.GeometryType, &info.SRID); err != nil {
			return nil, eris.Wrap(err, "gpkg: scan layer")
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gpkg: iterate layers")
	}

	for i := range infos {
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(infos[i].Name))
		if err := s.db.QueryRowContext(ctx, q).Scan(&infos[i].Features); err != nil {
			return nil, eris.Wrapf(err, "gpkg: count %s", infos[i].Name)
		}
	}
	return infos, nil
}

// ReadLayer loads a feature layer in feature-id order. A feature with a NULL
// or empty geometry fails with ErrMissingGeometry.
func (s *Store) ReadLayer(ctx context.Context, name string) (*layer.Layer, error) {
	return s.ReadLayerWith(ctx, name, ReadOptions{})
}

// ReadLayerWith is ReadLayer with explicit options. Skipped features are
// counted in the log.
func (s *Store) ReadLayerWith(ctx context.Context, name string, opts ReadOptions) (*layer.Layer, error) {
	if s.closed {
		return nil, ErrClosed
	}

	var geomCol, typeName string
	var srid int
	err := s.db.QueryRowContext(ctx, `
		SELECT column_name, geometry_type_name, srs_id
		FROM gpkg_geometry_columns WHERE table_name = ?`, name).Scan(&geomCol, &typeName, &srid)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrLayerNotFound, "gpkg: read layer %q", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: read layer %q metadata", name)
	}

	pkCol, columns, err := s.tableColumns(ctx, name, geomCol)
	if err != nil {
		return nil, err
	}

	selectCols := []string{quoteIdent(pkCol), quoteIdent(geomCol)}
	for _, c := range columns {
		selectCols = append(selectCols, quoteIdent(c.Name))
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(selectCols, ", "), quoteIdent(name), quoteIdent(pkCol))

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "gpkg: query layer %q", name)
	}
	defer rows.Close()

	family, _ := layer.FamilyFromTypeName(typeName)
	l := layer.New(name, srid, family, columns)

	var skipped int
	vals := make([]any, len(selectCols))
	ptrs := make([]any, len(selectCols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "gpkg: scan layer %q", name)
		}

		fid, ok := vals[0].(int64)
		if !ok {
			return nil, eris.Errorf("gpkg: layer %q has non-integer feature id %v", name, vals[0])
		}
		blob, _ := vals[1].([]byte)
		if len(blob) == 0 {
			if !opts.SkipMissingGeometry {
				return nil, eris.Wrapf(ErrMissingGeometry, "gpkg: layer %q feature %d", name, fid)
			}
			skipped++
			continue
		}
		g, _, err := DecodeGeometry(blob)
		if err != nil {
			return nil, eris.Wrapf(err, "gpkg: layer %q feature %d", name, fid)
		}
		g = withSRID(g, srid)

		if l.Family == "" {
			if l.Family, err = layer.FamilyOf(g); err != nil {
				return nil, eris.Wrapf(err, "gpkg: layer %q feature %d", name, fid)
			}
		}

		attrs := make(map[string]any, len(columns))
		for i, c := range columns {
			attrs[c.Name] = normalizeValue(vals[i+2], c.Type)
		}
		l.Rows = append(l.Rows, layer.Row{ID: fid, Attrs: attrs, Geom: g})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "gpkg: iterate layer %q", name)
	}

	if skipped > 0 {
		zap.L().Warn("gpkg: skipped features without geometry",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}
	if l.Family == "" {
		l.Family = layer.FamilyPolygon
	}
	if err := l.Validate(); err != nil {
		return nil, eris.Wrapf(err, "gpkg: read layer %q", name)
	}
	return l, nil
}

// tableColumns returns the primary key column and the attribute columns of a
// feature table, excluding the geometry column.
func (s *Store) tableColumns(ctx context.Context, table, geomCol string) (string, []layer.Column, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return "", nil, eris.Wrapf(err, "gpkg: table info %q", table)
	}
	defer rows.Close()

	var pk string
	var columns []layer.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pkFlag  int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pkFlag); err != nil {
			return "", nil, eris.Wrapf(err, "gpkg: scan table info %q", table)
		}
		switch {
		case pkFlag > 0 && pk == "":
			pk = name
		case name == geomCol:
		default:
			columns = append(columns, layer.Column{Name: name, Type: columnType(ctype)})
		}
	}
	if err := rows.Err(); err != nil {
		return "", nil, eris.Wrapf(err, "gpkg: iterate table info %q", table)
	}
	if pk == "" {
		return "", nil, eris.Errorf("gpkg: layer %q has no integer primary key", table)
	}
	return pk, columns, nil
}

// WriteLayer stores l as a new feature table in one transaction, so either
// the whole layer lands or none of it does.
func (s *Store) WriteLayer(ctx context.Context, l *layer.Layer) error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	if err := l.Validate(); err != nil {
		return eris.Wrapf(err, "gpkg: write layer %q", l.Name)
	}
	if s.written[l.Name] {
		return eris.Wrapf(ErrDuplicateLayer, "gpkg: write layer %q", l.Name)
	}
	for _, c := range l.Columns {
		if strings.EqualFold(c.Name, fidColumn) || strings.EqualFold(c.Name, geomColumn) {
			return eris.Errorf("gpkg: layer %q column %q collides with a reserved column", l.Name, c.Name)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "gpkg: begin")
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM gpkg_contents WHERE table_name = ?`, l.Name).Scan(&exists); err != nil {
		return eris.Wrapf(err, "gpkg: check layer %q", l.Name)
	}
	if exists > 0 {
		return eris.Wrapf(ErrDuplicateLayer, "gpkg: write layer %q", l.Name)
	}

	if err := registerSRS(ctx, tx, l.SRID); err != nil {
		return err
	}

	typeName := geometryTypeName(l)
	defs := []string{
		fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL", quoteIdent(fidColumn)),
		fmt.Sprintf("%s %s", quoteIdent(geomColumn), typeName),
	}
	for _, c := range l.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(c.Name), c.Type))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)",
		quoteIdent(l.Name), strings.Join(defs, ", "))); err != nil {
		return eris.Wrapf(err, "gpkg: create table %q", l.Name)
	}

	var minX, minY, maxX, maxY any
	if b, ok := l.Envelope(); ok {
		minX, minY, maxX, maxY = b.Min(0), b.Min(1), b.Max(0), b.Max(1)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
		l.Name, l.Name, minX, minY, maxX, maxY, l.SRID); err != nil {
		return eris.Wrapf(err, "gpkg: register contents %q", l.Name)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, ?, ?, ?, 0, 0)`,
		l.Name, geomColumn, typeName, l.SRID); err != nil {
		return eris.Wrapf(err, "gpkg: register geometry column %q", l.Name)
	}

	cols := []string{quoteIdent(fidColumn), quoteIdent(geomColumn)}
	marks := []string{"?", "?"}
	for _, c := range l.Columns {
		cols = append(cols, quoteIdent(c.Name))
		marks = append(marks, "?")
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(l.Name), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return eris.Wrapf(err, "gpkg: prepare insert %q", l.Name)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, r := range l.Rows {
		blob, err := EncodeGeometry(r.Geom, l.SRID)
		if err != nil {
			return eris.Wrapf(err, "gpkg: layer %q feature %d", l.Name, r.ID)
		}
		args[0], args[1] = r.ID, blob
		for i, c := range l.Columns {
			args[i+2] = r.Attrs[c.Name]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrapf(err, "gpkg: insert %q feature %d", l.Name, r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "gpkg: commit layer %q", l.Name)
	}
	s.written[l.Name] = true

	zap.L().Debug("gpkg: wrote layer",
		zap.String("layer", l.Name),
		zap.String("geometry_type", typeName),
		zap.Int("srid", l.SRID),
		zap.Int("features", l.Len()),
	)
	return nil
}

func registerSRS(ctx context.Context, tx *sql.Tx, srid int) error {
	if srid <= 0 {
		return nil
	}
	sys, err := crs.Lookup(srid)
	if err != nil {
		return eris.Wrapf(err, "gpkg: register srs %d", srid)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO gpkg_spatial_ref_sys
			(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES (?, ?, 'EPSG', ?, ?, ?)`,
		sys.Name, srid, srid, sys.WKT(), sys.Name)
	return eris.Wrapf(err, "gpkg: register srs %d", srid)
}

// geometryTypeName picks the narrowest GeoPackage type covering every row.
func geometryTypeName(l *layer.Layer) string {
	var name string
	for _, r := range l.Rows {
		n := typeNameOf(r.Geom)
		if name == "" {
			name = n
		} else if name != n {
			return "GEOMETRY"
		}
	}
	if name == "" {
		return string(l.Family)
	}
	return name
}

func typeNameOf(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "POINT"
	case *geom.MultiPoint:
		return "MULTIPOINT"
	case *geom.LineString:
		return "LINESTRING"
	case *geom.MultiLineString:
		return "MULTILINESTRING"
	case *geom.Polygon:
		return "POLYGON"
	case *geom.MultiPolygon:
		return "MULTIPOLYGON"
	}
	return "GEOMETRY"
}

// columnType maps a declared SQLite type onto a storage class using the
// SQLite affinity rules.
func columnType(declared string) layer.ColumnType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return layer.TypeInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return layer.TypeText
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return layer.TypeReal
	}
	return layer.TypeText
}

func normalizeValue(v any, t layer.ColumnType) any {
	if b, ok := v.([]byte); ok && t == layer.TypeText {
		return string(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
