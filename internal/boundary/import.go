package boundary

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/service-area/internal/gpkg"
)

// Source names one shapefile to import as a layer.
type Source struct {
	Name string
	Path string
}

// ParseSource parses "name=path/to/file.shp".
func ParseSource(spec string) (Source, error) {
	name, path, ok := strings.Cut(spec, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return Source{}, eris.Errorf("boundary: layer spec %q must be name=path", spec)
	}
	return Source{Name: name, Path: path}, nil
}

// Import reads every source shapefile and writes them, in order, into a new
// GeoPackage at out. Nothing is left at out if any layer fails.
func Import(ctx context.Context, out string, sources []Source, srid int) ([]gpkg.Info, error) {
	if len(sources) == 0 {
		return nil, eris.New("boundary: no layers to import")
	}

	store, err := gpkg.Create(out)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	for _, src := range sources {
		l, err := ReadShapefile(src.Path, src.Name, srid)
		if err != nil {
			return nil, err
		}
		if err := store.WriteLayer(ctx, l); err != nil {
			return nil, eris.Wrapf(err, "boundary: write layer %s", src.Name)
		}
	}

	infos, err := store.Layers(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Commit(); err != nil {
		return nil, err
	}
	return infos, nil
}
