package formats

import (
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/lafriks/go-tiled"

	"github.com/Faultbox/tilecollide/pkg/collision"
)

// LoadTileset reads a TSX tileset from fsys. firstID is used when the file
// itself carries no first GID, which is the case for standalone TSX files.
func LoadTileset(fsys fs.FS, name string, firstID collision.TileTypeID) (collision.TilesetDescriptor, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return collision.TilesetDescriptor{}, fmt.Errorf("open tileset: %w", err)
	}
	defer f.Close()

	return ParseTileset(f, path.Dir(name), firstID, tiled.WithFileSystem(fsys))
}

// ParseTileset reads a TSX tileset from r. baseDir resolves relative
// references inside the file.
func ParseTileset(r io.Reader, baseDir string, firstID collision.TileTypeID, options ...tiled.LoaderOption) (collision.TilesetDescriptor, error) {
	ts, err := tiled.LoadTilesetReader(baseDir, r, options...)
	if err != nil {
		return collision.TilesetDescriptor{}, fmt.Errorf("parse tileset: %w", err)
	}
	if ts.FirstGID == 0 {
		ts.FirstGID = uint32(firstID)
	}
	return TilesetDescriptor(ts)
}

// TilesetDescriptor converts a parsed Tiled tileset. Every rectangle object
// in a tile's object groups becomes a collision rectangle tagged by the
// object's name, or by its type when the name is empty.
func TilesetDescriptor(ts *tiled.Tileset) (collision.TilesetDescriptor, error) {
	desc := collision.TilesetDescriptor{
		Name:       ts.Name,
		FirstID:    collision.TileTypeID(ts.FirstGID),
		TileWidth:  ts.TileWidth,
		TileHeight: ts.TileHeight,
		TileCount:  ts.TileCount,
	}

	for _, tile := range ts.Tiles {
		td := collision.TileDescriptor{ID: tile.ID}
		for _, og := range tile.ObjectGroups {
			for _, obj := range og.Objects {
				rd, err := rectDescriptor(obj)
				if err != nil {
					return desc, fmt.Errorf("tileset %q tile %d object %d: %w", ts.Name, tile.ID, obj.ID, err)
				}
				td.Rects = append(td.Rects, rd)
			}
		}
		desc.Tiles = append(desc.Tiles, td)
	}

	return desc, nil
}

func rectDescriptor(obj *tiled.Object) (collision.RectDescriptor, error) {
	switch {
	case obj.Rotation != 0:
		return collision.RectDescriptor{}, fmt.Errorf("%w: rotated by %g", ErrUnsupportedShape, obj.Rotation)
	case len(obj.Polygons) > 0:
		return collision.RectDescriptor{}, fmt.Errorf("%w: polygon", ErrUnsupportedShape)
	case len(obj.PolyLines) > 0:
		return collision.RectDescriptor{}, fmt.Errorf("%w: polyline", ErrUnsupportedShape)
	case len(obj.Ellipses) > 0:
		return collision.RectDescriptor{}, fmt.Errorf("%w: ellipse", ErrUnsupportedShape)
	case obj.Width == 0 && obj.Height == 0:
		return collision.RectDescriptor{}, fmt.Errorf("%w: point", ErrUnsupportedShape)
	}

	name := obj.Name
	if name == "" {
		name = obj.Type
	}
	tag, err := collision.ParseTag(name)
	if err != nil {
		return collision.RectDescriptor{}, err
	}

	return collision.RectDescriptor{
		X:   obj.X,
		Y:   obj.Y,
		W:   obj.Width,
		H:   obj.Height,
		Tag: tag,
	}, nil
}
