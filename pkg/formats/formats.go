// Package formats adapts asset files into collision records: Tiled TSX
// tilesets and TMX maps, and Ragnarok Online GAT walkability grids.
package formats

import (
	"fmt"

	"github.com/Faultbox/tilecollide/pkg/collision"
)

// ErrUnsupportedShape reports a tileset collision object that is not an
// axis-aligned rectangle. It wraps collision.ErrMalformedTileset.
var ErrUnsupportedShape = fmt.Errorf("%w: unsupported collision shape", collision.ErrMalformedTileset)
