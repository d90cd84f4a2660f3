package collision

import "errors"

// Collision errors.
var (
	// ErrMalformedTileset reports bad rectangle geometry, an unknown tag, or
	// a duplicated tile id. It is fatal at load time.
	ErrMalformedTileset = errors.New("malformed tileset")

	// ErrUnknownInstance reports an update that removes a tile instance the
	// map does not contain. Callers may log and ignore it.
	ErrUnknownInstance = errors.New("unknown tile instance")

	// ErrDuplicateInstance reports a tile instance id placed twice, either
	// within one edit or over an instance that is still placed.
	ErrDuplicateInstance = errors.New("duplicate tile instance")
)
