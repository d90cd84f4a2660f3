// Package collision builds a static collision representation for tile maps
// and answers point, overlap, and sweep queries against it.
//
// Per-tile rectangles are collected in a Catalog, translated and merged into
// world shapes by the resolver, and stored in a bucketed Index. After
// construction the Catalog and Index are safe for concurrent readers; Index
// updates publish new bucket contents with per-bucket atomic swaps.
package collision

import (
	"fmt"
	"strings"
)

// Tag classifies a collision shape.
type Tag uint8

// Tag values. Both block movement; Object is kept apart for interaction and
// line-of-sight checks.
const (
	Wall Tag = iota
	Object

	tagCount
)

// String returns the tag name as written in tileset data.
func (t Tag) String() string {
	switch t {
	case Wall:
		return "wall"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Mask returns a filter containing only t.
func (t Tag) Mask() TagMask {
	return TagMask(1) << t
}

// ParseTag maps a tileset object name to a Tag.
func ParseTag(name string) (Tag, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wall":
		return Wall, nil
	case "object":
		return Object, nil
	default:
		return 0, fmt.Errorf("%w: unknown shape tag %q", ErrMalformedTileset, name)
	}
}

// TagMask is a set of tags used to filter queries.
type TagMask uint8

// Common filters.
const (
	MaskWall   TagMask = 1 << Wall
	MaskObject TagMask = 1 << Object
	MaskAll    TagMask = 1<<tagCount - 1
)

// Has reports whether t is in the mask.
func (m TagMask) Has(t Tag) bool {
	return m&t.Mask() != 0
}

// String lists the tags in the mask.
func (m TagMask) String() string {
	var names []string
	for t := Tag(0); t < tagCount; t++ {
		if m.Has(t) {
			names = append(names, t.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseMask parses a "|" or "," separated tag list. "all" selects every tag.
func ParseMask(s string) (TagMask, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return MaskAll, nil
	}
	var m TagMask
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		tag, err := ParseTag(part)
		if err != nil {
			return 0, fmt.Errorf("tag filter %q: unknown tag %q", s, part)
		}
		m |= tag.Mask()
	}
	return m, nil
}
