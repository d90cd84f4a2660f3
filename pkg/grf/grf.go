// Package grf reads Ragnarok Online GRF archives as an fs.FS, so packed
// walkability grids can be layered under loose asset directories.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	grfMagic   = "Master of Magic"
	headerSize = 46
	version200 = 0x200

	flagFile      = 0x01
	flagEncrypted = 0x06 // mixed or DES-header encryption
)

// Errors returned when opening an archive.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrCorruptTable       = errors.New("corrupt GRF file table")
	ErrEncrypted          = errors.New("encrypted GRF entries are not supported")
)

// Header contains GRF file header information.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry is a file stored in the archive.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Archive is an opened GRF archive. Reads go through io.ReaderAt and are
// safe for concurrent use.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	header  Header
	modTime time.Time

	files map[string]*Entry
	dirs  map[string][]string // dir -> sorted child names
}

// Open opens a GRF archive on disk.
func Open(name string) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	a, err := NewArchive(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	a.closer = f
	a.modTime = info.ModTime()
	return a, nil
}

// NewArchive reads the archive index from r, which holds size bytes.
func NewArchive(r io.ReaderAt, size int64) (*Archive, error) {
	a := &Archive{
		r:     r,
		files: make(map[string]*Entry),
		dirs:  make(map[string][]string),
	}
	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readFileTable(size); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	a.buildDirs()
	return a, nil
}

// Close closes the underlying file, if the archive opened one.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != version200 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable(size int64) error {
	tableOffset := int64(a.header.TableOffset) + headerSize
	if tableOffset+8 > size {
		return fmt.Errorf("%w: table offset %d past end", ErrCorruptTable, tableOffset)
	}

	var sizes [8]byte
	if n, err := a.r.ReadAt(sizes[:], tableOffset); n < len(sizes) {
		return err
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])
	if tableOffset+8+int64(compressedSize) > size {
		return fmt.Errorf("%w: table of %d bytes past end", ErrCorruptTable, compressedSize)
	}

	zr, err := zlib.NewReader(io.NewSectionReader(a.r, tableOffset+8, int64(compressedSize)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}
	defer zr.Close()

	table := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, table); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	if a.header.FileCount < a.header.Seed+7 {
		return fmt.Errorf("%w: file count %d below seed", ErrCorruptTable, a.header.FileCount)
	}
	count := a.header.FileCount - a.header.Seed - 7

	offset := 0
	for i := uint32(0); i < count; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 || offset+nameEnd+1+17 > len(table) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorruptTable, i)
		}
		raw := table[offset : offset+nameEnd]
		offset += nameEnd + 1

		rec := table[offset : offset+17]
		offset += 17
		entry := &Entry{
			Name:             normalizePath(decodeName(raw)),
			CompressedSize:   binary.LittleEndian.Uint32(rec[0:]),
			AlignedSize:      binary.LittleEndian.Uint32(rec[4:]),
			UncompressedSize: binary.LittleEndian.Uint32(rec[8:]),
			Flags:            rec[12],
			Offset:           binary.LittleEndian.Uint32(rec[13:]),
		}
		if entry.Flags&flagFile == 0 || !fs.ValidPath(entry.Name) {
			continue
		}
		a.files[entry.Name] = entry
	}
	return nil
}

// buildDirs derives the directory tree from the file names.
func (a *Archive) buildDirs() {
	seen := make(map[string]bool)
	add := func(dir, child string) {
		key := dir + "\x00" + child
		if !seen[key] {
			seen[key] = true
			a.dirs[dir] = append(a.dirs[dir], child)
		}
	}
	for name := range a.files {
		for p := name; p != "."; {
			dir := path.Dir(p)
			add(dir, path.Base(p))
			p = dir
		}
	}
	if _, ok := a.dirs["."]; !ok {
		a.dirs["."] = nil
	}
	for _, children := range a.dirs {
		sort.Strings(children)
	}
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.files))
	for p := range a.files {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.files[normalizePath(name)]
	return ok
}

// Entry returns the table entry for a file.
func (a *Archive) Entry(name string) (*Entry, bool) {
	e, ok := a.files[normalizePath(name)]
	return e, ok
}

// Read reads and inflates a file from the archive.
func (a *Archive) Read(name string) ([]byte, error) {
	entry, ok := a.files[normalizePath(name)]
	if !ok {
		return nil, fmt.Errorf("reading %s: %w", name, fs.ErrNotExist)
	}
	return a.read(entry)
}

func (a *Archive) read(entry *Entry) ([]byte, error) {
	if entry.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%s: %w", entry.Name, ErrEncrypted)
	}

	if entry.CompressedSize > entry.AlignedSize {
		return nil, fmt.Errorf("%s: %w: compressed size %d exceeds aligned size %d",
			entry.Name, ErrCorruptTable, entry.CompressedSize, entry.AlignedSize)
	}

	data := make([]byte, entry.CompressedSize)
	if n, err := a.r.ReadAt(data, int64(entry.Offset)+headerSize); n < len(data) {
		return nil, fmt.Errorf("%s: %w", entry.Name, err)
	}

	if entry.CompressedSize == entry.UncompressedSize {
		return data[:entry.UncompressedSize], nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Name, err)
	}
	defer zr.Close()

	result := make([]byte, entry.UncompressedSize)
	if _, err := io.ReadFull(zr, result); err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Name, err)
	}
	return result, nil
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	return strings.ToLower(p)
}
