package grf

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// File is an input to Write.
type File struct {
	Name string // slash separated, stored as given
	Data []byte
}

// Write writes a version 0x200 archive holding files, sorted by name.
// Entries are zlib compressed unless that does not make them smaller.
func Write(w io.Writer, files []File) error {
	sorted := append([]File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	bw := bufio.NewWriter(w)
	var table bytes.Buffer
	var header Header
	copy(header.Magic[:], grfMagic)
	header.FileCount = uint32(len(sorted)) + 7
	header.Version = version200
	// The data size is only known after compressing, so the header goes
	// out last through a buffer.
	var body bytes.Buffer

	for _, f := range sorted {
		name, err := encodeName(f.Name)
		if err != nil {
			return fmt.Errorf("encoding name %q: %w", f.Name, err)
		}

		stored, err := deflate(f.Data)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", f.Name, err)
		}
		if len(stored) >= len(f.Data) {
			stored = f.Data
		}
		aligned := (len(stored) + 7) &^ 7

		offset := uint32(body.Len())
		body.Write(stored)
		body.Write(make([]byte, aligned-len(stored)))

		table.Write(name)
		table.WriteByte(0)
		var rec [17]byte
		binary.LittleEndian.PutUint32(rec[0:], uint32(len(stored)))
		binary.LittleEndian.PutUint32(rec[4:], uint32(aligned))
		binary.LittleEndian.PutUint32(rec[8:], uint32(len(f.Data)))
		rec[12] = flagFile
		binary.LittleEndian.PutUint32(rec[13:], offset)
		table.Write(rec[:])
	}

	packed, err := deflate(table.Bytes())
	if err != nil {
		return fmt.Errorf("compressing file table: %w", err)
	}
	header.TableOffset = uint32(body.Len())

	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return err
	}
	if _, err := bw.Write(body.Bytes()); err != nil {
		return err
	}
	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:], uint32(len(packed)))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(table.Len()))
	if _, err := bw.Write(sizes[:]); err != nil {
		return err
	}
	if _, err := bw.Write(packed); err != nil {
		return err
	}
	return bw.Flush()
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
