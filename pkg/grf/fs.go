package grf

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"time"
)

var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
)

// Open implements fs.FS. Names are matched case-insensitively, as the
// client does.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	key := normalizePath(name)

	if entry, ok := a.files[key]; ok {
		data, err := a.read(entry)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &file{Reader: bytes.NewReader(data), info: a.fileInfo(entry)}, nil
	}
	if _, ok := a.dirs[key]; ok {
		return &dir{info: a.dirInfo(key), entries: a.dirEntries(key)}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	entry, ok := a.files[normalizePath(name)]
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	data, err := a.read(entry)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	key := normalizePath(name)
	if _, ok := a.dirs[key]; !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return a.dirEntries(key), nil
}

// Stat implements fs.StatFS.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	key := normalizePath(name)
	if entry, ok := a.files[key]; ok {
		return a.fileInfo(entry), nil
	}
	if _, ok := a.dirs[key]; ok {
		return a.dirInfo(key), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (a *Archive) dirEntries(key string) []fs.DirEntry {
	children := a.dirs[key]
	entries := make([]fs.DirEntry, len(children))
	for i, child := range children {
		full := path.Join(key, child)
		var info fs.FileInfo
		if entry, ok := a.files[full]; ok {
			info = a.fileInfo(entry)
		} else {
			info = a.dirInfo(full)
		}
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	return entries
}

func (a *Archive) fileInfo(e *Entry) fs.FileInfo {
	return fileInfo{name: path.Base(e.Name), size: int64(e.UncompressedSize), mode: 0o444, modTime: a.modTime}
}

func (a *Archive) dirInfo(key string) fs.FileInfo {
	return fileInfo{name: path.Base(key), mode: fs.ModeDir | 0o555, modTime: a.modTime}
}

type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi fileInfo) ModTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi fileInfo) Sys() any           { return nil }

type file struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *file) Close() error               { return nil }

type dir struct {
	info    fs.FileInfo
	entries []fs.DirEntry
	offset  int
}

func (d *dir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *dir) Close() error               { return nil }

func (d *dir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.Name(), Err: fs.ErrInvalid}
}

func (d *dir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	d.offset += n
	return rest[:n], nil
}
