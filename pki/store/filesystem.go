// Identity store for filesystems.
//
// Every named identity X owns a pair of flat artifacts in one directory:
// X.crt (PEM certificate) and X.key (PEM private key). Authorities that
// revoked at least one certificate additionally own X.crl. There is no
// index or database; the directory listing is the source of truth.
//
// This package also provides an in-memory file system abstraction for
// testing.
package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing/fstest"
	"time"
)

const writePermissions fs.FileMode = 0644

// Wrapper for fs.FS with some write functionality.
// If go adds this feature to fs.Fs, we can remove this code.
type Filesystem interface {
	FS() fs.FS
	WriteFile(name string, content []byte) error
	Rename(oldname, newname string) error
	Stat(name string) (os.FileInfo, error)
}

type mapfs struct {
	fsobj fs.FS
	m     map[string]*fstest.MapFile
}

func (m mapfs) FS() fs.FS {
	return m.fsobj
}

func (m mapfs) Stat(name string) (os.FileInfo, error) {
	return fstest.MapFS(m.m).Stat(name)
}

func (m mapfs) WriteFile(name string, content []byte) error {
	m.m[name] = &fstest.MapFile{
		Data:    content,
		Mode:    writePermissions,
		ModTime: time.Now(),
	}
	return nil
}

func (m mapfs) Rename(oldname, newname string) error {
	f, ok := m.m[oldname]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldname, Err: fs.ErrNotExist}
	}
	m.m[newname] = f
	delete(m.m, oldname)
	return nil
}

// NewMapFs generates a new [store.Filesystem] based on [fstest.MapFS].
// It always adds a working directory ".".
func NewMapFs(m fstest.MapFS) Filesystem {
	switch m {
	case nil:
		f := fstest.MapFS{".": &fstest.MapFile{Mode: 0777 | fs.ModeDir}}
		return mapfs{m: f, fsobj: fstest.MapFS(f)}
	default:
		return mapfs{m: m, fsobj: m}
	}
}

type nativefs struct {
	basepath string
	fsObj    fs.FS
}

func (n nativefs) FS() fs.FS {
	return n.fsObj
}

func (n nativefs) Stat(name string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(n.basepath, name))
}

func (n nativefs) WriteFile(name string, content []byte) error {
	if filepath.IsAbs(name) {
		return fmt.Errorf("store: '%s' is an absolute path, rather than a path relative to the provided basename", name)
	}
	return os.WriteFile(filepath.Join(n.basepath, name), content, writePermissions)
}

func (n nativefs) Rename(oldname, newname string) error {
	return os.Rename(filepath.Join(n.basepath, oldname), filepath.Join(n.basepath, newname))
}

// NewNativeFs generates a new [store.Filesystem] based on [os.DirFS], plus
// some write functionality taken from the [os] package.
func NewNativeFs(path string) Filesystem {
	return nativefs{basepath: path, fsObj: os.DirFS(path)}
}
