// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

const currentName = "CURRENT"

var errStorageReadOnly = errors.New("tree file storage is read-only")

// fsStorage is a leveldb storage that keeps the database files of one tree
// file in a directory of an afero filesystem. The file names are the same
// ones leveldb uses for its own on-disk storage.
//
// The lock only excludes other users of the same fsStorage. Two Files open
// on the same path each have their own storage.
type fsStorage struct {
	fs       afero.Fs
	dir      string
	readOnly bool

	mu     sync.Mutex
	locked bool
	closed bool
}

var _ storage.Storage = (*fsStorage)(nil)

func newFSStorage(fs afero.Fs, dir string, readOnly bool) *fsStorage {
	return &fsStorage{fs: fs, dir: dir, readOnly: readOnly}
}

type fsStorageLock struct {
	s *fsStorage
}

func (l fsStorageLock) Unlock() {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.locked = false
}

func (s *fsStorage) Lock() (storage.Locker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	if s.locked {
		return nil, storage.ErrLocked
	}
	s.locked = true
	return fsStorageLock{s: s}, nil
}

func (s *fsStorage) Log(str string) {
	log.Printf("[TRACE] store.leveldb: %s: %s", s.dir, str)
}

func (s *fsStorage) check(write bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	if write && s.readOnly {
		return errStorageReadOnly
	}
	return nil
}

func (s *fsStorage) SetMeta(fd storage.FileDesc) error {
	if err := s.check(true); err != nil {
		return err
	}
	if fd.Type != storage.TypeManifest {
		return storage.ErrInvalidFile
	}
	tmp := path.Join(s.dir, currentName+".tmp")
	if err := afero.WriteFile(s.fs, tmp, []byte(fileName(fd)+"\n"), 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, path.Join(s.dir, currentName))
}

func (s *fsStorage) GetMeta() (storage.FileDesc, error) {
	if err := s.check(false); err != nil {
		return storage.FileDesc{}, err
	}
	src, err := afero.ReadFile(s.fs, path.Join(s.dir, currentName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// leveldb checks for this with os.IsNotExist, which doesn't
			// unwrap, to decide whether to create a new database.
			return storage.FileDesc{}, os.ErrNotExist
		}
		return storage.FileDesc{}, err
	}
	fd, ok := parseFileName(strings.TrimSuffix(string(src), "\n"))
	if !ok || fd.Type != storage.TypeManifest {
		return storage.FileDesc{}, fmt.Errorf("%s of %s names %q, which is not a manifest", currentName, s.dir, src)
	}
	return fd, nil
}

func (s *fsStorage) List(ft storage.FileType) ([]storage.FileDesc, error) {
	if err := s.check(false); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	var ret []storage.FileDesc
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if fd, ok := parseFileName(info.Name()); ok && fd.Type&ft != 0 {
			ret = append(ret, fd)
		}
	}
	return ret, nil
}

func (s *fsStorage) Open(fd storage.FileDesc) (storage.Reader, error) {
	if err := s.check(false); err != nil {
		return nil, err
	}
	if !storage.FileDescOk(fd) {
		return nil, storage.ErrInvalidFile
	}
	return s.fs.Open(path.Join(s.dir, fileName(fd)))
}

func (s *fsStorage) Create(fd storage.FileDesc) (storage.Writer, error) {
	if err := s.check(true); err != nil {
		return nil, err
	}
	if !storage.FileDescOk(fd) {
		return nil, storage.ErrInvalidFile
	}
	return s.fs.OpenFile(path.Join(s.dir, fileName(fd)), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (s *fsStorage) Remove(fd storage.FileDesc) error {
	if err := s.check(true); err != nil {
		return err
	}
	if !storage.FileDescOk(fd) {
		return storage.ErrInvalidFile
	}
	return s.fs.Remove(path.Join(s.dir, fileName(fd)))
}

func (s *fsStorage) Rename(oldfd, newfd storage.FileDesc) error {
	if err := s.check(true); err != nil {
		return err
	}
	if !storage.FileDescOk(oldfd) || !storage.FileDescOk(newfd) {
		return storage.ErrInvalidFile
	}
	if oldfd == newfd {
		return nil
	}
	return s.fs.Rename(path.Join(s.dir, fileName(oldfd)), path.Join(s.dir, fileName(newfd)))
}

func (s *fsStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.closed = true
	return nil
}

func fileName(fd storage.FileDesc) string {
	switch fd.Type {
	case storage.TypeManifest:
		return fmt.Sprintf("MANIFEST-%06d", fd.Num)
	case storage.TypeJournal:
		return fmt.Sprintf("%06d.log", fd.Num)
	case storage.TypeTable:
		return fmt.Sprintf("%06d.ldb", fd.Num)
	case storage.TypeTemp:
		return fmt.Sprintf("%06d.tmp", fd.Num)
	default:
		return fmt.Sprintf("%#x-%d", fd.Type, fd.Num)
	}
}

func parseFileName(name string) (storage.FileDesc, bool) {
	var fd storage.FileDesc
	num := name
	if rest, ok := strings.CutPrefix(name, "MANIFEST-"); ok {
		fd.Type = storage.TypeManifest
		num = rest
	} else {
		base, ext, ok := strings.Cut(name, ".")
		if !ok {
			return fd, false
		}
		switch ext {
		case "log":
			fd.Type = storage.TypeJournal
		case "ldb", "sst":
			fd.Type = storage.TypeTable
		case "tmp":
			fd.Type = storage.TypeTemp
		default:
			return fd, false
		}
		num = base
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n < 0 {
		return fd, false
	}
	fd.Num = n
	return fd, true
}
