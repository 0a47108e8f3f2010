// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package lazytree

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/opentofu/lazytree/internal/codec"
	"github.com/opentofu/lazytree/internal/config"
	"github.com/opentofu/lazytree/internal/frame"
	"github.com/opentofu/lazytree/internal/lazy"
	"github.com/opentofu/lazytree/internal/queue"
	"github.com/opentofu/lazytree/internal/store"
	"github.com/opentofu/lazytree/value"
)

// RootFrameKey is the key a frame is stored under when a frame, rather than
// a mapping, is saved as the whole content of a file.
const RootFrameKey = "pd_dataframe"

// Manager saves and loads tree files. Lazily loaded files stay open in the
// manager's queue until they are closed, evicted or the manager is closed.
type Manager struct {
	cfg    config.Config
	fs     afero.Fs
	queue  queue.Registry
	logger hclog.Logger

	enc *codec.Encoder
	dec *codec.Decoder
}

// Option customizes a [Manager].
type Option func(*Manager)

// WithFS makes the manager read and write files in fs instead of the
// operating system's filesystem.
func WithFS(fs afero.Fs) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithLogger sets the logger the manager and its queue log to.
func WithLogger(logger hclog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithQueue makes the manager register open files in q instead of in a
// queue of its own. q's capacity takes precedence over max_open_files.
func WithQueue(q queue.Registry) Option {
	return func(m *Manager) {
		m.queue = q
	}
}

// NewManager returns a manager using the given settings.
func NewManager(cfg config.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.queue == nil {
		q, err := queue.New(cfg.MaxOpenFiles, m.logger.Named("queue"))
		if err != nil {
			return nil, err
		}
		m.queue = q
	}
	m.enc = &codec.Encoder{
		Compression: cfg.Compression.Store(),
		Frames:      frame.Serializer{},
	}
	m.dec = &codec.Decoder{
		Frames: frame.Serializer{},
	}
	return m, nil
}

// Config returns the manager's settings.
func (m *Manager) Config() config.Config {
	return m.cfg
}

// Save writes data to the file at path, appending the default suffix if path
// doesn't already have it, and returns the path actually written.
//
// data must be a mapping, or a [*value.Frame] which is stored under
// [RootFrameKey]. A top-level "attrs" entry is stored as the file's
// attributes. Unless allow_overwrite is set, the entries are added to any
// existing file and saving a name that already exists fails with a
// [*store.ConflictError].
//
// There is no rollback: if saving an entry fails, the entries written before
// it remain in the file.
func (m *Manager) Save(path string, data any) (string, error) {
	path = store.CanonicalPath(m.cfg.WithSuffix(path))
	if m.queue.Remove(path) {
		m.logger.Debug("closed open file before saving over it", "path", path)
	}

	mode := store.ModeAppend
	if m.cfg.AllowOverwrite {
		mode = store.ModeTruncate
	}
	f, err := store.Open(m.fs, path, mode)
	if err != nil {
		return "", fmt.Errorf("opening %s for saving: %w", path, err)
	}
	// Closing flushes whatever was written, even if writing stopped early.
	if err := errors.Join(m.write(f.Root(), data), f.Close()); err != nil {
		return "", err
	}
	m.logger.Debug("saved file", "path", path, "mode", mode)
	return path, nil
}

func (m *Manager) write(root *store.Group, data any) error {
	switch data := data.(type) {
	case *value.Frame:
		_, err := m.enc.Encode(root, RootFrameKey, data)
		return err
	case value.Frame:
		_, err := m.enc.Encode(root, RootFrameKey, &data)
		return err
	}
	if !codec.IsMapping(data) {
		return &codec.EncodingError{
			Path: root.Path(),
			Type: fmt.Sprintf("%T", data),
			Err:  errors.New("only mappings and frames can be saved as a whole file"),
		}
	}

	entries, err := codec.Entries(data)
	if err != nil {
		return &codec.EncodingError{Path: root.Path(), Type: fmt.Sprintf("%T", data), Err: err}
	}
	rest := make([]codec.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Key != lazy.AttrsKey {
			rest = append(rest, entry)
			continue
		}
		if err := codec.EncodeAttributes(root, entry.Value); err != nil {
			return err
		}
	}
	return m.enc.EncodeEntries(root, rest)
}

// Load reads the file at path, lazily or eagerly depending on use_lazy.
func (m *Manager) Load(path string) (any, error) {
	if m.cfg.UseLazy {
		return m.LoadLazy(path)
	}
	return m.LoadEager(path)
}

// LoadLazy returns the root container for the file at path. If the file is
// already open in the queue, the container that is already open is
// returned.
func (m *Manager) LoadLazy(path string) (*lazy.Container, error) {
	path, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	opened := false
	c, err := m.queue.LookupOrInsert(path, func() (*lazy.Container, error) {
		f, err := m.openRead(path)
		if err != nil {
			return nil, err
		}
		c, err := lazy.Open(f, lazy.Options{
			Decoder:       m.dec,
			AllowFallback: m.cfg.AllowFallbackOpen,
			Opener:        m.openRead,
			Registry:      m.queue,
		})
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		opened = true
		return c, nil
	})
	if err != nil || !opened {
		return c, err
	}
	m.logger.Debug("opened file lazily", "path", path)
	return c, nil
}

// LoadEager decodes the whole file at path and closes it again. The result
// is a map with the file's attributes under "attrs", if it has any. With
// squeeze_single set, a file holding only one entry returns that entry's
// value instead.
func (m *Manager) LoadEager(path string) (_ any, err error) {
	path, err = m.Resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := m.openRead(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	ret, err := m.dec.DecodeMapping(f.Root())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	attrs, err := m.dec.DecodeAttributes(f.Root())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if len(attrs) != 0 {
		ret[lazy.AttrsKey] = attrs
	}
	if m.cfg.SqueezeSingle && len(ret) == 1 {
		for _, v := range ret {
			return v, nil
		}
	}
	return ret, nil
}

// Resolve returns the canonical path of an existing file, trying path as
// given first and then with the default suffix.
func (m *Manager) Resolve(path string) (string, error) {
	candidates := []string{store.CanonicalPath(path)}
	if suffixed := store.CanonicalPath(m.cfg.WithSuffix(path)); suffixed != candidates[0] {
		candidates = append(candidates, suffixed)
	}
	for _, candidate := range candidates {
		ok, err := afero.Exists(m.fs, candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("loading %s: %w", path, os.ErrNotExist)
}

func (m *Manager) openRead(path string) (*store.File, error) {
	return store.Open(m.fs, path, store.ModeRead)
}

// IsOpen returns true if the file at path is open in the queue.
func (m *Manager) IsOpen(path string) bool {
	return m.queue.IsOpen(path)
}

// OpenPaths returns the paths of the files open in the queue, most recently
// used first.
func (m *Manager) OpenPaths() []string {
	return m.queue.Paths()
}

// Close closes every file open in the queue.
func (m *Manager) Close() error {
	return m.queue.Drain()
}
