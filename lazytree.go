// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package lazytree saves nested dynamic values to hierarchical tree files
// and loads them back, optionally lazily.
//
// A lazy load returns a [Container] that decodes each key on first access
// and remembers it. Open files are kept in a bounded queue shared by every
// load through the same [Manager], so loading a file that is already open
// returns the container that is already open.
//
// The package-level functions use a process-wide manager that is created
// on first use, or explicitly with [Init], and must be shut down with
// [Shutdown] before the process exits.
package lazytree

import (
	"sync"

	"github.com/spf13/afero"

	"github.com/opentofu/lazytree/internal/codec"
	"github.com/opentofu/lazytree/internal/config"
	"github.com/opentofu/lazytree/internal/lazy"
	"github.com/opentofu/lazytree/internal/logging"
	"github.com/opentofu/lazytree/internal/queue"
	"github.com/opentofu/lazytree/internal/store"
)

type (
	Config              = config.Config
	Container           = lazy.Container
	EncodingError       = codec.EncodingError
	CorruptStoreError   = codec.CorruptStoreError
	ConflictError       = store.ConflictError
	ClosedResourceError = lazy.ClosedResourceError
	ValidationError     = config.ValidationError
)

var (
	ErrClosed   = store.ErrClosed
	ErrNotFound = store.ErrNotFound
	ErrReadOnly = store.ErrReadOnly
)

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() Config {
	return config.Default()
}

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Init replaces the process-wide manager, closing the files held open by the
// previous one. If cfg is nil, the settings come from the file named by
// LAZYTREE_CONFIG_FILE, or are the defaults.
//
// The process-wide manager serializes access to its queue, so it can be
// used from multiple goroutines, and concurrent lazy loads of one file return
// the same container. Containers themselves are not safe for concurrent use.
func Init(cfg *Config, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return initLocked(cfg, opts...)
}

func initLocked(cfg *Config, opts ...Option) error {
	if defaultManager != nil {
		if err := defaultManager.Close(); err != nil {
			return err
		}
		defaultManager = nil
	}

	var c Config
	if cfg != nil {
		c = *cfg
	} else {
		var err error
		if c, err = config.FromEnv(afero.NewOsFs()); err != nil {
			return err
		}
	}

	logger := logging.HCLogger()
	q, err := queue.New(c.MaxOpenFiles, logger.Named("queue"))
	if err != nil {
		return err
	}
	base := []Option{WithLogger(logger), WithQueue(queue.NewLocked(q))}
	m, err := NewManager(c, append(base, opts...)...)
	if err != nil {
		return err
	}
	defaultManager = m
	return nil
}

// Default returns the process-wide manager, creating it with [Init] if
// needed.
func Default() (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultManager == nil {
		if err := initLocked(nil); err != nil {
			return nil, err
		}
	}
	return defaultManager, nil
}

// Save saves data through the process-wide manager. See [Manager.Save].
func Save(path string, data any) (string, error) {
	m, err := Default()
	if err != nil {
		return "", err
	}
	return m.Save(path, data)
}

// Load loads a file through the process-wide manager. See [Manager.Load].
func Load(path string) (any, error) {
	m, err := Default()
	if err != nil {
		return nil, err
	}
	return m.Load(path)
}

// OpenPaths returns the files held open by the process-wide manager, most
// recently used first.
func OpenPaths() []string {
	m, err := Default()
	if err != nil {
		return nil
	}
	return m.OpenPaths()
}

// Shutdown closes every file held open by the process-wide manager and
// discards it.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultManager == nil {
		return nil
	}
	err := defaultManager.Close()
	defaultManager = nil
	return err
}
