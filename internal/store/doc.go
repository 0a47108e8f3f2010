// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package store implements the hierarchical container that lazytree writes
// values into: a tree of groups and leaves, where every node can carry
// string-keyed attributes.
//
// A "tree file" is a leveldb database kept in a directory of an afero
// filesystem. Its keys are:
//
//	"mf"                   format version
//	"ml"                   lineage
//	"n" + path             node record (kind, and dtype, shape and filter of leaves)
//	"d" + path             leaf payload, optionally gzip compressed
//	"a" + path + 0 + name  attribute
//
// Opening a file reads the node records and attributes. Leaf payloads are
// read when [Leaf.Dataset] is called, so that a caller can walk the structure
// of a large container without loading its data.
//
// Every write goes to the database as soon as it is made, and writing a leaf
// stores its record and payload in one batch. There is no rollback: nodes
// written before a failure stay in the file. Callers that need atomic
// replacement must write to a temporary path and rename it.
//
// A [File] is not safe for concurrent use.
package store
