// Copyright 2017 CoreOS, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shmem provides a fixed-size, page-mapped region that stays
// visible across the fork/exec boundary: the parent allocates a Cell, the
// child it re-execs inherits the backing file descriptor via
// exec.Cmd.ExtraFiles and maps the exact same pages with Open.
//
// The contents behind a Cell must be POD: primitive fields and
// fixed-size arrays of primitives only. No pointer, slice header, or Go
// interface may ever be written into a Cell's bytes, since those are
// meaningless across the process boundary.
package shmem

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// Cell is a fixed-size region of memory backed by a shared, anonymous
// file mapping. It is non-copyable (copying the struct would double-free
// the mapping) but may be moved by reassigning the pointer.
type Cell struct {
	f      *os.File
	data   []byte
	size   int
	owned  bool
	noCopy noCopy
}

type noCopy struct{}

func (*noCopy) Lock() {}

// New allocates a size-byte Cell backed by a new, already-unlinked
// temporary file, and maps it MAP_SHARED so writes are visible to any
// process that maps the same file descriptor. The returned Cell owns the
// mapping; Close reclaims it.
func New(size int) (*Cell, error) {
	f, err := os.CreateTemp("", "partest-cell-")
	if err != nil {
		return nil, errors.Wrap(err, "shmem: create backing file")
	}
	// Unlink immediately: the fd keeps the pages alive for as long as any
	// process holds it open or mapped, but no directory entry lingers if
	// the runner crashes.
	name := f.Name()
	if err := os.Remove(name); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "shmem: unlink backing file")
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "shmem: truncate backing file")
	}
	return mapShared(f, size, true)
}

// Open maps an existing fd (inherited from a parent via ExtraFiles) as a
// size-byte Cell. The returned Cell owns the mapping but not the fd's
// closing responsibility beyond its own Close.
func Open(f *os.File, size int) (*Cell, error) {
	return mapShared(f, size, true)
}

func mapShared(f *os.File, size int, owned bool) (*Cell, error) {
	data, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "shmem: mmap failed")
	}
	return &Cell{f: f, data: data, size: size, owned: owned}, nil
}

// File returns the backing file descriptor, to be listed in a child
// exec.Cmd's ExtraFiles so the child can Open the same mapping.
func (c *Cell) File() *os.File {
	return c.f
}

// Bytes returns the mapped region. Callers encode/decode POD fields
// through this slice; see package testenv for the concrete layout used
// by the supervisor.
func (c *Cell) Bytes() []byte {
	return c.data
}

// Close unmaps the region and, if this Cell owns the backing fd, closes
// it. Safe to call more than once.
func (c *Cell) Close() error {
	if c.data == nil {
		return nil
	}
	err := syscall.Munmap(c.data)
	c.data = nil
	if c.owned {
		if cerr := c.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errors.Wrap(err, "shmem: close failed")
	}
	return nil
}
