//go:build unix

package bitmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// zeroExtendChunk bounds how many zero bytes are appended to a short file
// in one write, so that sizing a very large Bitmap never requires a
// proportionally large temporary buffer.
const zeroExtendChunk = 100_000

// fileHandle is the per-Bitmap syscall-facing state kept alongside the
// mapped slice: the open file (nil for anonymous maps) and enough of its
// identity to fsync it.
type fileHandle struct {
	file *os.File
}

// mapRegion implements the Bitmap construction protocol from spec section
// 4.1: for a file-backed map, open/create the file, zero-extend it to at
// least sizeBytes, then mmap; for an anonymous map, mmap private memory
// directly. It never leaves a dangling fd or mapping behind on error.
func mapRegion(sizeBytes int64, path string, sharing Sharing) ([]byte, fileHandle, error) {
	if path == "" {
		return mapAnonymous(sizeBytes)
	}
	return mapFile(sizeBytes, path, sharing)
}

func mapAnonymous(sizeBytes int64) ([]byte, fileHandle, error) {
	addr, err := unix.Mmap(-1, 0, int(sizeBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fileHandle{}, fmt.Errorf("bitmap: mmap anonymous region of %d bytes: %w: %w", sizeBytes, err, ErrIO)
	}
	return addr, fileHandle{}, nil
}

func mapFile(sizeBytes int64, path string, sharing Sharing) ([]byte, fileHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fileHandle{}, fmt.Errorf("bitmap: open %s: %w: %w", path, err, ErrIO)
	}

	if err := zeroExtend(f, sizeBytes); err != nil {
		_ = f.Close()
		return nil, fileHandle{}, err
	}

	mmapFlags := unix.MAP_SHARED
	if sharing == Private {
		mmapFlags = unix.MAP_PRIVATE
	}

	addr, err := unix.Mmap(int(f.Fd()), 0, int(sizeBytes), unix.PROT_READ|unix.PROT_WRITE, mmapFlags)
	if err != nil {
		_ = f.Close()
		return nil, fileHandle{}, fmt.Errorf("bitmap: mmap %s: %w: %w", path, err, ErrIO)
	}

	// Best-effort read-ahead hint, matching the original mmap helper this
	// package is ported from. A failure here does not invalidate the
	// mapping, so it is not surfaced as an error.
	_ = unix.Madvise(addr, unix.MADV_WILLNEED)

	return addr, fileHandle{file: f}, nil
}

// zeroExtend implements the zero-extension protocol: append zero bytes in
// bounded chunks, re-stating after each write, until the file is at least
// sizeBytes long. mmap-ing a short file and then writing past EOF is
// undefined on some platforms, so the file must reach its final size
// before New ever calls mmap.
func zeroExtend(f *os.File, sizeBytes int64) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("bitmap: stat %s: %w: %w", f.Name(), err, ErrIO)
	}

	zeros := make([]byte, zeroExtendChunk)
	diff := sizeBytes - info.Size()
	for diff > 0 {
		n := diff
		if n > zeroExtendChunk {
			n = zeroExtendChunk
		}
		if _, err := f.WriteAt(zeros[:n], info.Size()); err != nil {
			return fmt.Errorf("bitmap: zero-extend %s: %w: %w", f.Name(), err, ErrIO)
		}
		info, err = f.Stat()
		if err != nil {
			return fmt.Errorf("bitmap: stat %s: %w: %w", f.Name(), err, ErrIO)
		}
		diff = sizeBytes - info.Size()
	}
	return nil
}

func (h fileHandle) flush(addr []byte) error {
	if h.file == nil {
		return nil
	}
	if err := unix.Msync(addr, unix.MS_SYNC); err != nil {
		return fmt.Errorf("bitmap: msync %s: %w: %w", h.file.Name(), err, ErrIO)
	}
	if err := h.file.Sync(); err != nil {
		return fmt.Errorf("bitmap: fsync %s: %w: %w", h.file.Name(), err, ErrIO)
	}
	return nil
}

func (h fileHandle) unmap(addr []byte) error {
	if addr == nil {
		return nil
	}
	if err := unix.Munmap(addr); err != nil {
		return fmt.Errorf("bitmap: munmap: %w: %w", err, ErrIO)
	}
	return nil
}

func (h fileHandle) closeFile() error {
	if h.file == nil {
		return nil
	}
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("bitmap: close %s: %w: %w", h.file.Name(), err, ErrIO)
	}
	return nil
}
