// bloomfile-check is a diagnostic tool for inspecting and validating
// bitmap/bloom filter files produced by this module, without loading the
// whole bit region into memory.
//
// It answers questions like:
//
//   - Is this a plain bitmap or a Bloom filter? (A standalone filter and
//     one layer of a scaling filter directory look the same and are both
//     reported as a Bloom filter.)
//   - What k and count does a Bloom filter header report?
//   - Does the file's size even add up to a whole number of partitions?
//
// Usage Examples
// ==============
//
// Check a single bitmap or filter file:
//
//	bloomfile-check -file layer-0.bm
//
// Check every layer file in a scaling filter's directory:
//
//	bloomfile-check -dir ./filters/
//
// Watch a directory and re-check it every interval; files are only read,
// never flushed or modified (useful when driving this tool against a
// filter a separate process is actively writing to):
//
//	bloomfile-check -dir ./filters/ -watch 2s
//
// Exit Codes
// ==========
//
// 0: every file checked is structurally valid.
// 1: at least one file failed a structural check or could not be read.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"

	"bloomdisk.dev/bloom"
)

func main() {
	filePath := flag.String("file", "", "Path to a single bitmap/bloom filter file to check")
	dir := flag.String("dir", "", "Path to a directory of layer files to check (mutually exclusive with -file)")
	watch := flag.Duration("watch", 0, "Re-check -dir on this interval until interrupted (0 disables watching)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *filePath == "" && *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: bloomfile-check -file <path> | -dir <path> [-watch <interval>]")
		os.Exit(1)
	}

	if *watch > 0 {
		if *dir == "" {
			fmt.Fprintln(os.Stderr, "-watch requires -dir")
			os.Exit(1)
		}
		runWatch(logger, *dir, *watch)
		return
	}

	var paths []string
	var err error
	if *filePath != "" {
		paths = []string{*filePath}
	} else {
		paths, err = layerFiles(*dir)
		if err != nil {
			logger.Error("listing directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
	}

	if checkAll(logger, paths) {
		os.Exit(0)
	}
	os.Exit(1)
}

// runWatch re-checks dir on every tick until SIGINT/SIGTERM arrives. This
// mirrors the server's periodic background-maintenance goroutine, adapted
// from a live durability heartbeat into a polling diagnostic loop: instead
// of flushing on a timer, it re-reads and re-validates on one.
func runWatch(logger *slog.Logger, dir string, interval time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("watching", "dir", dir, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping watch")
			return
		case <-ticker.C:
			paths, err := layerFiles(dir)
			if err != nil {
				logger.Error("listing directory", "dir", dir, "error", err)
				continue
			}
			checkAll(logger, paths)
		}
	}
}

// layerFiles returns every regular file directly under dir, sorted for
// deterministic output.
func layerFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// checkAll checks every path and logs a result line for each. It returns
// true only if every file passed.
func checkAll(logger *slog.Logger, paths []string) bool {
	ok := true
	for _, p := range paths {
		if err := checkFile(logger, p); err != nil {
			logger.Error("check failed", "file", p, "error", err)
			ok = false
		}
	}
	return ok
}

// checkFile performs a streaming structural check of a single file: a
// whole-file xxhash digest (the cheap pre-check, computed the same way the
// teacher's journal checker verifies its CRC64 before interpreting any
// structure), followed by reading just the trailing bloom.HeaderBytes to
// report k and count, without ever holding the bit region in memory at once.
func checkFile(logger *slog.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	size := stat.Size()

	digest, err := digestFile(f)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}

	if size <= int64(bloom.HeaderBytes) {
		logger.Info("checked", "file", path, "kind", "bitmap", "size_bytes", size, "xxhash", fmt.Sprintf("%016x", digest))
		return nil
	}

	hdrBytes := make([]byte, bloom.HeaderBytes)
	if _, err := f.ReadAt(hdrBytes, size-int64(bloom.HeaderBytes)); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: %w", err)
	}

	k := headerK(hdrBytes)
	count := headerCount(hdrBytes)

	if k == 0 {
		logger.Info("checked", "file", path, "kind", "bitmap", "size_bytes", size, "xxhash", fmt.Sprintf("%016x", digest))
		return nil
	}

	bitmapBits := 8*size - 8*int64(bloom.HeaderBytes)
	if bitmapBits%int64(k) != 0 {
		return fmt.Errorf("bloom filter: %d bitmap bits do not divide evenly across k=%d partitions", bitmapBits, k)
	}

	logger.Info("checked", "file", path, "kind", "bloom_filter", "size_bytes", size,
		"k", k, "count", count, "offset_bits", bitmapBits/int64(k), "xxhash", fmt.Sprintf("%016x", digest))
	return nil
}

// digestFile streams the whole file through xxhash rather than reading it
// into one big buffer, so even a multi-gigabyte filter can be checked with
// bounded memory.
func digestFile(f *os.File) (uint64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func headerK(b []byte) uint32 {
	return uint32(b[8]) | uint32(b[9])<<8 | uint32(b[10])<<16 | uint32(b[11])<<24
}

func headerCount(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
