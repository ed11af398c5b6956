package ota

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/logging"
)

// Flasher opens a write target for an image of a declared size
type Flasher interface {
	Begin(size int) (Target, error)
}

// Target receives one image. Exactly one of Commit or Abort ends it.
type Target interface {
	// Write appends p. A short count means the target refused the rest.
	Write(p []byte) (int, error)
	// Commit finalizes the image. It succeeds for short images too.
	Commit() error
	// Abort discards everything written
	Abort() error
}

// ImageName is the committed image file inside the firmware directory
const ImageName = "firmware.bin"

const partialSuffix = ".partial"

// FileFlasher stages images on disk
type FileFlasher struct {
	dir string
}

// NewFileFlasher creates a flasher writing into dir
func NewFileFlasher(dir string) *FileFlasher {
	return &FileFlasher{dir: dir}
}

// ImagePath returns where a committed image ends up
func (f *FileFlasher) ImagePath() string {
	return filepath.Join(f.dir, ImageName)
}

// Begin implements Flasher
func (f *FileFlasher) Begin(size int) (Target, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return nil, fmt.Errorf("create firmware directory: %w", err)
	}

	partial := f.ImagePath() + partialSuffix
	file, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open staging file: %w", err)
	}

	logging.Debug("Staging firmware image",
		zap.String("path", partial),
		zap.Int("size", size))

	return &fileTarget{
		file:    file,
		partial: partial,
		final:   f.ImagePath(),
		size:    size,
		digest:  sha256.New(),
	}, nil
}

type fileTarget struct {
	file    *os.File
	partial string
	final   string
	size    int
	written int
	digest  hash.Hash
}

func (t *fileTarget) Write(p []byte) (int, error) {
	room := t.size - t.written
	short := false
	if len(p) > room {
		p = p[:room]
		short = true
	}

	n, err := t.file.Write(p)
	t.written += n
	t.digest.Write(p[:n])
	if err != nil {
		return n, err
	}
	if short {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (t *fileTarget) Commit() error {
	if err := t.file.Sync(); err != nil {
		t.file.Close()
		os.Remove(t.partial)
		return fmt.Errorf("sync staging file: %w", err)
	}
	if err := t.file.Close(); err != nil {
		os.Remove(t.partial)
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(t.partial, t.final); err != nil {
		os.Remove(t.partial)
		return fmt.Errorf("install image: %w", err)
	}

	logging.Info("Firmware image committed",
		zap.String("path", t.final),
		zap.Int("bytes", t.written),
		zap.String("sha256", hex.EncodeToString(t.digest.Sum(nil))))
	return nil
}

func (t *fileTarget) Abort() error {
	t.file.Close()
	if err := os.Remove(t.partial); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}
