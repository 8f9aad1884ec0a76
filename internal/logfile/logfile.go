// Package logfile reads log files for analysis, transparently decompressing
// gzip input.
package logfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultMaxSize bounds how much decompressed content is read.
const DefaultMaxSize = 64 << 20

// ErrTooLarge is returned when content exceeds the size limit.
var ErrTooLarge = errors.New("log content exceeds size limit")

var gzipMagic = []byte{0x1f, 0x8b}

// ReadFile reads the file at path. The returned name is the base name with a
// trailing .gz removed, which is what alerts record as their source file.
func ReadFile(path string, maxSize int64) (name, content string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	content, err = Read(f, maxSize)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DisplayName(path), content, nil
}

// Read returns the content of r, decompressing it when it starts with the
// gzip magic bytes. A non-positive maxSize means DefaultMaxSize.
func Read(r io.Reader, maxSize int64) (string, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	var src io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxSize {
		return "", ErrTooLarge
	}
	return string(data), nil
}

// DisplayName strips directories and a .gz suffix from path.
func DisplayName(path string) string {
	name := filepath.Base(path)
	if trimmed := strings.TrimSuffix(name, ".gz"); trimmed != "" {
		return trimmed
	}
	return name
}
