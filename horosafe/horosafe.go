// Package horosafe provides the file-system guards used when user input
// names files: chapter name validation, path traversal checks and bounded
// reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxNameLen is the longest accepted file name, in bytes.
const MaxNameLen = 255

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrInvalidName is returned for file names that cannot name a single file.
var ErrInvalidName = errors.New("horosafe: invalid file name")

// ErrTooLarge is returned when a read exceeds its limit.
var ErrTooLarge = errors.New("horosafe: content exceeds size limit")

// SafePath joins base and userInput and verifies the result stays under base.
// Returns the cleaned path or ErrPathTraversal.
func SafePath(base, userInput string) (string, error) {
	for _, part := range strings.FieldsFunc(userInput, isSeparator) {
		if part == ".." {
			return "", ErrPathTraversal
		}
	}
	cleanBase := filepath.Clean(base)
	cleaned := filepath.Join(cleanBase, filepath.Clean("/"+userInput))
	if cleaned != cleanBase && !strings.HasPrefix(cleaned, cleanBase+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateFileName accepts a single path element: non-empty, no separators,
// no control characters, not "." or "..". Spaces and punctuation are fine,
// chapter files are named like "Chapter 3. Belay Anchors.pdf".
func ValidateFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(name) > MaxNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLen)
	}
	for _, r := range name {
		if isSeparator(r) || unicode.IsControl(r) || r == unicode.ReplacementChar {
			return fmt.Errorf("%w: character %q in %q", ErrInvalidName, r, name)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r. Returns ErrTooLarge if the
// limit is exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// ReadFileLimited reads a whole file of at most maxBytes. The size is checked
// before reading and enforced again while reading, so a file growing
// underneath still cannot exceed the limit.
func ReadFileLimited(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, info.Size(), maxBytes)
	}
	return LimitedReadAll(f, maxBytes)
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\' || r == filepath.Separator
}
