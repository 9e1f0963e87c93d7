package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"

	"fortio.org/safecast"
)

// FileID names a file inside a FileSet. NoFile is never issued.
type FileID uint32

// FileFlags records how a file's text was obtained and normalized.
type FileFlags uint8

const (
	FileVirtual        FileFlags = 1 << iota // from memory: eval text, a REPL cell, a test
	FileHadBOM                               // a UTF-8 BOM was stripped
	FileNormalizedCRLF                       // \r\n was rewritten to \n
)

// File is one script's normalized text with a line index.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32 // offset of every '\n'
	Flags   FileFlags
}

// LineCol is a 1-based line and byte column.
type LineCol struct {
	Line uint32
	Col  uint32
}

var bom = []byte{0xEF, 0xBB, 0xBF}

func newFile(path string, content []byte, flags FileFlags) *File {
	if rest, ok := bytes.CutPrefix(content, bom); ok {
		content = rest
		flags |= FileHadBOM
	}
	if bytes.Contains(content, []byte("\r\n")) {
		// одиночный \r оставляем, лексер сообщит о нём сам
		content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
		flags |= FileNormalizedCRLF
	}
	f := &File{Path: normalizePath(path), Content: content, Flags: flags}
	for i, b := range content {
		if b == '\n' {
			f.LineIdx = append(f.LineIdx, uint32(i)) // #nosec G115 -- sizes are checked by contentLen
		}
	}
	f.contentLen()
	return f
}

// NewFile builds a virtual file outside any FileSet, with ID NoFile. The
// engine compiles eval text, exec text and REPL cells from such files.
func NewFile(path string, content []byte) *File {
	return newFile(path, content, FileVirtual)
}

func normalizePath(p string) string {
	// "<stdin>", "<eval>" и прочие псевдо-имена не трогаем
	if p == "" || p[0] == '<' {
		return p
	}
	return filepath.ToSlash(filepath.Clean(p))
}

func (f *File) contentLen() uint32 {
	n, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("%s: file too large: %w", f.Path, err))
	}
	return n
}

// Position converts a byte offset into a line and column. A newline
// belongs to the line it ends.
func (f *File) Position(off uint32) LineCol {
	line := sort.Search(len(f.LineIdx), func(i int) bool { return f.LineIdx[i] >= off })
	start := uint32(0)
	if line > 0 {
		start = f.LineIdx[line-1] + 1
	}
	return LineCol{Line: uint32(line) + 1, Col: off - start + 1} // #nosec G115 -- line <= len(LineIdx)
}

// LineCount counts lines; text without a final newline still has one.
func (f *File) LineCount() uint32 {
	return uint32(len(f.LineIdx)) + 1 // #nosec G115 -- bounded by contentLen
}

// LineStart is the offset of the first byte of line n (1-based). Lines past
// the end start at len(Content).
func (f *File) LineStart(n uint32) uint32 {
	switch {
	case n <= 1:
		return 0
	case int(n)-2 >= len(f.LineIdx):
		return f.contentLen()
	}
	return f.LineIdx[n-2] + 1
}

// GetLine returns line n without its newline, or "" when out of range.
func (f *File) GetLine(n uint32) string {
	if n == 0 || n > f.LineCount() {
		return ""
	}
	start, end := f.LineStart(n), f.contentLen()
	if int(n-1) < len(f.LineIdx) {
		end = f.LineIdx[n-1]
	}
	if start > end {
		return ""
	}
	return string(f.Content[start:end])
}
