package source

import (
	"fmt"
	"os"

	"fortio.org/safecast"
)

// NoFile is the FileID of spans that belong to no file, such as the
// diagnostic for a script that could not be read. FileSet never issues it.
const NoFile FileID = 0

// FileSet owns the files of one check or tokenize run. It is not safe for
// concurrent mutation; check loads every file before compiling in parallel.
type FileSet struct {
	files []*File // files[0] is the NoFile slot
	index map[string]FileID
}

func NewFileSet() *FileSet {
	return &FileSet{
		files: []*File{nil},
		index: make(map[string]FileID),
	}
}

// Add normalizes content and stores it under a fresh ID. Adding the same
// path twice yields two IDs; GetLatest returns the newer one.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	return fileSet.add(newFile(path, content, flags))
}

func (fileSet *FileSet) add(f *File) FileID {
	n, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("file set overflow: %w", err))
	}
	f.ID = FileID(n)
	fileSet.files = append(fileSet.files, f)
	fileSet.index[f.Path] = f.ID
	return f.ID
}

// Load reads path from disk and adds it with BOM and CRLF normalized.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- scripts are named by the user
	content, err := os.ReadFile(path)
	if err != nil {
		return NoFile, err
	}
	return fileSet.add(newFile(path, content, 0)), nil
}

// AddVirtual adds in-memory text such as a test snippet.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.add(newFile(name, content, FileVirtual))
}

// Get returns the file for id, or nil for NoFile and unknown IDs.
func (fileSet *FileSet) Get(id FileID) *File {
	if id == NoFile || int(id) >= len(fileSet.files) {
		return nil
	}
	return fileSet.files[id]
}

// GetLatest returns the newest ID added under path.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// Len is the number of files added.
func (fileSet *FileSet) Len() int {
	return len(fileSet.files) - 1
}

// Resolve converts a span into start and end positions. Spans of unknown
// files resolve to zero positions.
func (fileSet *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fileSet.Get(span.File)
	if f == nil {
		return LineCol{}, LineCol{}
	}
	return f.Position(span.Start), f.Position(span.End)
}
