package driver

import (
	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/source"
)

// CompileFile loads and compiles one file. The caller releases the unit.
func CompileFile(path string, mode code.Mode) (*code.Unit, *source.File, error) {
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		return nil, nil, err
	}
	file := fs.Get(id)
	u, err := compiler.Compile(file, compiler.Options{Mode: mode})
	if err != nil {
		return nil, file, err
	}
	return u, file, nil
}
