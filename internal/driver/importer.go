package driver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"krait/internal/vm"
)

// FileImporter resolves dotted module names against dirs in order:
// "a.b" is a/b.kr, or a/b/__init__.kr for a package directory.
func FileImporter(dirs []string) vm.Importer {
	return func(name string) ([]byte, bool) {
		if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
			return nil, false
		}
		rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
		for _, dir := range dirs {
			for _, candidate := range []string{
				filepath.Join(dir, rel+SourceExt),
				filepath.Join(dir, rel, "__init__"+SourceExt),
			} {
				// #nosec G304 -- module search path is user configuration
				src, err := os.ReadFile(candidate)
				if err == nil {
					return src, true
				}
				if !errors.Is(err, os.ErrNotExist) {
					// нечитаемый файл считаем отсутствующим, поиск продолжается
					continue
				}
			}
		}
		return nil, false
	}
}
