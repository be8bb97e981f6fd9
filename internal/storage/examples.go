package storage

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed examples/*.in
var examples embed.FS

var ErrUnknownExample = errors.New("storage: unknown example")

const exampleExt = ".in"

// ExampleNames lists the bundled example scripts.
func ExampleNames() []string {
	entries, _ := fs.ReadDir(examples, "examples")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), exampleExt))
	}
	sort.Strings(names)
	return names
}

// Example returns the source of a bundled example.
func Example(name string) (string, error) {
	data, err := examples.ReadFile(path.Join("examples", name+exampleExt))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownExample, name)
	}
	return string(data), nil
}

func (s *Store) ExamplesDir() string { return filepath.Join(s.baseDir, "examples") }

// InstallExamples copies the bundled examples into the examples dir. Files
// that already exist are left alone so local edits survive. It returns the
// paths it wrote.
func (s *Store) InstallExamples() ([]string, error) {
	dir := s.ExamplesDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var written []string
	for _, name := range ExampleNames() {
		src, err := Example(name)
		if err != nil {
			return written, err
		}
		dst := filepath.Join(dir, name+exampleExt)
		f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return written, err
		}
		_, werr := f.WriteString(src)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}
