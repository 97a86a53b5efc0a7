package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format is a catalog file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Parse decodes a catalog. Unknown fields are rejected for YAML and TOML.
func Parse(data []byte, format Format) (*Catalog, error) {
	var c Catalog
	var err error

	switch format {
	case FormatYAML:
		err = yaml.UnmarshalWithOptions(data, &c, yaml.DisallowUnknownField())
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&c)
	case FormatJSON:
		err = sonic.Unmarshal(data, &c)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidCatalog, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidCatalog, format, err)
	}
	return &c, nil
}

// LoadFile reads and decodes one catalog file
func LoadFile(path string) (*Catalog, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unknown extension", ErrInvalidCatalog, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Source = path
	return c, nil
}

// LoadDir decodes every catalog file below dir. Files are returned ordered
// by path; files with other extensions are ignored. A missing dir yields
// no catalogs.
func LoadDir(ctx context.Context, dir string) ([]*Catalog, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		files []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := FormatFromPath(p); ok {
			mu.Lock()
			files = append(files, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk catalog dir %s: %w", dir, err)
	}

	slices.Sort(files)
	catalogs := make([]*Catalog, 0, len(files))
	for _, f := range files {
		c, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, c)
	}
	return catalogs, nil
}

// LoadInto reads dir and swaps the result into r
func LoadInto(ctx context.Context, r *Registry, dir string) error {
	catalogs, err := LoadDir(ctx, dir)
	if err != nil {
		return err
	}
	return r.Load(catalogs)
}
