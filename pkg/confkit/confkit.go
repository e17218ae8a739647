// Package confkit holds the small config-loading conventions shared by the
// binaries: yaml files loaded through go-zero's conf, env-var expansion in
// paths, and sub-config sections hydrated from sibling files.
package confkit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeromicro/go-zero/core/conf"
)

// ResolvePath expands environment variables in file and, when the result is
// relative, anchors it at base. Absolute paths pass through.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory of the main config file, the anchor for
// relative section paths.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// LoadFile loads a yaml config file into T, optionally overlaying
// environment variables via go-zero's conf.UseEnv.
func LoadFile[T any](path string, useEnv bool) (*T, error) {
	var cfg T
	var opts []conf.Option
	if useEnv {
		opts = append(opts, conf.UseEnv())
	}
	if err := conf.Load(path, &cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

// Section is a config subsection kept in its own file next to the main
// config. File names the sub-config; Value holds the parsed result after
// Hydrate.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate resolves File against base and parses it with loader, storing the
// result in Value. An empty File leaves the section unhydrated, which the
// owning config's Validate decides how to treat.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if s.File == "" {
		return nil
	}
	path := ResolvePath(base, s.File)
	value, err := loader(path)
	if err != nil {
		return err
	}
	s.File, s.Value = path, value
	return nil
}
