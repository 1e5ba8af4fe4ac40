// Package protodef loads interface-definition (.proto) documents at runtime
// and exposes the services and message shapes they declare as a Catalog.
package protodef

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bufbuild/protocompile"
)

// Options mirror the loader flags the backend's JSON consumers expect.
type Options struct {
	KeepCase      bool // keys are proto field names instead of lowerCamel JSON names
	LongsAsString bool // 64-bit integers rendered as decimal strings
	EnumsAsString bool // enum values rendered by name
	Defaults      bool // unpopulated fields rendered with their default value
	Oneofs        bool // populated oneofs get a virtual key naming the member that is set
}

// DefaultOptions enables every option.
func DefaultOptions() Options {
	return Options{
		KeepCase:      true,
		LongsAsString: true,
		EnumsAsString: true,
		Defaults:      true,
		Oneofs:        true,
	}
}

// Load parses the given definition files and builds a catalog from them.
// Imports are resolved relative to the directories of the given files, and
// the well-known google/protobuf imports are always available.
func Load(ctx context.Context, paths []string, opts Options) (*Catalog, error) {
	if len(paths) == 0 {
		return nil, errors.New("no definition files given")
	}

	var importPaths []string
	seenDirs := make(map[string]bool)
	seenNames := make(map[string]string)
	names := make([]string, 0, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve definition %s: %w", p, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("definition %s: %w", p, err)
		}

		name := filepath.Base(abs)
		if prev, dup := seenNames[name]; dup && prev != abs {
			return nil, fmt.Errorf("definitions %s and %s share the file name %q", prev, abs, name)
		} else if dup {
			continue
		}
		seenNames[name] = abs
		names = append(names, name)

		dir := filepath.Dir(abs)
		if !seenDirs[dir] {
			seenDirs[dir] = true
			importPaths = append(importPaths, dir)
		}
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(requestedFirst(seenNames, importPaths)),
	}

	files, err := compiler.Compile(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("compile definitions: %w", err)
	}

	catalog := newCatalog(opts)
	for _, f := range files {
		catalog.add(f)
	}
	return catalog, nil
}

// requestedFirst resolves each requested file to the exact path it was given
// as. Only imports of other files go through the search path, so a same-named
// file in another directory cannot stand in for a requested one.
func requestedFirst(requested map[string]string, importPaths []string) protocompile.Resolver {
	sources := &protocompile.SourceResolver{ImportPaths: importPaths}
	return protocompile.ResolverFunc(func(name string) (protocompile.SearchResult, error) {
		abs, ok := requested[name]
		if !ok {
			return sources.FindFileByPath(name)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return protocompile.SearchResult{}, err
		}
		return protocompile.SearchResult{Source: bytes.NewReader(data)}, nil
	})
}
