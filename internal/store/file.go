package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/fieldlink/internal/fault"
)

const fileVersion = 1

// document is the on-disk layout of a File store
type document struct {
	Version    int                         `yaml:"version"`
	Namespaces map[string]map[string]Value `yaml:"namespaces,omitempty"`
}

// File is a Store persisted as a single YAML document. Every mutation
// re-reads the document, applies the change and rewrites it atomically, so
// keys written by another process (fieldlink-device reset) are kept.
type File struct {
	mu   sync.Mutex
	path string
	doc  document
}

func emptyDocument() document {
	return document{
		Version:    fileVersion,
		Namespaces: make(map[string]map[string]Value),
	}
}

// OpenFile loads the store at path. A missing file yields an empty store;
// the file is created on the first mutation.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, doc: emptyDocument()}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the backing file path
func (f *File) Path() string {
	return f.path
}

// Reload replaces the in-memory document with the one on disk. The daemon
// calls it at every boot.
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// load reads the document from disk. Caller holds f.mu or owns f.
func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.doc = emptyDocument()
		return nil
	}
	if err != nil {
		return fault.NewStorageError("read store file", err)
	}

	doc := emptyDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fault.NewStorageError("parse store file", err)
	}
	if doc.Version != fileVersion {
		return fault.NewStorageError("open store file",
			fmt.Errorf("unsupported store version: %d (expected %d)", doc.Version, fileVersion))
	}
	if doc.Namespaces == nil {
		doc.Namespaces = make(map[string]map[string]Value)
	}

	f.doc = doc
	return nil
}

// Get implements Store
func (f *File) Get(ns Namespace, key string) (Value, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.doc.Namespaces[string(ns)][key]
	return v, ok, nil
}

// Put implements Store
func (f *File) Put(ns Namespace, key string, v Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}

	bucket := f.doc.Namespaces[string(ns)]
	if bucket == nil {
		bucket = make(map[string]Value)
		f.doc.Namespaces[string(ns)] = bucket
	}

	prior, hadPrior := bucket[key]
	bucket[key] = v

	if err := f.save(); err != nil {
		if hadPrior {
			bucket[key] = prior
		} else {
			delete(bucket, key)
		}
		return fault.NewStorageError("put "+string(ns)+"/"+key, err)
	}
	return nil
}

// Delete implements Store
func (f *File) Delete(ns Namespace, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}

	bucket := f.doc.Namespaces[string(ns)]
	prior, hadPrior := bucket[key]
	if !hadPrior {
		return nil
	}
	delete(bucket, key)

	if err := f.save(); err != nil {
		bucket[key] = prior
		return fault.NewStorageError("delete "+string(ns)+"/"+key, err)
	}
	return nil
}

// Clear implements Store
func (f *File) Clear(ns Namespace) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}

	prior, hadPrior := f.doc.Namespaces[string(ns)]
	if !hadPrior {
		return nil
	}
	delete(f.doc.Namespaces, string(ns))

	if err := f.save(); err != nil {
		f.doc.Namespaces[string(ns)] = prior
		return fault.NewStorageError("clear "+string(ns), err)
	}
	return nil
}

// save writes the document to a temporary file and renames it into place.
// Caller holds f.mu.
func (f *File) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := yaml.Marshal(&f.doc)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	header := []byte("# fieldlink device store. Written by fieldlink-device; do not edit while it runs.\n\n")
	data = append(header, data...)

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary store file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	return nil
}
