// Package storage owns the on-disk layout of cached sources. Every
// other component goes through it; nothing else touches the root
// directory. Writes are whole-file and atomic (tmp + rename), so a
// sidecar can never point at a file that does not exist.
//
// Per-alias layout under the root:
//
//	<root>/<alias>/llms.txt        canonical content
//	<root>/<alias>/llms.json       toc + metadata sidecar
//	<root>/<alias>/metadata.json   fetch metadata
//	<root>/<alias>/anchors.json    anchor remap history (optional)
//	<root>/<alias>/.index/         search index
//	<root>/<alias>/.archive/       timestamped snapshots
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bad33ndj3/docdex/internal/domain"
)

const (
	llmsTxtName   = "llms.txt"
	llmsJSONName  = "llms.json"
	metadataName  = "metadata.json"
	anchorsName   = "anchors.json"
	indexDirName  = ".index"
	buildDirName  = ".index.new"
	archiveName   = ".archive"
	archiveStamp  = "2006-01-02T15-04Z"
	dirPerm       = 0o755
	filePerm      = 0o644
)

// Storage provides access to the per-alias directory tree.
type Storage struct {
	root string
}

// New creates a Storage rooted at dir, creating it if needed.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, domain.StorageErr("storage.init", err)
	}
	return &Storage{root: dir}, nil
}

// DefaultRoot returns the per-user cache root (~/.docdex).
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", domain.StorageErr("storage.root", err)
	}
	return filepath.Join(home, ".docdex"), nil
}

// Root returns the root directory.
func (s *Storage) Root() string { return s.root }

// SourceDir returns the directory for one alias, validating it first.
func (s *Storage) SourceDir(alias string) (string, error) {
	if err := domain.ValidateAlias(alias); err != nil {
		return "", err
	}
	return filepath.Join(s.root, alias), nil
}

// IndexDir returns the live search index directory for an alias.
func (s *Storage) IndexDir(alias string) (string, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, indexDirName), nil
}

// IndexBuildDir returns the sibling directory where a replacement
// index is built before the atomic swap.
func (s *Storage) IndexBuildDir(alias string) (string, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, buildDirName), nil
}

// Exists reports whether the alias has a readable llms.json.
func (s *Storage) Exists(alias string) bool {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(filepath.Join(dir, llmsJSONName))
	return statErr == nil
}

// SaveLlmsTxt atomically writes the canonical content.
func (s *Storage) SaveLlmsTxt(alias, content string) error {
	dir, err := s.ensureDir(alias)
	if err != nil {
		return err
	}
	return s.atomicWrite(filepath.Join(dir, llmsTxtName), []byte(content))
}

// LoadLlmsTxt reads the canonical content.
func (s *Storage) LoadLlmsTxt(alias string) (string, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, llmsTxtName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.NotFoundErr("storage.read", "source "+alias)
		}
		return "", domain.StorageErr("storage.read", err)
	}
	return string(data), nil
}

// SaveLlmsJson atomically writes the parsed-structure sidecar.
func (s *Storage) SaveLlmsJson(alias string, doc *domain.LlmsJson) error {
	dir, err := s.ensureDir(alias)
	if err != nil {
		return err
	}
	return s.atomicWriteJSON(filepath.Join(dir, llmsJSONName), doc)
}

// LoadLlmsJson reads and parses the sidecar.
func (s *Storage) LoadLlmsJson(alias string) (*domain.LlmsJson, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return nil, err
	}
	var doc domain.LlmsJson
	if err := s.readJSON(filepath.Join(dir, llmsJSONName), &doc, "source "+alias); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveMetadata atomically writes fetch metadata.
func (s *Storage) SaveMetadata(alias string, src *domain.Source) error {
	dir, err := s.ensureDir(alias)
	if err != nil {
		return err
	}
	return s.atomicWriteJSON(filepath.Join(dir, metadataName), src)
}

// LoadMetadata reads fetch metadata.
func (s *Storage) LoadMetadata(alias string) (*domain.Source, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return nil, err
	}
	var src domain.Source
	if err := s.readJSON(filepath.Join(dir, metadataName), &src, "source "+alias); err != nil {
		return nil, err
	}
	return &src, nil
}

// SaveAnchors atomically writes the anchor remap history.
func (s *Storage) SaveAnchors(alias string, m *domain.AnchorsMap) error {
	dir, err := s.ensureDir(alias)
	if err != nil {
		return err
	}
	return s.atomicWriteJSON(filepath.Join(dir, anchorsName), m)
}

// LoadAnchors reads the anchor remap history. A missing file yields an
// empty map, not an error.
func (s *Storage) LoadAnchors(alias string) (*domain.AnchorsMap, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return nil, err
	}
	var m domain.AnchorsMap
	err = s.readJSON(filepath.Join(dir, anchorsName), &m, "anchors for "+alias)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return &domain.AnchorsMap{}, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListSources enumerates aliases: immediate subdirectories not
// starting with "." that contain a readable llms.json.
func (s *Storage) ListSources() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.StorageErr("storage.list", err)
	}

	var sources []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, statErr := os.Stat(filepath.Join(s.root, entry.Name(), llmsJSONName)); statErr == nil {
			sources = append(sources, entry.Name())
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// Delete removes the entire per-alias subtree.
func (s *Storage) Delete(alias string) error {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return err
	}
	if !s.Exists(alias) {
		return domain.NotFoundErr("storage.delete", "source "+alias)
	}
	if err := os.RemoveAll(dir); err != nil {
		return domain.StorageErr("storage.delete", err)
	}
	return nil
}

// Archive copies the current llms.txt and llms.json into .archive/
// with a UTC timestamp prefix. Missing files are skipped silently so
// a first add never fails here.
func (s *Storage) Archive(alias string, now time.Time) error {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return err
	}
	archiveDir := filepath.Join(dir, archiveName)
	if err := os.MkdirAll(archiveDir, dirPerm); err != nil {
		return domain.StorageErr("storage.archive", err)
	}

	stamp := now.UTC().Format(archiveStamp)
	for _, name := range []string{llmsTxtName, llmsJSONName} {
		src := filepath.Join(dir, name)
		data, readErr := os.ReadFile(src)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				continue
			}
			return domain.StorageErr("storage.archive", readErr)
		}
		dst := filepath.Join(archiveDir, fmt.Sprintf("%s-%s", stamp, name))
		if writeErr := s.atomicWrite(dst, data); writeErr != nil {
			return writeErr
		}
	}
	return nil
}

// ListArchives returns the timestamp prefixes present in .archive/,
// oldest first.
func (s *Storage) ListArchives(alias string) ([]string, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, archiveName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.StorageErr("storage.archive", err)
	}

	seen := map[string]bool{}
	var stamps []string
	for _, entry := range entries {
		name := entry.Name()
		idx := strings.LastIndex(name, "-llms.")
		if idx <= 0 {
			continue
		}
		stamp := name[:idx]
		if !seen[stamp] {
			seen[stamp] = true
			stamps = append(stamps, stamp)
		}
	}
	sort.Strings(stamps)
	return stamps, nil
}

// LoadArchivedLlmsTxt reads one archived snapshot's content.
func (s *Storage) LoadArchivedLlmsTxt(alias, stamp string) (string, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, archiveName, stamp+"-"+llmsTxtName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.NotFoundErr("storage.archive", "snapshot "+stamp)
		}
		return "", domain.StorageErr("storage.archive", err)
	}
	return string(data), nil
}

// LoadArchivedLlmsJson reads one archived snapshot's sidecar.
func (s *Storage) LoadArchivedLlmsJson(alias, stamp string) (*domain.LlmsJson, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return nil, err
	}
	var doc domain.LlmsJson
	if err := s.readJSON(filepath.Join(dir, archiveName, stamp+"-"+llmsJSONName), &doc, "snapshot "+stamp); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CleanBuildDir removes a leftover .index.new/ from an interrupted
// build. Safe to call when none exists.
func (s *Storage) CleanBuildDir(alias string) error {
	dir, err := s.IndexBuildDir(alias)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return domain.StorageErr("storage.clean", err)
	}
	return nil
}

// SwapIndexDir atomically replaces .index/ with .index.new/ via
// remove-then-rename. In-flight readers keep operating on handles
// loaded before the swap.
func (s *Storage) SwapIndexDir(alias string) error {
	live, err := s.IndexDir(alias)
	if err != nil {
		return err
	}
	build, err := s.IndexBuildDir(alias)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(build); statErr != nil {
		return domain.IndexErr("storage.swap", statErr)
	}
	if err := os.RemoveAll(live); err != nil {
		return domain.StorageErr("storage.swap", err)
	}
	if err := os.Rename(build, live); err != nil {
		return domain.StorageErr("storage.swap", err)
	}
	return nil
}

func (s *Storage) ensureDir(alias string) (string, error) {
	dir, err := s.SourceDir(alias)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", domain.StorageErr("storage.mkdir", err)
	}
	return dir, nil
}

// atomicWrite writes to <path>.tmp then renames over <path>.
func (s *Storage) atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return domain.StorageErr("storage.write", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return domain.StorageErr("storage.write", err)
	}
	return nil
}

func (s *Storage) atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return domain.StorageErr("storage.encode", err)
	}
	return s.atomicWrite(path, append(data, '\n'))
}

func (s *Storage) readJSON(path string, v any, what string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NotFoundErr("storage.read", what)
		}
		return domain.StorageErr("storage.read", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.StorageErr("storage.decode", err)
	}
	return nil
}
