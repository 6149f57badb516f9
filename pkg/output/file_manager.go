// Package output owns the directory that augmented files are written to.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dixieflatline76/Jitter/util/log"
	"github.com/google/uuid"
)

// Name prefixes shared by fixed and unique output names.
const (
	imagePrefix = "augmented_image"
	videoPrefix = "augmented_video"
)

const (
	outputPerm = 0644

	// Partial files belong to running jobs until they are at least this old,
	// whatever the retention window.
	partialGrace = 24 * time.Hour
)

// FileManager handles all file system operations for augmented outputs.
type FileManager struct {
	rootDir string
	unique  bool
}

// NewFileManager creates a new FileManager rooted at rootDir.
// With unique set, every request gets its own file name; otherwise the two
// fixed names are reused and the last write wins.
func NewFileManager(rootDir string, unique bool) *FileManager {
	return &FileManager{
		rootDir: rootDir,
		unique:  unique,
	}
}

// RootDir returns the directory outputs are written to.
func (fm *FileManager) RootDir() string {
	return fm.rootDir
}

// EnsureDirs creates the output directory if it is missing.
func (fm *FileManager) EnsureDirs() error {
	if err := os.MkdirAll(fm.rootDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", fm.rootDir, err)
	}
	return nil
}

// NewName returns the file name for the next output with the given prefix and
// extension, e.g. ("augmented_image", ".jpg").
func (fm *FileManager) NewName(prefix, ext string) string {
	if !fm.unique {
		return prefix + ext
	}
	return prefix + "_" + uuid.NewString() + ext
}

// ImageName returns the name for the next JPEG output.
func (fm *FileManager) ImageName() string {
	return fm.NewName(imagePrefix, ".jpg")
}

// VideoName returns the name for the next MP4 output.
func (fm *FileManager) VideoName() string {
	return fm.NewName(videoPrefix, ".mp4")
}

// validateName ensures the name does not contain path traversal characters.
func (fm *FileManager) validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid output name %q", name)
	}
	return nil
}

// Path returns the absolute path for an output name.
func (fm *FileManager) Path(name string) (string, error) {
	if err := fm.validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(fm.rootDir, name), nil
}

// Resolve maps a download name back to an existing generated file.
func (fm *FileManager) Resolve(name string) (string, error) {
	if !isGenerated(name) {
		return "", fmt.Errorf("%q is not a generated output", name)
	}

	path, err := fm.Path(name)
	if err != nil {
		return "", err
	}

	absRoot, err := filepath.Abs(fm.rootDir)
	if err != nil {
		return "", fmt.Errorf("invalid output root: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}
	if filepath.Dir(absPath) != filepath.Clean(absRoot) {
		return "", fmt.Errorf("path traversal detected")
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory", name)
	}
	return absPath, nil
}

// TempFile creates a scratch file in the output directory. Renaming it into
// place with Commit is atomic because both live on the same filesystem.
func (fm *FileManager) TempFile(ext string) (*os.File, error) {
	f, err := os.CreateTemp(fm.rootDir, ".partial-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("creating temp output: %w", err)
	}
	return f, nil
}

// Commit moves a finished temp file to its final name, replacing any previous file.
func (fm *FileManager) Commit(tmpPath, name string) (string, error) {
	dst, err := fm.Path(name)
	if err != nil {
		return "", err
	}
	// CreateTemp makes files private.
	if err := os.Chmod(tmpPath, outputPerm); err != nil {
		return "", fmt.Errorf("setting output permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("moving output into place: %w", err)
	}
	return dst, nil
}

// WriteFile writes the output produced by fn under name atomically.
func (fm *FileManager) WriteFile(name string, fn func(w io.Writer) error) (string, error) {
	f, err := fm.TempFile(filepath.Ext(name))
	if err != nil {
		return "", err
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := fn(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing temp output: %w", err)
	}
	return fm.Commit(tmpPath, name)
}

// Prune removes generated outputs older than maxAge, and partial files older
// than both maxAge and partialGrace. It returns the number of files removed.
func (fm *FileManager) Prune(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	entries, err := os.ReadDir(fm.rootDir)
	if err != nil {
		log.Printf("FileManager: prune skipped: %v", err)
		return 0
	}

	now := time.Now()
	cutoff := now.Add(-maxAge)
	partialCutoff := now.Add(-max(maxAge, partialGrace))
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		limit := cutoff
		switch {
		case isGenerated(name):
		case strings.HasPrefix(name, ".partial-"):
			limit = partialCutoff
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(limit) {
			continue
		}
		if err := os.Remove(filepath.Join(fm.rootDir, name)); err != nil {
			if !os.IsNotExist(err) {
				log.Printf("FileManager: failed to delete %s: %v", name, err)
			}
			continue
		}
		log.Debugf("FileManager: pruned %s", name)
		deleted++
	}
	if deleted > 0 {
		log.Printf("FileManager: pruned %d old outputs", deleted)
	}
	return deleted
}

// isGenerated reports whether name looks like a file this manager produced.
func isGenerated(name string) bool {
	switch {
	case strings.HasPrefix(name, imagePrefix) && strings.HasSuffix(name, ".jpg"):
		return true
	case strings.HasPrefix(name, videoPrefix) && strings.HasSuffix(name, ".mp4"):
		return true
	}
	return false
}
