package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SyncResult lists the relative paths a Sync copied and skipped.
type SyncResult struct {
	Copied  []string
	Skipped []string
}

// Sync copies every .json and .sql file from <dir>/<from>/ to <dir>/<to>/,
// preserving relative subdirectory structure. Files already present at the
// destination are skipped unless overwrite is set. A missing source
// directory is an error.
func (l *Loader) Sync(from, to string, overwrite bool) (SyncResult, error) {
	result := SyncResult{
		Copied:  []string{},
		Skipped: []string{},
	}

	srcRoot := filepath.Join(l.dir, from)
	dstRoot := filepath.Join(l.dir, to)

	info, err := os.Stat(srcRoot)
	if err != nil {
		return result, fmt.Errorf("source directory %s: %w", srcRoot, err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("source %s is not a directory", srcRoot)
	}

	err = filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".json" && ext != ".sql" {
			return nil
		}

		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstRoot, rel)

		if !overwrite {
			if _, err := os.Stat(dst); err == nil {
				result.Skipped = append(result.Skipped, rel)
				return nil
			}
		}

		if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("copying %s: %w", rel, err)
		}
		result.Copied = append(result.Copied, rel)
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
