//go:build !windows

package filesystem

import "os"

// osReplace: POSIX rename 覆盖目标是原子的。
func osReplace(tmpPath, dest string) error { return os.Rename(tmpPath, dest) }

// syncDir: fsync 父目录，使 rename 在崩溃后仍可见。
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
