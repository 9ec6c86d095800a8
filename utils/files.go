package utils

import (
	"os"
	"path/filepath"
)

// DirPerm is used for every directory created on behalf of a log file.
const DirPerm os.FileMode = 0o755

// FilePerm is used for active log files.
const FilePerm os.FileMode = 0o644

func Exists(path string) (isDir bool, exists bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return info.IsDir(), true, nil
}

func CreateDir(path string) error {
	return os.MkdirAll(path, DirPerm)
}

// EnsureParentDir creates the directory holding path if it is missing.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return CreateDir(dir)
}

// OpenLogFile opens path for appending, creating parent directories first.
// With truncate set, existing contents are discarded.
func OpenLogFile(path string, truncate bool) (*os.File, error) {
	if err := EnsureParentDir(path); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(path, flags, FilePerm)
}
