// Package layout creates the on-disk installation layout named by the
// resolved paths and manages the process id file.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"qcache/config"
)

// ErrPidFileExists is returned when the pid file names another process.
var ErrPidFileExists = errors.New("pid file already exists")

// Dirs returns the directories the persistence subsystems expect to exist.
func Dirs(paths config.Paths) []string {
	return []string{
		paths.RaftLog,
		paths.RaftSnapshot,
		paths.CacheFiles,
		paths.CacheAof,
		filepath.Dir(paths.Checkpoint),
		filepath.Dir(paths.PidFile),
	}
}

// Prepare creates every directory returned by Dirs.
func Prepare(fsys afero.Fs, paths config.Paths) error {
	for _, dir := range Dirs(paths) {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// processAlive reports whether a process with the given pid exists.
var processAlive = func(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// WritePidFile records pid at path. An existing file naming the same pid, or
// a process that no longer runs, is overwritten; one naming another live
// process is left alone.
func WritePidFile(fsys afero.Fs, path string, pid int) error {
	existing, err := ReadPidFile(fsys, path)
	switch {
	case err == nil && existing != pid && processAlive(existing):
		return fmt.Errorf("%w: %s holds pid %d", ErrPidFileExists, path, existing)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return afero.WriteFile(fsys, path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPidFile returns the pid recorded at path.
func ReadPidFile(fsys afero.Fs, path string) (int, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pid file %s: %w", path, err)
	}
	return pid, nil
}

// RemovePidFile deletes the pid file if it still names pid.
func RemovePidFile(fsys afero.Fs, path string, pid int) error {
	existing, err := ReadPidFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing != pid {
		return nil
	}
	if err := fsys.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
