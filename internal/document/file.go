package document

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultBackupSuffix is appended to the configuration path to name the
// backup copy.
const DefaultBackupSuffix = ".bak"

// syncDir flushes a directory entry change to disk.
var syncDir = func(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}

// File is the on-disk location of a configuration document.
type File struct {
	Path         string
	BackupSuffix string
}

// BackupPath returns the path of the backup copy.
func (f *File) BackupPath() string {
	suffix := f.BackupSuffix
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	return f.Path + suffix
}

// Backup copies the configuration byte for byte to BackupPath, replacing any
// previous backup. The copy gets the permission bits of the original since
// it holds the same private key. An existing backup is replaced by rename,
// never written through, so a planted symlink is not followed.
func (f *File) Backup() error {
	src, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	err = writeAtomic(f.BackupPath(), uint32(info.Mode().Perm()), -1, -1, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("cannot copy %s to %s: %w", f.Path, f.BackupPath(), err)
	}
	return nil
}

// Replace overwrites the configuration with data. The content is written to
// a temporary file next to the target and renamed over it, so readers see
// either the old or the new document. Mode and ownership of the original
// are carried over.
func (f *File) Replace(data []byte) error {
	target, err := filepath.EvalSymlinks(f.Path)
	if err != nil {
		return err
	}
	var st unix.Stat_t
	if err := unix.Stat(target, &st); err != nil {
		return fmt.Errorf("cannot stat %s: %w", target, err)
	}

	return writeAtomic(target, st.Mode&0o7777, int(st.Uid), int(st.Gid), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeAtomic creates path with the content produced by write through a
// temporary file and a rename. uid and gid of -1 leave ownership alone.
// Once the rename succeeded the new content is in place; a failure to sync
// the directory afterwards is only logged.
func writeAtomic(path string, mode uint32, uid, gid int, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	fd := int(tmp.Fd())
	if err := unix.Fchmod(fd, mode); err != nil {
		return err
	}
	if uid >= 0 || gid >= 0 {
		// Only root may hand a file to another user; an unprivileged caller
		// writing its own file keeps the ownership it already has.
		if err := unix.Fchown(fd, uid, gid); err != nil && !errors.Is(err, unix.EPERM) {
			return err
		}
	}
	if err := unix.Fsync(fd); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	if err := syncDir(dir); err != nil {
		slog.Warn("renamed file may not survive a crash, cannot sync directory", "dir", dir, "error", err)
	}
	return nil
}
