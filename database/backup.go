package database

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const backupStampLayout = "20060102_150405"

// <stamp>_somenergia.db.zip, stamp in UTC
var backupName = regexp.MustCompile(`^(\d{8}_\d{6})_somenergia\.db\.zip$`)

func (d *Database) BackupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup vacuums the database into BackupDir and zips the copy. Only the
// zip is kept.
func (d *Database) Backup(ctx context.Context) error {
	dir := d.BackupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	snapshot := filepath.Join(dir, time.Now().UTC().Format(backupStampLayout)+"_somenergia.db")
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("vacuum into %s: %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("could not remove uncompressed snapshot", slog.String("path", snapshot), slog.Any("error", err))
		}
	}()

	archive := snapshot + ".zip"
	if err := zipSnapshot(snapshot, archive, filepath.Base(d.path)); err != nil {
		os.Remove(archive)
		return err
	}

	d.logger.Info("database backup complete", slog.String("filename", archive))
	return nil
}

// zipSnapshot deflates src into a new archive at dest holding a single entry.
func zipSnapshot(src, dest, entry string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header: %w", err)
	}
	header.Name = entry
	header.Method = zip.Deflate

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// PurgeBackups removes backups older than retentionDays. Other files in the
// backup directory are left alone.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	dir := d.BackupDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	purged := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := backupName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || m == nil {
			continue
		}
		stamp, err := time.Parse(backupStampLayout, m[1])
		if err != nil || !stamp.Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old backup %s: %w", path, err)
		}
		purged++
	}

	d.logger.Info("backup purge complete", slog.String("dir", dir), slog.Int("purged", purged))
	return nil
}
