package csvio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var backupSuffix = regexp.MustCompile(`_backup_\d{8}_\d{6}$`)

// BackupPath returns <dir>/<stem>_backup_YYYYMMDD_HHMMSS<ext>.
func BackupPath(path string, now time.Time) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_backup_%s%s", stem, now.Format("20060102_150405"), ext))
}

// IsBackup reports whether path was produced by Backup.
func IsBackup(path string) bool {
	ext := filepath.Ext(path)
	return backupSuffix.MatchString(strings.TrimSuffix(filepath.Base(path), ext))
}

// Backup copies path next to itself under BackupPath, keeping the original
// permissions and modification time.
func Backup(path string, now time.Time) (string, error) {
	dst := BackupPath(path, now)

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for backup: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("failed to create backup %s: %w", dst, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to copy %s to %s: %w", path, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close backup %s: %w", dst, err)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to keep modification time on %s: %w", dst, err)
	}

	return dst, nil
}

// DerivedPath returns <dir>/<stem><suffix><ext>, e.g. products_fixed.csv.
func DerivedPath(path, suffix string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(filepath.Dir(path), stem+suffix+ext)
}

// ReportPath returns the report location for an output file: <stem>_report.txt.
func ReportPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	stem := strings.TrimSuffix(filepath.Base(outputPath), ext)
	return filepath.Join(filepath.Dir(outputPath), stem+"_report.txt")
}
