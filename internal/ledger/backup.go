package ledger

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/arcanaland/arenaswap/internal/apperr"
	"github.com/arcanaland/arenaswap/internal/install"
)

// BackupPrefix is prepended to a bundle filename to name its backup.
const BackupPrefix = "MOD_"

// Backup is one file in the backup directory.
type Backup struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	Digest  string
}

// Original is the bundle filename the backup was taken from.
func (b Backup) Original() string { return strings.TrimPrefix(b.Name, BackupPrefix) }

// ArtPrefix is the zero padded art id the backup belongs to, or "" if the
// name is too short to hold one.
func (b Backup) ArtPrefix() string {
	orig := b.Original()
	if len(orig) < 6 {
		return ""
	}
	return orig[:6]
}

// BackupArt backs up the bundle of artID. Art ids without a bundle are
// skipped and return "".
func (op *Op) BackupArt(artID int64) (string, error) {
	name, err := op.l.layout.BundleFor(artID)
	if apperr.Is(err, apperr.KindNotFound) {
		op.l.logger.Debug("no bundle to back up", zap.String("art_id", install.ArtPrefix(artID)))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return op.BackupFile(name)
}

// BackupFile copies the live bundle name into the backup directory unless
// this operation already did. It returns the backup path.
func (op *Op) BackupFile(name string) (string, error) {
	dst := filepath.Join(op.l.backupDir, BackupPrefix+name)
	if op.copied[name] {
		return dst, nil
	}
	if err := os.MkdirAll(op.l.backupDir, 0755); err != nil {
		return "", apperr.IO(err, "create backup directory %s", op.l.backupDir)
	}
	if err := copyFile(filepath.Join(op.l.layout.BundleDir, name), dst); err != nil {
		return "", err
	}
	op.copied[name] = true
	op.l.logger.Debug("bundle backed up", zap.String("bundle", name), zap.String("backup", dst))
	return dst, nil
}

// Backups lists the backup directory, oldest first.
func (l *Ledger) Backups() ([]Backup, error) {
	entries, err := os.ReadDir(l.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.IO(err, "read backup directory %s", l.backupDir)
	}
	ext := l.layout.BundleExtension()
	var out []Backup
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, BackupPrefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, apperr.IO(err, "stat backup %s", name)
		}
		path := filepath.Join(l.backupDir, name)
		digest, err := fileDigest(path)
		if err != nil {
			return nil, err
		}
		out = append(out, Backup{
			Name:    name,
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Digest:  digest,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name < out[j].Name
		}
		return out[i].ModTime.Before(out[j].ModTime)
	})
	return out, nil
}

// RestoreBackups copies every backup over the live bundle with the same art
// id prefix, oldest backup first, so the newest backup of a bundle is the
// one left in place. It returns how many files were restored.
func (l *Ledger) RestoreBackups() (int, error) {
	backups, err := l.Backups()
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, b := range backups {
		ok, err := l.restore(b)
		if err != nil {
			return restored, err
		}
		if ok {
			restored++
		}
	}
	if restored > 0 {
		l.logger.Info("backups restored", zap.Int("count", restored))
	}
	return restored, nil
}

// Restore copies the named backup over its live bundle.
func (l *Ledger) Restore(name string) error {
	backups, err := l.Backups()
	if err != nil {
		return err
	}
	for _, b := range backups {
		if b.Name == name || b.Original() == name {
			ok, err := l.restore(b)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("no live bundle for backup %s", b.Name)
			}
			return nil
		}
	}
	return apperr.NotFound("no backup named %s", name)
}

func (l *Ledger) restore(b Backup) (bool, error) {
	prefix := b.ArtPrefix()
	if prefix == "" {
		return false, nil
	}
	names, err := l.layout.FindBundles(prefix)
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		l.logger.Debug("backup has no live bundle", zap.String("backup", b.Name))
		return false, nil
	}
	if err := copyFile(b.Path, filepath.Join(l.layout.BundleDir, names[0])); err != nil {
		return false, err
	}
	l.logger.Debug("backup restored", zap.String("backup", b.Name), zap.String("bundle", names[0]))
	return true, nil
}

// copyFile replaces dst with the contents of src through a temp file in
// dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFound("%s does not exist", src)
		}
		return apperr.IO(err, "open %s", src)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".arenaswap-*")
	if err != nil {
		return apperr.IO(err, "copy to %s", dst)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return apperr.IO(err, "copy to %s", dst)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return apperr.IO(err, "copy %s to %s", src, dst)
	}
	if err := tmp.Close(); err != nil {
		return apperr.IO(err, "copy %s to %s", src, dst)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return apperr.IO(err, "replace %s", dst)
	}
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperr.IO(err, "open %s", path)
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", apperr.IO(err, "hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
