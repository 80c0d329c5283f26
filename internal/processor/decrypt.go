package processor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/fileutil"
	"github.com/idelchi/foldercrypt/internal/kdf"
	"github.com/idelchi/foldercrypt/internal/manifest"
)

// ReadSalt loads the salt stored at the root of an encrypted folder.
func ReadSalt(fsys afero.Fs, src string) ([]byte, error) {
	salt, err := readArtifact(fsys, src, SaltFile)
	if err != nil {
		return nil, err
	}

	if len(salt) != kdf.SaltSize {
		return nil, errs.New(errs.ErrMissingArtifacts, SaltFile,
			fmt.Errorf("salt is %d bytes, want %d", len(salt), kdf.SaltSize))
	}

	return salt, nil
}

// ReadManifestBlob loads the sealed manifest stored at the root of an encrypted folder.
func ReadManifestBlob(fsys afero.Fs, src string) ([]byte, error) {
	return readArtifact(fsys, src, ManifestFile)
}

func readArtifact(fsys afero.Fs, src, name string) ([]byte, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(src, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.New(errs.ErrMissingArtifacts, name, err)
	}

	if err != nil {
		return nil, errs.Wrap(errs.ErrFileProcessing, name, err)
	}

	return data, nil
}

// RestoreDirectory creates a directory entry below dst.
// Its recorded mode is applied later by FinalizeDirectories.
func (p *Processor) RestoreDirectory(dst string, entry manifest.Entry) error {
	if err := p.fs.MkdirAll(join(dst, entry.RelativePath), privateDir); err != nil {
		return errs.Wrap(errs.ErrFileProcessing, entry.RelativePath, fmt.Errorf("creating directory: %w", err))
	}

	return nil
}

// RestoreFile decrypts the encrypted form of a file entry from src into dst.
// Plaintext is staged in a temp file which only replaces the target once every
// chunk has verified and the size matches the manifest.
func (p *Processor) RestoreFile(src, dst string, entry manifest.Entry) error {
	rel := entry.RelativePath

	if err := p.restoreFile(p.EncryptedPath(src, rel), join(dst, rel), entry); err != nil {
		return errs.Wrap(errs.ErrFileProcessing, rel, err)
	}

	return nil
}

func (p *Processor) restoreFile(inPath, outPath string, entry manifest.Entry) (err error) {
	in, err := p.fs.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening encrypted file: %w", err)
	}

	defer in.Close()

	if err := p.fs.MkdirAll(filepath.Dir(outPath), privateDir); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tc, err := fileutil.NewTempContext(p.fs, outPath)
	if err != nil {
		return fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	header, err := p.engine.Decrypt(tc.TmpFile, in, []byte(entry.RelativePath))
	if err != nil {
		return err
	}

	if header.OriginalSize != entry.OriginalSize {
		return fmt.Errorf("%w: size mismatch: header %d, manifest %d",
			errs.ErrAuthenticationFailed, header.OriginalSize, entry.OriginalSize)
	}

	staged, err := tc.TmpFile.Stat()
	if err != nil {
		return fmt.Errorf("stat temporary file: %w", err)
	}

	if uint64(staged.Size()) != entry.OriginalSize { //nolint:gosec // sizes are never negative
		return fmt.Errorf("%w: size mismatch: wrote %d, manifest %d",
			errs.ErrAuthenticationFailed, staged.Size(), entry.OriginalSize)
	}

	if _, err = tc.Commit(outPath, os.FileMode(entry.Permissions).Perm()); err != nil {
		return err
	}

	return nil
}

// FinalizeDirectories applies the recorded mode of every directory entry, deepest first,
// so a read-only parent never blocks changes below it.
func (p *Processor) FinalizeDirectories(dst string, entries []manifest.Entry) error {
	var dirs []manifest.Entry

	for _, e := range entries {
		if e.IsDirectory {
			dirs = append(dirs, e)
		}
	}

	sort.SliceStable(dirs, func(i, j int) bool {
		return depth(dirs[i].RelativePath) > depth(dirs[j].RelativePath)
	})

	for _, d := range dirs {
		if err := p.fs.Chmod(join(dst, d.RelativePath), os.FileMode(d.Permissions).Perm()); err != nil {
			return errs.Wrap(errs.ErrFileProcessing, d.RelativePath, fmt.Errorf("setting directory permissions: %w", err))
		}
	}

	return nil
}

func depth(rel string) int {
	return strings.Count(rel, "/")
}

// Unknown lists paths in the encrypted folder src that the manifest does not account for.
// Artifacts at the root are expected and never reported.
func (p *Processor) Unknown(src string, m *manifest.Manifest) ([]string, error) {
	index := m.Index()

	var unknown []string

	err := afero.Walk(p.fs, src, func(walked string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if walked == src {
			return nil
		}

		rel, err := relative(src, walked)
		if err != nil {
			return err
		}

		if rel == SaltFile || rel == ManifestFile {
			return nil
		}

		if p.known(index, rel, info.IsDir()) {
			return nil
		}

		unknown = append(unknown, rel)

		if info.IsDir() {
			return filepath.SkipDir
		}

		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrFileProcessing, "", fmt.Errorf("listing %q: %w", src, err))
	}

	return unknown, nil
}

func (p *Processor) known(index map[string]manifest.Entry, rel string, isDir bool) bool {
	if isDir {
		entry, ok := index[rel]

		return ok && entry.IsDirectory
	}

	name, ok := strings.CutSuffix(rel, p.suffix)
	if !ok {
		return false
	}

	entry, ok := index[name]

	return ok && !entry.IsDirectory
}
