package processor

import (
	"fmt"
	"path/filepath"

	"github.com/idelchi/foldercrypt/internal/errs"
	"github.com/idelchi/foldercrypt/internal/fileutil"
	"github.com/idelchi/foldercrypt/internal/manifest"
)

// EncryptedPath returns where the encrypted form of a file entry lives below dst.
func (p *Processor) EncryptedPath(dst, rel string) string {
	return join(dst, rel) + p.suffix
}

// EncryptDirectory creates the mirror of a directory entry below dst.
func (p *Processor) EncryptDirectory(dst string, entry manifest.Entry) error {
	if err := p.fs.MkdirAll(join(dst, entry.RelativePath), privateDir); err != nil {
		return errs.Wrap(errs.ErrFileProcessing, entry.RelativePath, fmt.Errorf("creating directory: %w", err))
	}

	return nil
}

// EncryptFile streams the file entry below root into its encrypted path below dst.
// The output appears only once fully written. The returned entry carries the
// size actually encrypted and the size of the output.
func (p *Processor) EncryptFile(root, dst string, entry manifest.Entry) (manifest.Entry, error) {
	rel := entry.RelativePath

	entry, err := p.encryptFile(join(root, rel), p.EncryptedPath(dst, rel), entry)
	if err != nil {
		return manifest.Entry{}, errs.Wrap(errs.ErrFileProcessing, rel, err)
	}

	return entry, nil
}

func (p *Processor) encryptFile(inPath, outPath string, entry manifest.Entry) (_ manifest.Entry, err error) {
	in, err := p.fs.Open(inPath)
	if err != nil {
		return entry, fmt.Errorf("opening input: %w", err)
	}

	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return entry, fmt.Errorf("stat input: %w", err)
	}

	if err := p.fs.MkdirAll(filepath.Dir(outPath), privateDir); err != nil {
		return entry, fmt.Errorf("creating output directory: %w", err)
	}

	tc, err := fileutil.NewTempContext(p.fs, outPath)
	if err != nil {
		return entry, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	size := uint64(info.Size()) //nolint:gosec // sizes are never negative

	if _, err = p.engine.Encrypt(tc.TmpFile, in, size, []byte(entry.RelativePath)); err != nil {
		return entry, err
	}

	written, err := tc.Commit(outPath, privateFile)
	if err != nil {
		return entry, err
	}

	entry.OriginalSize = size
	entry.EncryptedSize = uint64(written) //nolint:gosec // sizes are never negative

	return entry, nil
}

// WriteArtifacts stores the salt and sealed manifest at the root of dst.
func (p *Processor) WriteArtifacts(dst string, salt, sealed []byte) error {
	if err := fileutil.WriteFileAtomic(p.fs, filepath.Join(dst, SaltFile), salt, privateFile); err != nil {
		return errs.Wrap(errs.ErrFileProcessing, SaltFile, err)
	}

	if err := fileutil.WriteFileAtomic(p.fs, filepath.Join(dst, ManifestFile), sealed, privateFile); err != nil {
		return errs.Wrap(errs.ErrFileProcessing, ManifestFile, err)
	}

	return nil
}
