package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxExtractBytes bounds the uncompressed size of an extracted entry.
const MaxExtractBytes = 512 << 20

// ExtractSingleCSV copies the one .csv entry of the archive at zipPath into
// destDir and returns the written path. Other entries, such as a bundled
// readme, are ignored. Zero or several CSV entries are an error.
func ExtractSingleCSV(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var found *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		if !filepath.IsLocal(f.Name) {
			return "", eris.Errorf("zip: entry %q escapes the destination", f.Name)
		}
		if found != nil {
			return "", eris.Errorf("zip: several csv entries (%s, %s)", found.Name, f.Name)
		}
		found = f
	}
	if found == nil {
		return "", eris.Errorf("zip: no csv entry in %s", filepath.Base(zipPath))
	}
	if found.UncompressedSize64 > MaxExtractBytes {
		return "", eris.Errorf("zip: %s is %d bytes uncompressed", found.Name, found.UncompressedSize64)
	}

	return copyEntry(found, filepath.Join(destDir, filepath.Base(found.Name)))
}

func copyEntry(f *zip.File, dest string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "zip: create output")
	}

	// The header size can lie; cap the copy as well.
	n, err := io.Copy(out, io.LimitReader(rc, MaxExtractBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxExtractBytes {
		err = eris.Errorf("zip: %s exceeds %d bytes", f.Name, MaxExtractBytes)
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	return dest, nil
}
