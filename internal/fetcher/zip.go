package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive to the destination
// directory. Returns the list of extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}

	return extracted, nil
}

// ExtractZIPSingle extracts the single file from a ZIP that contains
// exactly one file. The census CSV downloads come packaged this way.
func ExtractZIPSingle(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}

	if len(files) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 file, got %d", len(files))
	}

	return extractZIPEntry(files[0], destDir)
}

// ExtractShapefile extracts a shapefile set (.shp plus its .dbf, .shx
// and .prj sidecars) from a ZIP archive and returns the path of the
// extracted .shp file. Errors if the archive holds no .shp or more
// than one.
func ExtractShapefile(zipPath, destDir string) (string, error) {
	paths, err := ExtractZIP(zipPath, destDir)
	if err != nil {
		return "", err
	}

	var shpPath string
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".shp") {
			if shpPath != "" {
				return "", eris.Errorf("zip: multiple shapefiles in %s", zipPath)
			}
			shpPath = p
		}
	}
	if shpPath == "" {
		return "", eris.Errorf("zip: no shapefile in %s", zipPath)
	}

	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	if _, err := os.Stat(base + ".dbf"); err != nil {
		return "", eris.Errorf("zip: shapefile %s has no .dbf sidecar", shpPath)
	}

	return shpPath, nil
}

// extractZIPEntry extracts a single zip.File to the destination
// directory. Returns the extracted file path, or empty string for
// directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}
