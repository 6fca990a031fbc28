// Package updater keeps the installed binary current against the
// project's GitHub releases. CheckVersion is a silent best-effort probe
// meant for a background goroutine during serve; SelfUpdate downloads
// the release archive for this OS/arch and swaps the executable in
// place via rename, so a failed download never leaves a half-written
// binary behind. The server must be restarted to pick up the new
// version.
package updater

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const githubRepo = "emberhq/ember"

// Overridable in tests.
var (
	releaseEndpoint = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	httpClient      = &http.Client{Timeout: 10 * time.Second}
)

// release mirrors the fields of the GitHub latest-release payload that
// the updater reads.
type release struct {
	TagName string         `json:"tag_name"`
	PageURL string         `json:"html_url"`
	Assets  []releaseAsset `json:"assets"`
}

type releaseAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// UpdateResult reports the outcome of a version check.
type UpdateResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// CheckVersion compares the running version against the latest GitHub
// release. It never fails: on any network or decoding problem it
// reports no update, so callers can run it fire-and-forget.
func CheckVersion(currentVersion string) *UpdateResult {
	result := &UpdateResult{CurrentVersion: strings.TrimPrefix(currentVersion, "v")}

	rel, err := fetchLatest(currentVersion)
	if err != nil {
		return result
	}

	result.LatestVersion = strings.TrimPrefix(rel.TagName, "v")
	result.ReleaseURL = rel.PageURL
	result.UpdateAvailable = newerThan(result.CurrentVersion, result.LatestVersion)
	return result
}

// SelfUpdate downloads the release archive for this OS/arch and
// replaces the running executable.
func SelfUpdate(currentVersion string) error {
	rel, err := fetchLatest(currentVersion)
	if err != nil {
		return err
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	if !newerThan(strings.TrimPrefix(currentVersion, "v"), latest) {
		return fmt.Errorf("already at latest version (%s)", currentVersion)
	}

	assetName := assetFor(latest)
	var downloadURL string
	for _, a := range rel.Assets {
		if a.Name == assetName {
			downloadURL = a.DownloadURL
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("release %s has no asset %s", rel.TagName, assetName)
	}

	resp, err := httpClient.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("downloading release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %d", resp.StatusCode)
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading release archive: %w", err)
	}

	binary, err := extractBinary(archive, assetName)
	if err != nil {
		return fmt.Errorf("extracting binary: %w", err)
	}

	return replaceExecutable(binary)
}

// fetchLatest retrieves the latest release metadata from the GitHub
// API (unauthenticated; public repo).
func fetchLatest(currentVersion string) (*release, error) {
	req, err := http.NewRequest(http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "ember/"+currentVersion)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("parsing release info: %w", err)
	}
	return &rel, nil
}

// replaceExecutable writes data next to the current binary and renames
// it into place. On Windows the running binary cannot be overwritten,
// so the old one is moved aside first.
func replaceExecutable(data []byte) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding current executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	staged := execPath + ".new"
	if err := os.WriteFile(staged, data, 0o755); err != nil {
		return fmt.Errorf("writing new binary: %w", err)
	}

	if runtime.GOOS == "windows" {
		backup := execPath + ".old"
		_ = os.Remove(backup)
		if err := os.Rename(execPath, backup); err != nil {
			_ = os.Remove(staged)
			return fmt.Errorf("backing up current binary: %w", err)
		}
	}

	if err := os.Rename(staged, execPath); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("replacing binary: %w", err)
	}
	return nil
}

// extractBinary pulls the ember binary out of a release archive,
// dispatching on the asset extension.
func extractBinary(archive []byte, assetName string) ([]byte, error) {
	if strings.HasSuffix(assetName, ".zip") {
		return extractZip(archive)
	}
	return extractTarGz(archive)
}

func extractTarGz(archive []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}
		if isBinaryName(filepath.Base(header.Name)) {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("reading binary from tar: %w", err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("ember binary not found in archive")
}

func extractZip(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	for _, f := range zr.File {
		if !isBinaryName(filepath.Base(f.Name)) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening zip entry: %w", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading binary from zip: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("ember binary not found in archive")
}

func isBinaryName(name string) bool {
	return name == "ember" || name == "ember.exe"
}

// assetFor returns the goreleaser archive name for this OS and arch.
func assetFor(version string) string {
	ext := "tar.gz"
	if runtime.GOOS == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf("ember_%s_%s_%s.%s", version, runtime.GOOS, runtime.GOARCH, ext)
}

// newerThan reports whether latest is a strictly higher semver than
// current. A "dev" build never updates.
func newerThan(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}
	c := strings.Split(current, ".")
	l := strings.Split(latest, ".")
	for i := 0; i < 3; i++ {
		cv, lv := versionPart(c, i), versionPart(l, i)
		if lv != cv {
			return lv > cv
		}
	}
	return false
}

// versionPart returns the numeric prefix of the i-th dotted part: 0
// when the part is missing or non-numeric, 3 for "3rc1".
func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n := 0
	for _, ch := range parts[i] {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
