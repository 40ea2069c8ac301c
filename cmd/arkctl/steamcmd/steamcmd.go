// Package steamcmd implements the SteamCMD Driver (C4): it locates or
// installs the SteamCMD binary and drives it to install/update the ASA
// dedicated server app. See spec §4.4.
package steamcmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/mholt/archives"
	"go.uber.org/zap"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
)

// appID is the ASA dedicated server's Steam app id.
const appID = "2430930"

// steamCmdZipURL is the Steam CDN location for the SteamCMD installer, per
// §4.4.
const steamCmdZipURL = "https://steamcdn-a.akamaihd.net/client/installer/steamcmd.zip"

// executableName is the platform-appropriate SteamCMD binary name, mirroring
// the runtime.GOOS switch the process supervisor also uses.
func executableName() string {
	if runtime.GOOS == "windows" {
		return "steamcmd.exe"
	}
	return "steamcmd.sh"
}

// ProgressFunc receives 0..100 progress updates parsed from SteamCMD's
// stdout while an app_update runs.
type ProgressFunc func(percent int, line string)

// Driver locates, installs, and drives SteamCMD.
type Driver struct {
	logger    *zap.Logger
	searchDir string // baseDir/steamcmd, per the layout manager
}

// New creates a Driver rooted at steamCmdDir (layout.Manager.SteamCmdDir()).
func New(logger *zap.Logger, steamCmdDir string) *Driver {
	return &Driver{logger: logger, searchDir: steamCmdDir}
}

// EnsureInstalled locates an existing SteamCMD binary in the configured
// search directory, or downloads and extracts the installer and runs it once
// to self-update. Returns the absolute path to the executable. foreground
// only controls stdio routing during the self-update run, not correctness.
func (d *Driver) EnsureInstalled(ctx context.Context, foreground bool) (string, error) {
	path := filepath.Join(d.searchDir, executableName())
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(d.searchDir, 0o755); err != nil {
		return "", arkerrors.Wrap(arkerrors.IOFailed, err, "create steamcmd directory")
	}

	zipPath := filepath.Join(d.searchDir, "steamcmd.zip")
	if err := downloadFile(ctx, steamCmdZipURL, zipPath); err != nil {
		return "", arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "download steamcmd installer")
	}
	defer os.Remove(zipPath)

	if err := extractZip(ctx, zipPath, d.searchDir); err != nil {
		return "", arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "extract steamcmd installer")
	}

	if _, err := os.Stat(path); err != nil {
		return "", arkerrors.New(arkerrors.SteamCmdFailed, "steamcmd binary not found at %q after extraction", path)
	}

	if err := d.runSelfUpdate(ctx, path, foreground); err != nil {
		return "", err
	}
	return path, nil
}

func (d *Driver) runSelfUpdate(ctx context.Context, path string, foreground bool) error {
	cmd := exec.CommandContext(ctx, path, "+quit")
	if foreground {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		return arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "steamcmd self-update")
	}
	return nil
}

// progressRE matches SteamCMD's app_update progress lines, e.g.:
// "Update state (0x61) downloading, progress: 42.17 (123456 / 789012)"
var progressRE = regexp.MustCompile(`Update state \(0x[0-9a-fA-F]+\) \w+, progress: ([0-9]+(?:\.[0-9]+)?)`)

// InstallOrUpdateAsa spawns SteamCMD against targetDir to install or update
// the ASA dedicated server app, streaming progress to onProgress. Callers
// (the Job Engine, via the Update Lock) are responsible for serializing this
// call against every other install/update job (§4.4 sequencing
// requirement) — this function does not acquire any lock itself.
func (d *Driver) InstallOrUpdateAsa(ctx context.Context, steamCmdPath, targetDir string, foreground bool, onProgress ProgressFunc) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create install target directory %q", targetDir)
	}

	args := []string{
		"+force_install_dir", targetDir,
		"+login", "anonymous",
		"+app_update", appID, "validate",
		"+quit",
	}
	cmd := exec.CommandContext(ctx, steamCmdPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return arkerrors.Wrap(arkerrors.ProcessFailed, err, "open steamcmd stdout pipe")
	}
	cmd.Stderr = cmd.Stdout
	if foreground {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "spawn steamcmd")
	}

	lastLines := newRingBuffer(20)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		lastLines.add(line)
		if foreground {
			fmt.Fprintln(os.Stdout, line)
		}
		if pct, ok := parseProgress(line); ok && onProgress != nil {
			onProgress(pct, line)
		}
	}

	err = cmd.Wait()
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return arkerrors.New(
			arkerrors.SteamCmdFailed,
			"app_update exited %d: %s",
			exitCode,
			strings.Join(lastLines.lines(), " | "),
		)
	}
	return nil
}

func parseProgress(line string) (int, bool) {
	m := progressRE.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d downloading %s", resp.StatusCode, url)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

// extractZip extracts the SteamCMD installer zip into destDir using
// mholt/archives, which identifies the Zip format from the file's magic
// bytes rather than its extension.
func extractZip(ctx context.Context, zipPath, destDir string) error {
	f, err := os.Open(zipPath)
	if err != nil {
		return err
	}
	defer f.Close()

	format := archives.Zip{}
	return format.Extract(ctx, f, func(ctx context.Context, file archives.FileInfo) error {
		target := filepath.Join(destDir, filepath.FromSlash(file.NameInArchive))
		if file.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		r, err := file.Open()
		if err != nil {
			return err
		}
		defer r.Close()

		w, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, file.Mode())
		if err != nil {
			return err
		}
		defer w.Close()

		_, err = io.Copy(w, r)
		return err
	})
}

type ringBuffer struct {
	cap int
	buf []string
}

func newRingBuffer(cap int) *ringBuffer {
	return &ringBuffer{cap: cap}
}

func (r *ringBuffer) add(line string) {
	r.buf = append(r.buf, line)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

func (r *ringBuffer) lines() []string {
	return r.buf
}
