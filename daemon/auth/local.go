package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	authFileName    = "xpipe_auth"
	ptbAuthFileName = "xpipe_ptb_auth"
)

// LocalAuthFilePath returns the location where a locally running daemon
// writes its auth file. The directory comes from TEMP (Windows), then TMPDIR
// (macOS), falling back to /tmp.
func LocalAuthFilePath(ptb bool) string {
	dir := os.Getenv("TEMP")
	if dir == "" {
		dir = os.Getenv("TMPDIR")
	}
	if dir == "" {
		dir = "/tmp"
	}
	name := authFileName
	if ptb {
		name = ptbAuthFileName
	}
	return filepath.Join(dir, name)
}

// LoadLocal reads local credentials from the auth file at path.
// All failures wrap ErrNoToken.
func LoadLocal(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return Credentials{}, fmt.Errorf("%w: bad permissions on %s: is the daemon running as another user?", ErrNoToken, filepath.Base(path))
		}
		return Credentials{}, fmt.Errorf("%w: no auth provided and couldn't load %s: %v", ErrNoToken, filepath.Base(path), err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return Credentials{}, fmt.Errorf("%w: auth file %s is empty", ErrNoToken, path)
	}
	return Local(content), nil
}
