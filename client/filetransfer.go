package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// defaultMaxFileSize caps transfers unless overridden.
const defaultMaxFileSize = 1024 * 1024 * 1024 // 1GB

// ErrChecksumMismatch is returned when a transferred file does not match
// the expected SHA-256 digest.
var ErrChecksumMismatch = errors.New("client: checksum mismatch")

// FileTransferOptions configures CopyFile and FetchFile.
type FileTransferOptions struct {
	// ProgressCallback receives (bytesTransferred, totalBytes). totalBytes
	// is -1 when the size is not known in advance.
	ProgressCallback func(bytesTransferred, totalBytes int64)

	// MaxFileSize limits the file size in bytes. Zero means 1GB, a negative
	// value disables the limit.
	MaxFileSize int64

	// ExpectedSHA256 is a hex digest the transferred content must match.
	ExpectedSHA256 string

	// NoOverwrite makes FetchFile fail when the local file exists.
	NoOverwrite bool
}

// FileTransferOption is a functional option for file transfers.
type FileTransferOption func(*FileTransferOptions)

// WithProgressCallback sets a progress callback.
func WithProgressCallback(cb func(int64, int64)) FileTransferOption {
	return func(o *FileTransferOptions) { o.ProgressCallback = cb }
}

// WithMaxFileSize sets the maximum file size.
func WithMaxFileSize(bytes int64) FileTransferOption {
	return func(o *FileTransferOptions) { o.MaxFileSize = bytes }
}

// WithExpectedSHA256 verifies the transferred content against digest.
func WithExpectedSHA256(digest string) FileTransferOption {
	return func(o *FileTransferOptions) { o.ExpectedSHA256 = strings.ToLower(digest) }
}

// WithNoOverwrite refuses to replace an existing local file.
func WithNoOverwrite(noOverwrite bool) FileTransferOption {
	return func(o *FileTransferOptions) { o.NoOverwrite = noOverwrite }
}

func (o FileTransferOptions) maxSize() int64 {
	switch {
	case o.MaxFileSize == 0:
		return defaultMaxFileSize
	case o.MaxFileSize < 0:
		return 0
	default:
		return o.MaxFileSize
	}
}

// TransferResult describes a completed transfer.
type TransferResult struct {
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// progressReader hashes and counts everything read through it. Reads may
// happen on the HTTP transport's goroutine.
type progressReader struct {
	r        io.Reader
	total    int64
	callback func(int64, int64)

	mu   sync.Mutex
	hash hash.Hash
	n    int64
}

func newProgressReader(r io.Reader, total int64, cb func(int64, int64)) *progressReader {
	return &progressReader{r: r, hash: sha256.New(), total: total, callback: cb}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.hash.Write(b[:n])
		p.n += int64(n)
		done := p.n
		p.mu.Unlock()

		if p.callback != nil {
			p.callback(done, p.total)
		}
	}
	return n, err
}

func (p *progressReader) count() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func (p *progressReader) result() *TransferResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &TransferResult{Bytes: p.n, SHA256: hex.EncodeToString(p.hash.Sum(nil))}
}

// validatePaths performs basic validation on transfer paths.
func validatePaths(localPath, remotePath string) error {
	if localPath == "" {
		return errors.New("local path cannot be empty")
	}
	cleanLocal := filepath.Clean(localPath)
	if strings.Contains(localPath, "..") && cleanLocal != localPath {
		return fmt.Errorf("local path contains invalid traversal: %s", localPath)
	}
	if remotePath == "" {
		return errors.New("remote path cannot be empty")
	}
	if strings.ContainsRune(remotePath, 0) {
		return errors.New("remote path contains NUL byte")
	}
	return nil
}

func applyTransferOptions(opts []FileTransferOption) FileTransferOptions {
	var o FileTransferOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// CopyFile uploads a local file and writes it to remotePath on conn.
func (c *Client) CopyFile(ctx context.Context, localPath string, conn uuid.UUID, remotePath string, opts ...FileTransferOption) (*TransferResult, error) {
	opt := applyTransferOptions(opts)

	if err := validatePaths(localPath, remotePath); err != nil {
		return nil, fmt.Errorf("path validation failed: %w", err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("source is not a regular file (mode: %s)", stat.Mode())
	}
	totalSize := stat.Size()
	if maxBytes := opt.maxSize(); maxBytes > 0 && totalSize > maxBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max allowed: %d)", totalSize, maxBytes)
	}

	details := map[string]any{
		"source":      localPath,
		"connection":  conn.String(),
		"destination": remotePath,
		"size_bytes":  totalSize,
	}
	c.security.LogFileTransfer("CopyFile", SubtypeTransferStart, OutcomeAttempt, SeverityInfo, details)

	fail := func(phase string, err error) (*TransferResult, error) {
		c.security.LogFileTransfer("CopyFile", SubtypeTransferFailed, OutcomeFailure, SeverityWarning,
			map[string]any{"phase": phase, "connection": conn.String(), "destination": remotePath, "error": err.Error()})
		return nil, err
	}

	pr := newProgressReader(file, totalSize, opt.ProgressCallback)
	blob, err := c.FsBlob(ctx, pr)
	if err != nil {
		return fail("upload", fmt.Errorf("upload blob: %w", err))
	}

	res := pr.result()
	if opt.ExpectedSHA256 != "" && res.SHA256 != opt.ExpectedSHA256 {
		return fail("verify", fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, res.SHA256, opt.ExpectedSHA256))
	}

	if err := c.FsWrite(ctx, conn, blob, remotePath); err != nil {
		return fail("write", fmt.Errorf("write remote file: %w", err))
	}

	c.security.LogFileTransfer("CopyFile", SubtypeTransferComplete, OutcomeSuccess, SeverityInfo, map[string]any{
		"connection":  conn.String(),
		"destination": remotePath,
		"size_bytes":  res.Bytes,
		"sha256":      res.SHA256,
	})
	return res, nil
}

// FetchFile downloads remotePath from conn to localPath. The content is
// streamed into a temporary file in the destination directory which is
// renamed into place once complete.
func (c *Client) FetchFile(ctx context.Context, conn uuid.UUID, remotePath, localPath string, opts ...FileTransferOption) (*TransferResult, error) {
	opt := applyTransferOptions(opts)

	if err := validatePaths(localPath, remotePath); err != nil {
		return nil, fmt.Errorf("path validation failed: %w", err)
	}
	if opt.NoOverwrite {
		if _, err := os.Lstat(localPath); err == nil {
			return nil, fmt.Errorf("local file already exists: %s", localPath)
		}
	}

	c.security.LogFileTransfer("FetchFile", SubtypeTransferStart, OutcomeAttempt, SeverityInfo, map[string]any{
		"connection":  conn.String(),
		"source":      remotePath,
		"destination": localPath,
	})

	res, err := c.fetchToFile(ctx, conn, remotePath, localPath, opt)
	if err != nil {
		c.security.LogFileTransfer("FetchFile", SubtypeTransferFailed, OutcomeFailure, SeverityWarning, map[string]any{
			"connection": conn.String(),
			"source":     remotePath,
			"error":      err.Error(),
		})
		return nil, err
	}

	c.security.LogFileTransfer("FetchFile", SubtypeTransferComplete, OutcomeSuccess, SeverityInfo, map[string]any{
		"connection":  conn.String(),
		"source":      remotePath,
		"destination": localPath,
		"size_bytes":  res.Bytes,
		"sha256":      res.SHA256,
	})
	return res, nil
}

func (c *Client) fetchToFile(ctx context.Context, conn uuid.UUID, remotePath, localPath string, opt FileTransferOptions) (*TransferResult, error) {
	rc, err := c.FsReadStream(ctx, conn, remotePath)
	if err != nil {
		return nil, fmt.Errorf("read remote file: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	var src io.Reader = rc
	maxBytes := opt.maxSize()
	if maxBytes > 0 {
		src = io.LimitReader(rc, maxBytes+1)
	}
	pr := newProgressReader(src, -1, opt.ProgressCallback)
	if _, err := io.Copy(tmp, pr); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if maxBytes > 0 && pr.count() > maxBytes {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", maxBytes)
	}

	res := pr.result()
	if opt.ExpectedSHA256 != "" && res.SHA256 != opt.ExpectedSHA256 {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, res.SHA256, opt.ExpectedSHA256)
	}

	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true
	return res, nil
}

// RunScript uploads script, turns it into an executable file on conn and
// runs it. The shell of conn must have been started with ShellStart.
func (c *Client) RunScript(ctx context.Context, conn uuid.UUID, script string) (*ExecResult, error) {
	blob, err := c.FsBlob(ctx, strings.NewReader(script))
	if err != nil {
		return nil, fmt.Errorf("upload script: %w", err)
	}
	path, err := c.FsScript(ctx, conn, blob)
	if err != nil {
		return nil, fmt.Errorf("create script: %w", err)
	}
	res, err := c.ShellExec(ctx, conn, path)
	if err != nil {
		return nil, fmt.Errorf("run script: %w", err)
	}
	return res, nil
}

// ExecAll runs command on every connection with at most limit executions
// in flight. Results are returned in the order of conns. The first failure
// cancels the remaining executions and is returned.
func (c *Client) ExecAll(ctx context.Context, conns []uuid.UUID, command string, limit int) ([]*ExecResult, error) {
	if limit < 1 {
		limit = c.config.MaxConcurrent
	}
	if limit < 1 {
		limit = 1
	}

	// Each goroutine writes only its own index.
	results := make([]*ExecResult, len(conns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, conn := range conns {
		g.Go(func() error {
			res, err := c.ShellExec(gctx, conn, command)
			if err != nil {
				return fmt.Errorf("exec on %s: %w", conn, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
