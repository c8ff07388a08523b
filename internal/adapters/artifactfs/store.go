// Package artifactfs stores uploaded resumes and results documents on the local filesystem.
package artifactfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/target/jobmatch/internal/core"
)

// ErrOutsideRoot is returned when a path does not resolve inside the store's directories.
var ErrOutsideRoot = errors.New("path is outside the artifact store")

// Options configures a Store.
type Options struct {
	UploadDir  string
	ResultsDir string
	// Now is used for upload name prefixes; defaults to time.Now.
	Now func() time.Time
}

// Store implements core.ArtifactStore.
type Store struct {
	uploadDir  string
	resultsDir string
	now        func() time.Time
}

// New creates the upload and results directories if needed.
func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.UploadDir) == "" || strings.TrimSpace(opts.ResultsDir) == "" {
		return nil, errors.New("upload and results directories are required")
	}
	for _, dir := range []string{opts.UploadDir, opts.ResultsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		uploadDir:  filepath.Clean(opts.UploadDir),
		resultsDir: filepath.Clean(opts.ResultsDir),
		now:        now,
	}, nil
}

// SecureName reduces a client supplied filename to a safe base name: path parts are
// dropped, whitespace becomes '_', and anything but letters, digits, '.', '-' and '_' is removed.
func SecureName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

// SaveUpload writes data as <upload dir>/<unix seconds>_<secure name> and returns the path.
func (s *Store) SaveUpload(_ context.Context, filename string, data []byte) (string, error) {
	safe := SecureName(filename)
	if safe == "" {
		return "", errors.New("filename has no usable characters")
	}
	path := filepath.Join(s.uploadDir, strconv.FormatInt(s.now().Unix(), 10)+"_"+safe)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, fs.ErrExist) {
		// Same second, same name: fall back to a nanosecond prefix.
		path = filepath.Join(s.uploadDir, strconv.FormatInt(s.now().UnixNano(), 10)+"_"+safe)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	}
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path, nil
}

// Read returns the bytes of an uploaded artifact.
func (s *Store) Read(_ context.Context, path string) ([]byte, error) {
	p, err := s.within(s.uploadDir, path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Delete removes an uploaded artifact. Deleting a missing file succeeds.
func (s *Store) Delete(_ context.Context, path string) error {
	p, err := s.within(s.uploadDir, path)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// WriteResults atomically replaces <results dir>/result_<jobID>.json and returns its path.
func (s *Store) WriteResults(_ context.Context, jobID string, doc []byte) (string, error) {
	name := SecureName(jobID)
	if name == "" {
		return "", errors.New("job id is required")
	}
	final := filepath.Join(s.resultsDir, "result_"+name+".json")

	tmp, err := os.CreateTemp(s.resultsDir, ".result_"+name+"_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp results: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close results: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		cleanup()
		return "", fmt.Errorf("publish results: %w", err)
	}
	return final, nil
}

// ReadResults returns a results document previously returned by WriteResults.
func (s *Store) ReadResults(_ context.Context, ref string) ([]byte, error) {
	p, err := s.within(s.resultsDir, ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (s *Store) within(root, path string) (string, error) {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(root, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return clean, nil
}

var _ core.ArtifactStore = (*Store)(nil)
