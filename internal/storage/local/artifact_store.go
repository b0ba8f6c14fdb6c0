package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
)

var safeSegment = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ArtifactStore keeps artifacts on local disk under <root>/<job_id>/<name>
// and refers to them with file:// URLs.
type ArtifactStore struct {
	root   string
	logger arbor.ILogger
}

var _ interfaces.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore creates the root directory if needed
func NewArtifactStore(root string, logger arbor.ILogger) (*ArtifactStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifacts dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts dir: %w", err)
	}
	return &ArtifactStore{root: abs, logger: logger}, nil
}

// Root returns the absolute artifacts directory
func (s *ArtifactStore) Root() string {
	return s.root
}

func (s *ArtifactStore) Store(ctx context.Context, src, jobID, name string) (string, error) {
	if !safeSegment.MatchString(jobID) || !safeSegment.MatchString(name) || strings.Trim(name, ".") == "" || strings.Trim(jobID, ".") == "" {
		return "", fmt.Errorf("invalid artifact location %q/%q", jobID, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	dst := filepath.Join(dir, name)
	if err := copyFile(src, dst); err != nil {
		return "", err
	}

	ref := (&url.URL{Scheme: "file", Path: filepath.ToSlash(dst)}).String()
	s.logger.Debug().Str("job_id", jobID).Str("ref", ref).Msg("Artifact stored")
	return ref, nil
}

func (s *ArtifactStore) LocalPath(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("%w: unsupported reference %q", interfaces.ErrArtifactNotFound, ref)
	}

	path := filepath.Clean(filepath.FromSlash(u.Path))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside the artifacts dir", interfaces.ErrArtifactNotFound, ref)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", interfaces.ErrArtifactNotFound, path)
	}
	return path, nil
}

// copyFile writes through a temp file in the destination dir and renames it,
// so readers never see a partial artifact.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open artifact source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize artifact: %w", err)
	}
	return nil
}
