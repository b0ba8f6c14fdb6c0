package interfaces

import (
	"context"
	"errors"
)

// ErrArtifactNotFound is returned when a reference does not resolve to a stored file
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore persists produced files and hands back retrievable references
type ArtifactStore interface {
	// Store copies src into the store under jobID/name and returns its reference.
	// Storing the same jobID/name again overwrites the previous file.
	Store(ctx context.Context, src, jobID, name string) (string, error)

	// LocalPath resolves a reference returned by Store to a readable file path
	LocalPath(ref string) (string, error)
}
