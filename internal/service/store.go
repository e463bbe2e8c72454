package service

import (
	"context"

	"github.com/cvkit/cvault/internal/model"
)

// VersionStore is the persistence contract for version records. It carries
// no business rules: numbering, lineage and authorization live in the
// service layer. Implemented by repo (Postgres) and memstore.
type VersionStore interface {
	// Append stores a new version. Returns ErrConflict when a version with
	// the same (document, number) already exists, ErrInvalid when a branch
	// head with the same name does.
	Append(ctx context.Context, version *model.Version) error
	// LatestMainline returns the highest-numbered non-branch version, or
	// ErrNotFound when the document has no mainline versions yet.
	LatestMainline(ctx context.Context, docID string) (*model.Version, error)
	// LatestNumber returns the highest version number assigned to the
	// document, branch heads included, or 0 when none exist. New versions
	// are numbered past it so a branch head at the top of the sequence
	// never collides with the next mainline write.
	LatestNumber(ctx context.Context, docID string) (int, error)
	// Get returns the version with the given number (mainline or branch
	// head), or ErrNotFound.
	Get(ctx context.Context, docID string, versionNumber int) (*model.Version, error)
	// List returns mainline versions ordered by number descending, plus the
	// total mainline count.
	List(ctx context.Context, docID string, limit, offset uint) ([]model.VersionSummary, int, error)
	// ListBranches returns branch heads ordered by creation time descending.
	ListBranches(ctx context.Context, docID string) ([]model.Version, error)
	// AggregateSize sums stored snapshot sizes across all of a user's
	// documents.
	AggregateSize(ctx context.Context, userID string) (int, int64, error)
}

// DocumentStore is the live-state collaborator. Load does not filter by
// owner; ownership checks are the service's job.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	Load(ctx context.Context, docID string) (*model.Document, error)
	// OverwriteState replaces the document's content fields and mtime.
	OverwriteState(ctx context.Context, doc *model.Document) error
}
