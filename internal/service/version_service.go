package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cvkit/cvault/internal/diff"
	"github.com/cvkit/cvault/internal/model"
	appErr "github.com/cvkit/cvault/internal/pkg/errors"
	"github.com/cvkit/cvault/internal/pkg/keylock"
	"github.com/cvkit/cvault/internal/pkg/timeutil"
)

const (
	// Retries for the read-max-then-append sequence when the store reports
	// a numbering conflict. The per-document lock already serializes
	// writers in-process; the retry covers multi-node deployments where
	// the unique index is the only arbiter.
	maxAppendAttempts = 3

	maxBranchNameLen = 100
	maxLabelLen      = 200

	defaultListLimit = 20
	maxListLimit     = 100
)

type VersionService struct {
	documents DocumentStore
	versions  VersionStore
	locks     *keylock.KeyLock
	// Versions are immutable once stored, so cached reads can never be
	// stale. Expiry just bounds memory on rarely-read documents.
	cache *expirable.LRU[string, *model.Version]
}

func NewVersionService(documents DocumentStore, versions VersionStore, cacheSize int, cacheTTL time.Duration) *VersionService {
	var cache *expirable.LRU[string, *model.Version]
	if cacheSize > 0 && cacheTTL > 0 {
		cache = expirable.NewLRU[string, *model.Version](cacheSize, nil, cacheTTL)
	}
	return &VersionService{
		documents: documents,
		versions:  versions,
		locks:     keylock.New(),
		cache:     cache,
	}
}

type CreateVersionInput struct {
	ChangeType        string
	ChangeDescription string
	Label             string
}

type CreateBranchInput struct {
	BranchName        string
	FromVersionNumber int
	ChangeDescription string
}

type VersionPage struct {
	Versions []model.VersionSummary `json:"versions"`
	Total    int                    `json:"total"`
}

type VersionComparison struct {
	VersionA *model.Version `json:"version_a"`
	VersionB *model.Version `json:"version_b"`
	Diff     model.Diff     `json:"diff"`
}

type StorageUsage struct {
	TotalVersions  int   `json:"total_versions"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// CreateVersion snapshots the document's current live state as the next
// mainline version.
func (s *VersionService) CreateVersion(ctx context.Context, userID, docID string, input CreateVersionInput) (*model.Version, error) {
	if !model.IsValidChangeType(input.ChangeType) || input.ChangeType == model.ChangeTypeBranch {
		return nil, appErr.ErrInvalid
	}
	if len(input.Label) > maxLabelLen {
		return nil, appErr.ErrInvalid
	}
	doc, err := s.authorize(ctx, userID, docID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(docID)
	defer unlock()
	return s.appendFromLiveState(ctx, doc, input)
}

// CreateBranch records a named branch head. The head's number is drawn from
// the mainline sequence, so later mainline versions keep counting past it.
func (s *VersionService) CreateBranch(ctx context.Context, userID, docID string, input CreateBranchInput) (*model.Version, error) {
	branchName := strings.TrimSpace(input.BranchName)
	if branchName == "" || len(branchName) > maxBranchNameLen {
		return nil, appErr.ErrInvalid
	}
	doc, err := s.authorize(ctx, userID, docID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(docID)
	defer unlock()

	branches, err := s.versions.ListBranches(ctx, docID)
	if err != nil {
		return nil, err
	}
	for _, branch := range branches {
		if branch.BranchName == branchName {
			return nil, appErr.ErrInvalid
		}
	}

	// The branch content is either the live state or an explicit historical
	// version; the stored diff compares against the fork point.
	var snapshot model.Snapshot
	var forkSnapshot *model.Snapshot
	fromLive := input.FromVersionNumber == 0
	if fromLive {
		snapshot = model.SnapshotOf(doc)
	} else {
		from, err := s.getCached(ctx, docID, input.FromVersionNumber)
		if err != nil {
			if appErr.IsNotFound(err) {
				return nil, appErr.ErrInvalid
			}
			return nil, err
		}
		snapshot = from.Snapshot
		forkSnapshot = &from.Snapshot
	}

	description := input.ChangeDescription
	if description == "" {
		description = fmt.Sprintf("Created branch '%s'", branchName)
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		latest, err := s.latestMainline(ctx, docID)
		if err != nil {
			return nil, err
		}
		latestNumber, err := s.versions.LatestNumber(ctx, docID)
		if err != nil {
			return nil, err
		}
		prev := forkSnapshot
		if fromLive && latest != nil {
			prev = &latest.Snapshot
		}
		version := s.buildVersion(doc, latest, latestNumber, snapshot, model.ChangeTypeBranch, description, "")
		version.Diff = diff.Compute(prev, snapshot)
		version.IsBranch = true
		version.BranchName = branchName
		if err := s.append(ctx, version); err != nil {
			if appErr.IsConflict(err) {
				s.logConflict(ctx, docID, version.VersionNumber, attempt)
				continue
			}
			return nil, err
		}
		return version, nil
	}
	return nil, appErr.ErrConflict
}

// Restore rolls the document's live state back to a historical version. The
// current live state is committed as a new version first, so restore never
// destroys information: a crash after that commit leaves an extra snapshot
// and an untouched live document.
func (s *VersionService) Restore(ctx context.Context, userID, docID string, versionNumber int) (*model.Document, error) {
	doc, err := s.authorize(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	target, err := s.getCached(ctx, docID, versionNumber)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(docID)
	defer unlock()

	preRestore, err := s.appendFromLiveState(ctx, doc, CreateVersionInput{
		ChangeType:        model.ChangeTypeRestore,
		ChangeDescription: fmt.Sprintf("Restored from v%d", versionNumber),
	})
	if err != nil {
		return nil, err
	}

	doc.ApplySnapshot(target.Snapshot)
	doc.Mtime = timeutil.NowUnix()
	if err := s.documents.OverwriteState(ctx, doc); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("document restored",
		zap.String("document_id", docID),
		zap.Int("restored_from", versionNumber),
		zap.Int("pre_restore_version", preRestore.VersionNumber),
	)
	return doc, nil
}

func (s *VersionService) ListVersions(ctx context.Context, userID, docID string, page, limit int) (*VersionPage, error) {
	if _, err := s.authorize(ctx, userID, docID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := uint(page-1) * uint(limit)
	versions, total, err := s.versions.List(ctx, docID, uint(limit), offset)
	if err != nil {
		return nil, err
	}
	return &VersionPage{Versions: versions, Total: total}, nil
}

func (s *VersionService) GetVersion(ctx context.Context, userID, docID string, versionNumber int) (*model.Version, error) {
	if _, err := s.authorize(ctx, userID, docID); err != nil {
		return nil, err
	}
	return s.getCached(ctx, docID, versionNumber)
}

func (s *VersionService) ListBranches(ctx context.Context, userID, docID string) ([]model.Version, error) {
	if _, err := s.authorize(ctx, userID, docID); err != nil {
		return nil, err
	}
	return s.versions.ListBranches(ctx, docID)
}

// CompareVersions is order-sensitive: the diff reads as "what changed going
// from a to b", regardless of which number is larger or whether either side
// is a branch head.
func (s *VersionService) CompareVersions(ctx context.Context, userID, docID string, versionA, versionB int) (*VersionComparison, error) {
	if _, err := s.authorize(ctx, userID, docID); err != nil {
		return nil, err
	}
	a, err := s.getCached(ctx, docID, versionA)
	if err != nil {
		return nil, err
	}
	b, err := s.getCached(ctx, docID, versionB)
	if err != nil {
		return nil, err
	}
	return &VersionComparison{
		VersionA: a,
		VersionB: b,
		Diff:     diff.Compute(&a.Snapshot, b.Snapshot),
	}, nil
}

func (s *VersionService) StorageUsage(ctx context.Context, userID string) (*StorageUsage, error) {
	count, totalBytes, err := s.versions.AggregateSize(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StorageUsage{TotalVersions: count, TotalSizeBytes: totalBytes}, nil
}

// appendFromLiveState runs the read-max/diff/append sequence for the
// document's live state. Caller must hold the document lock.
func (s *VersionService) appendFromLiveState(ctx context.Context, doc *model.Document, input CreateVersionInput) (*model.Version, error) {
	snapshot := model.SnapshotOf(doc)
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		latest, err := s.latestMainline(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		latestNumber, err := s.versions.LatestNumber(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		version := s.buildVersion(doc, latest, latestNumber, snapshot, input.ChangeType, input.ChangeDescription, input.Label)
		var prev *model.Snapshot
		if latest != nil {
			prev = &latest.Snapshot
		}
		version.Diff = diff.Compute(prev, snapshot)
		if err := s.append(ctx, version); err != nil {
			if appErr.IsConflict(err) {
				s.logConflict(ctx, doc.ID, version.VersionNumber, attempt)
				continue
			}
			return nil, err
		}
		return version, nil
	}
	return nil, appErr.ErrConflict
}

// buildVersion numbers the new version past every assigned number (branch
// heads spend numbers too), while parent and diff base stay on the latest
// mainline version.
func (s *VersionService) buildVersion(doc *model.Document, latest *model.Version, latestNumber int, snapshot model.Snapshot, changeType, description, label string) *model.Version {
	number := latestNumber + 1
	parentID := ""
	if latest != nil {
		parentID = latest.ID
	}
	if label == "" {
		label = "v" + strconv.Itoa(number)
	}
	return &model.Version{
		ID:                newID(),
		UserID:            doc.UserID,
		DocumentID:        doc.ID,
		VersionNumber:     number,
		Label:             label,
		Snapshot:          snapshot,
		ChangeType:        changeType,
		ChangeDescription: description,
		ParentID:          parentID,
		SizeBytes:         snapshotSize(snapshot),
		Ctime:             timeutil.NowUnix(),
	}
}

func (s *VersionService) append(ctx context.Context, version *model.Version) error {
	if err := s.versions.Append(ctx, version); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Add(versionCacheKey(version.DocumentID, version.VersionNumber), version)
	}
	return nil
}

// latestMainline maps "no versions yet" to nil rather than an error; every
// caller treats the empty history as a valid starting point. "Latest" is
// always derived from the store, never from a cached pointer.
func (s *VersionService) latestMainline(ctx context.Context, docID string) (*model.Version, error) {
	latest, err := s.versions.LatestMainline(ctx, docID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return latest, nil
}

func (s *VersionService) getCached(ctx context.Context, docID string, versionNumber int) (*model.Version, error) {
	key := versionCacheKey(docID, versionNumber)
	if s.cache != nil {
		if version, ok := s.cache.Get(key); ok {
			return version, nil
		}
	}
	version, err := s.versions.Get(ctx, docID, versionNumber)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(key, version)
	}
	return version, nil
}

func (s *VersionService) authorize(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := s.documents.Load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, appErr.ErrForbidden
	}
	return doc, nil
}

func (s *VersionService) logConflict(ctx context.Context, docID string, number, attempt int) {
	logutil.GetLogger(ctx).Warn("version number conflict, retrying",
		zap.String("document_id", docID),
		zap.Int("version_number", number),
		zap.Int("attempt", attempt+1),
	)
}

func versionCacheKey(docID string, versionNumber int) string {
	return docID + "/" + strconv.Itoa(versionNumber)
}

func snapshotSize(snapshot model.Snapshot) int64 {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
