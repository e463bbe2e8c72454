package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/cvkit/cvault/internal/model"
	"github.com/cvkit/cvault/internal/pkg/dbutil"
	appErr "github.com/cvkit/cvault/internal/pkg/errors"
)

// VersionRepo is the Postgres version store. The unique index on
// (document_id, version_number) is the arbiter for concurrent numbering:
// the loser of a race gets ErrConflict and the service retries.
type VersionRepo struct {
	db *sql.DB
}

func NewVersionRepo(db *sql.DB) *VersionRepo {
	return &VersionRepo{db: db}
}

var versionColumns = []string{
	"id", "user_id", "document_id", "version_number", "label", "snapshot",
	"change_type", "change_description", "diff", "parent_id", "is_branch",
	"branch_name", "size_bytes", "ctime",
}

var versionSummaryColumns = []string{
	"id", "document_id", "version_number", "label", "change_type",
	"change_description", "diff", "size_bytes", "ctime",
}

func (r *VersionRepo) Append(ctx context.Context, version *model.Version) error {
	snapshot, err := json.Marshal(version.Snapshot)
	if err != nil {
		return err
	}
	diffData, err := json.Marshal(version.Diff)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":                 version.ID,
		"user_id":            version.UserID,
		"document_id":        version.DocumentID,
		"version_number":     version.VersionNumber,
		"label":              version.Label,
		"snapshot":           snapshot,
		"change_type":        version.ChangeType,
		"change_description": version.ChangeDescription,
		"diff":               diffData,
		"parent_id":          version.ParentID,
		"is_branch":          version.IsBranch,
		"branch_name":        version.BranchName,
		"size_bytes":         version.SizeBytes,
		"ctime":              version.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("document_versions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if dbutil.IsConflict(err) {
		// a taken branch name is a validation failure; only number races
		// are worth retrying
		if dbutil.ConflictConstraint(err) == "uq_versions_doc_branch" {
			return appErr.ErrInvalid
		}
		return appErr.ErrConflict
	}
	return err
}

func (r *VersionRepo) LatestMainline(ctx context.Context, docID string) (*model.Version, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"is_branch":   false,
		"_orderby":    "version_number desc",
		"_limit":      []uint{0, 1},
	}
	return r.queryOne(ctx, where)
}

// LatestNumber covers branch heads too: they draw from the same sequence,
// so the next assigned number must clear them as well.
func (r *VersionRepo) LatestNumber(ctx context.Context, docID string) (int, error) {
	where := map[string]interface{}{
		"document_id": docID,
	}
	sqlStr, args, err := builder.BuildSelect("document_versions", where,
		[]string{"coalesce(max(version_number), 0)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var highest int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&highest); err != nil {
		return 0, err
	}
	return highest, nil
}

func (r *VersionRepo) Get(ctx context.Context, docID string, versionNumber int) (*model.Version, error) {
	where := map[string]interface{}{
		"document_id":    docID,
		"version_number": versionNumber,
	}
	return r.queryOne(ctx, where)
}

func (r *VersionRepo) List(ctx context.Context, docID string, limit, offset uint) ([]model.VersionSummary, int, error) {
	countWhere := map[string]interface{}{
		"document_id": docID,
		"is_branch":   false,
	}
	sqlStr, args, err := builder.BuildSelect("document_versions", countWhere, []string{"count(1)"})
	if err != nil {
		return nil, 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var total int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := map[string]interface{}{
		"document_id": docID,
		"is_branch":   false,
		"_orderby":    "version_number desc",
		"_limit":      []uint{offset, limit},
	}
	sqlStr, args, err = builder.BuildSelect("document_versions", where, versionSummaryColumns)
	if err != nil {
		return nil, 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()
	summaries := make([]model.VersionSummary, 0)
	for rows.Next() {
		var summary model.VersionSummary
		var diffData []byte
		if err := rows.Scan(&summary.ID, &summary.DocumentID, &summary.VersionNumber,
			&summary.Label, &summary.ChangeType, &summary.ChangeDescription,
			&diffData, &summary.SizeBytes, &summary.Ctime); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(diffData, &summary.Diff); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, rows.Err()
}

func (r *VersionRepo) ListBranches(ctx context.Context, docID string) ([]model.Version, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"is_branch":   true,
		"_orderby":    "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("document_versions", where, versionColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	branches := make([]model.Version, 0)
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, *version)
	}
	return branches, rows.Err()
}

func (r *VersionRepo) AggregateSize(ctx context.Context, userID string) (int, int64, error) {
	where := map[string]interface{}{
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("document_versions", where,
		[]string{"count(1)", "coalesce(sum(size_bytes), 0)"})
	if err != nil {
		return 0, 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var count int
	var totalBytes int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count, &totalBytes); err != nil {
		return 0, 0, err
	}
	return count, totalBytes, nil
}

// Owners lists every user with at least one stored version. Used by the
// storage report job.
func (r *VersionRepo) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM document_versions ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	owners := make([]string, 0)
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (r *VersionRepo) queryOne(ctx context.Context, where map[string]interface{}) (*model.Version, error) {
	sqlStr, args, err := builder.BuildSelect("document_versions", where, versionColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanVersion(rows)
}

func scanVersion(rows *sql.Rows) (*model.Version, error) {
	var version model.Version
	var snapshot, diffData []byte
	if err := rows.Scan(&version.ID, &version.UserID, &version.DocumentID,
		&version.VersionNumber, &version.Label, &snapshot, &version.ChangeType,
		&version.ChangeDescription, &diffData, &version.ParentID, &version.IsBranch,
		&version.BranchName, &version.SizeBytes, &version.Ctime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &version.Snapshot); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(diffData, &version.Diff); err != nil {
		return nil, err
	}
	return &version, nil
}
