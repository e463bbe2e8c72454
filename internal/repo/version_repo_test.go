package repo_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cvkit/cvault/internal/model"
	appErr "github.com/cvkit/cvault/internal/pkg/errors"
	"github.com/cvkit/cvault/internal/pkg/timeutil"
	"github.com/cvkit/cvault/internal/repo"
)

func testVersion(docID, userID string, number int) *model.Version {
	return &model.Version{
		ID:            userID + "-" + docID + "-" + string(rune('a'+number)),
		UserID:        userID,
		DocumentID:    docID,
		VersionNumber: number,
		Label:         "vlabel",
		Snapshot: model.Snapshot{
			Title: "snapshot title",
			Sections: []model.Section{
				{Type: "experience", Title: "Experience", Visible: true, Content: json.RawMessage(`{"jobs":[]}`)},
			},
		},
		ChangeType: model.ChangeTypeManual,
		Diff: model.Diff{
			FieldsChanged:    []string{"initial"},
			SectionsAdded:    []string{},
			SectionsRemoved:  []string{},
			SectionsModified: []string{},
		},
		SizeBytes: 128,
		Ctime:     timeutil.NowUnix(),
	}
}

func TestVersionRepoAppendAndConflict(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()
	cleanTables(t, conn)

	versions := repo.NewVersionRepo(conn)
	ctx := context.Background()

	require.NoError(t, versions.Append(ctx, testVersion("doc-1", "user-1", 1)))

	duplicate := testVersion("doc-1", "user-1", 1)
	duplicate.ID = "another-id"
	require.ErrorIs(t, versions.Append(ctx, duplicate), appErr.ErrConflict)

	fetched, err := versions.Get(ctx, "doc-1", 1)
	require.NoError(t, err)
	require.Equal(t, "snapshot title", fetched.Snapshot.Title)
	require.Equal(t, []string{"initial"}, fetched.Diff.FieldsChanged)
	require.Len(t, fetched.Snapshot.Sections, 1)
}

func TestVersionRepoLatestMainlineAndList(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()
	cleanTables(t, conn)

	versions := repo.NewVersionRepo(conn)
	ctx := context.Background()

	_, err := versions.LatestMainline(ctx, "doc-1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	number, err := versions.LatestNumber(ctx, "doc-1")
	require.NoError(t, err)
	require.Zero(t, number)

	for i := 1; i <= 3; i++ {
		require.NoError(t, versions.Append(ctx, testVersion("doc-1", "user-1", i)))
	}
	branch := testVersion("doc-1", "user-1", 4)
	branch.IsBranch = true
	branch.BranchName = "variant"
	require.NoError(t, versions.Append(ctx, branch))

	latest, err := versions.LatestMainline(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, 3, latest.VersionNumber)

	// the branch head holds the top of the shared sequence
	number, err = versions.LatestNumber(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, 4, number)

	page, total, err := versions.List(ctx, "doc-1", 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, page, 2)
	require.Equal(t, 3, page[0].VersionNumber)
	require.Equal(t, 2, page[1].VersionNumber)

	branches, err := versions.ListBranches(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, branches, 1)
	require.Equal(t, "variant", branches[0].BranchName)
}

func TestVersionRepoDuplicateBranchNameIsInvalid(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()
	cleanTables(t, conn)

	versions := repo.NewVersionRepo(conn)
	ctx := context.Background()

	first := testVersion("doc-1", "user-1", 1)
	first.IsBranch = true
	first.BranchName = "variant"
	require.NoError(t, versions.Append(ctx, first))

	second := testVersion("doc-1", "user-1", 2)
	second.ID = "second-id"
	second.IsBranch = true
	second.BranchName = "variant"
	require.ErrorIs(t, versions.Append(ctx, second), appErr.ErrInvalid)
}

func TestVersionRepoAggregateAndOwners(t *testing.T) {
	conn, cleanup := openTestDB(t)
	defer cleanup()
	cleanTables(t, conn)

	versions := repo.NewVersionRepo(conn)
	ctx := context.Background()

	v1 := testVersion("doc-1", "user-1", 1)
	v1.SizeBytes = 100
	v2 := testVersion("doc-2", "user-1", 1)
	v2.ID = "v2-id"
	v2.SizeBytes = 200
	v3 := testVersion("doc-3", "user-2", 1)
	v3.ID = "v3-id"
	v3.SizeBytes = 400
	for _, v := range []*model.Version{v1, v2, v3} {
		require.NoError(t, versions.Append(ctx, v))
	}

	count, totalBytes, err := versions.AggregateSize(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, int64(300), totalBytes)

	owners, err := versions.Owners(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"user-1", "user-2"}, owners)
}
