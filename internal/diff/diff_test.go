package diff_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cvkit/cvault/internal/diff"
	"github.com/cvkit/cvault/internal/model"
)

func sampleSnapshot() model.Snapshot {
	return model.Snapshot{
		Title:   "Backend Engineer CV",
		Summary: "Ten years of Go.",
		PersonalInfo: model.PersonalInfo{
			FullName: "Ada Example",
			Email:    "ada@example.com",
		},
		Sections: []model.Section{
			{Type: "experience", Title: "Experience", Order: 0, Visible: true, Content: json.RawMessage(`{"jobs":[{"company":"acme"}]}`)},
			{Type: "education", Title: "Education", Order: 1, Visible: true, Content: json.RawMessage(`{"schools":[]}`)},
		},
		Theme:      model.Theme{Color: "blue", Font: "serif"},
		TemplateID: "classic",
	}
}

func TestComputeInitial(t *testing.T) {
	d := diff.Compute(nil, sampleSnapshot())
	require.Equal(t, []string{diff.FieldInitial}, d.FieldsChanged)
	require.Empty(t, d.SectionsAdded)
	require.Empty(t, d.SectionsRemoved)
	require.Empty(t, d.SectionsModified)
}

func TestComputeIdentity(t *testing.T) {
	snap := sampleSnapshot()
	d := diff.Compute(&snap, snap)
	require.True(t, d.Empty())
	require.NotNil(t, d.FieldsChanged)
	require.NotNil(t, d.SectionsAdded)
}

func TestComputeFieldChanges(t *testing.T) {
	prev := sampleSnapshot()
	next := sampleSnapshot()
	next.Title = "Staff Engineer CV"
	next.Theme.Color = "green"
	next.PersonalInfo.Phone = "+1 555 0100"

	d := diff.Compute(&prev, next)
	require.Equal(t, []string{"title", "personal_info", "theme"}, d.FieldsChanged)
	require.Empty(t, d.SectionsAdded)
	require.Empty(t, d.SectionsModified)
}

func TestComputeSectionAddRemoveModify(t *testing.T) {
	prev := sampleSnapshot()
	next := sampleSnapshot()
	// drop education, add skills, touch experience content
	next.Sections = []model.Section{
		{Type: "skills", Title: "Skills", Order: 0, Visible: true, Content: json.RawMessage(`{"items":["go"]}`)},
		{Type: "experience", Title: "Experience", Order: 1, Visible: true, Content: json.RawMessage(`{"jobs":[]}`)},
	}

	d := diff.Compute(&prev, next)
	require.Equal(t, []string{"skills"}, d.SectionsAdded)
	require.Equal(t, []string{"education"}, d.SectionsRemoved)
	require.Equal(t, []string{"experience"}, d.SectionsModified)
	require.Empty(t, d.FieldsChanged)
}

func TestComputeReorderWithoutContentChange(t *testing.T) {
	prev := sampleSnapshot()
	next := sampleSnapshot()
	// swap array positions but keep each section's fields identical
	next.Sections = []model.Section{prev.Sections[1], prev.Sections[0]}

	d := diff.Compute(&prev, next)
	require.True(t, d.Empty())
}

func TestComputeReorderChangesOrderField(t *testing.T) {
	prev := sampleSnapshot()
	next := sampleSnapshot()
	next.Sections[0].Order = 1
	next.Sections[1].Order = 0

	d := diff.Compute(&prev, next)
	require.ElementsMatch(t, []string{"experience", "education"}, d.SectionsModified)
}

func TestComputeDuplicateTypeLastWins(t *testing.T) {
	prev := sampleSnapshot()
	next := sampleSnapshot()
	next.Sections = append(next.Sections, model.Section{
		Type: "experience", Title: "Experience", Order: 2, Visible: true,
		Content: json.RawMessage(`{"jobs":[{"company":"other"}]}`),
	})

	d := diff.Compute(&prev, next)
	// the later duplicate shadows the earlier one, so experience counts as modified
	require.Equal(t, []string{"experience"}, d.SectionsModified)
	require.Empty(t, d.SectionsAdded)
}

func TestComputeDeterministic(t *testing.T) {
	prev := sampleSnapshot()
	next := sampleSnapshot()
	next.Sections = next.Sections[:1]
	next.Summary = "changed"

	first := diff.Compute(&prev, next)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, diff.Compute(&prev, next))
	}
}
