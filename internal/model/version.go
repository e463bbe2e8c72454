package model

const (
	ChangeTypeManual      = "manual"
	ChangeTypeAIGenerated = "ai-generated"
	ChangeTypeAutoSave    = "auto-save"
	ChangeTypePublish     = "publish"
	ChangeTypeRestore     = "restore"
	ChangeTypeBranch      = "branch"
)

func IsValidChangeType(changeType string) bool {
	switch changeType {
	case ChangeTypeManual, ChangeTypeAIGenerated, ChangeTypeAutoSave,
		ChangeTypePublish, ChangeTypeRestore, ChangeTypeBranch:
		return true
	}
	return false
}

// Diff is a structural delta between two snapshots. Sections are keyed by
// their type, not by position. All slices are non-nil and sorted.
type Diff struct {
	FieldsChanged    []string `json:"fields_changed"`
	SectionsAdded    []string `json:"sections_added"`
	SectionsRemoved  []string `json:"sections_removed"`
	SectionsModified []string `json:"sections_modified"`
}

func (d Diff) Empty() bool {
	return len(d.FieldsChanged) == 0 &&
		len(d.SectionsAdded) == 0 &&
		len(d.SectionsRemoved) == 0 &&
		len(d.SectionsModified) == 0
}

// Version is one stored point of a document's history. Never updated after
// creation; history only moves forward.
type Version struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id"`
	DocumentID        string   `json:"document_id"`
	VersionNumber     int      `json:"version_number"`
	Label             string   `json:"label"`
	Snapshot          Snapshot `json:"snapshot"`
	ChangeType        string   `json:"change_type"`
	ChangeDescription string   `json:"change_description"`
	Diff              Diff     `json:"diff"`
	// ParentID points at the version this one was derived from. Lookup
	// only: the parent may be pruned later without touching this record.
	ParentID   string `json:"parent_id,omitempty"`
	IsBranch   bool   `json:"is_branch"`
	BranchName string `json:"branch_name,omitempty"`
	SizeBytes  int64  `json:"size_bytes"`
	Ctime      int64  `json:"ctime"`
}

// VersionSummary is the listing shape: everything but the snapshot payload.
type VersionSummary struct {
	ID                string `json:"id"`
	DocumentID        string `json:"document_id"`
	VersionNumber     int    `json:"version_number"`
	Label             string `json:"label"`
	ChangeType        string `json:"change_type"`
	ChangeDescription string `json:"change_description"`
	Diff              Diff   `json:"diff"`
	SizeBytes         int64  `json:"size_bytes"`
	Ctime             int64  `json:"ctime"`
}

func (v *Version) Summary() VersionSummary {
	return VersionSummary{
		ID:                v.ID,
		DocumentID:        v.DocumentID,
		VersionNumber:     v.VersionNumber,
		Label:             v.Label,
		ChangeType:        v.ChangeType,
		ChangeDescription: v.ChangeDescription,
		Diff:              v.Diff,
		SizeBytes:         v.SizeBytes,
		Ctime:             v.Ctime,
	}
}
