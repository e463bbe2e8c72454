package model

import "encoding/json"

// PersonalInfo holds the contact block of a CV.
type PersonalInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Website  string `json:"website"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
}

// Section is one block of a CV. Content is a type-specific payload kept as
// raw JSON; Type is the section's identity key within a document, array
// position is presentation order only.
type Section struct {
	Type    string          `json:"type"`
	Title   string          `json:"title"`
	Order   int             `json:"order"`
	Visible bool            `json:"visible"`
	Content json.RawMessage `json:"content"`
}

type Theme struct {
	Color    string `json:"color"`
	Font     string `json:"font"`
	FontSize string `json:"font_size"`
	Spacing  string `json:"spacing"`
}

// Snapshot is the immutable captured state of a document's content fields
// at one point in time.
type Snapshot struct {
	Title         string       `json:"title"`
	Summary       string       `json:"summary"`
	PersonalInfo  PersonalInfo `json:"personal_info"`
	Sections      []Section    `json:"sections"`
	Theme         Theme        `json:"theme"`
	TemplateID    string       `json:"template_id"`
	GeneratedHTML string       `json:"generated_html"`
}

// Document is the live mutable state of a CV.
type Document struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	Title         string       `json:"title"`
	Summary       string       `json:"summary"`
	PersonalInfo  PersonalInfo `json:"personal_info"`
	Sections      []Section    `json:"sections"`
	Theme         Theme        `json:"theme"`
	TemplateID    string       `json:"template_id"`
	GeneratedHTML string       `json:"generated_html"`
	State         int          `json:"state"`
	Ctime         int64        `json:"ctime"`
	Mtime         int64        `json:"mtime"`
}

// SnapshotOf captures the document's content fields. Sections are copied so
// later edits to the live slice cannot leak into a stored snapshot.
func SnapshotOf(doc *Document) Snapshot {
	sections := make([]Section, len(doc.Sections))
	copy(sections, doc.Sections)
	return Snapshot{
		Title:         doc.Title,
		Summary:       doc.Summary,
		PersonalInfo:  doc.PersonalInfo,
		Sections:      sections,
		Theme:         doc.Theme,
		TemplateID:    doc.TemplateID,
		GeneratedHTML: doc.GeneratedHTML,
	}
}

// ApplySnapshot overwrites the document's content fields from snap. Identity
// and bookkeeping fields (id, owner, state, timestamps) are untouched.
func (d *Document) ApplySnapshot(snap Snapshot) {
	d.Title = snap.Title
	d.Summary = snap.Summary
	d.PersonalInfo = snap.PersonalInfo
	d.Sections = make([]Section, len(snap.Sections))
	copy(d.Sections, snap.Sections)
	d.Theme = snap.Theme
	d.TemplateID = snap.TemplateID
	d.GeneratedHTML = snap.GeneratedHTML
}
