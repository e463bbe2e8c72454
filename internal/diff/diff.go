// Package diff computes structural deltas between document snapshots. It is
// pure: no persistence, no side effects, same inputs always give the same
// output. The same function backs both the diff stored on a new version and
// on-demand comparison of arbitrary version pairs.
package diff

import (
	"encoding/json"
	"sort"

	"github.com/cvkit/cvault/internal/model"
)

// FieldInitial marks the synthetic diff of a document's first version.
const FieldInitial = "initial"

// Top-level snapshot fields compared individually.
const (
	FieldTitle        = "title"
	FieldSummary      = "summary"
	FieldTemplateID   = "template_id"
	FieldPersonalInfo = "personal_info"
	FieldTheme        = "theme"
)

// Compute returns the delta going from prev to next. A nil prev means next
// is the first snapshot and yields the synthetic initial diff.
//
// Sections are matched by Type, so reordering alone reports the section as
// modified only if its Order (or anything else) actually changed. If a
// snapshot carries duplicate section types, the last occurrence wins; the
// earlier ones are not diffed separately.
func Compute(prev *model.Snapshot, next model.Snapshot) model.Diff {
	d := model.Diff{
		FieldsChanged:    []string{},
		SectionsAdded:    []string{},
		SectionsRemoved:  []string{},
		SectionsModified: []string{},
	}
	if prev == nil {
		d.FieldsChanged = append(d.FieldsChanged, FieldInitial)
		return d
	}

	if prev.Title != next.Title {
		d.FieldsChanged = append(d.FieldsChanged, FieldTitle)
	}
	if prev.Summary != next.Summary {
		d.FieldsChanged = append(d.FieldsChanged, FieldSummary)
	}
	if prev.TemplateID != next.TemplateID {
		d.FieldsChanged = append(d.FieldsChanged, FieldTemplateID)
	}
	if !jsonEqual(prev.PersonalInfo, next.PersonalInfo) {
		d.FieldsChanged = append(d.FieldsChanged, FieldPersonalInfo)
	}
	if !jsonEqual(prev.Theme, next.Theme) {
		d.FieldsChanged = append(d.FieldsChanged, FieldTheme)
	}

	prevSections := sectionsByType(prev.Sections)
	nextSections := sectionsByType(next.Sections)
	for sectionType := range nextSections {
		if _, ok := prevSections[sectionType]; !ok {
			d.SectionsAdded = append(d.SectionsAdded, sectionType)
		}
	}
	for sectionType, prevSection := range prevSections {
		nextSection, ok := nextSections[sectionType]
		if !ok {
			d.SectionsRemoved = append(d.SectionsRemoved, sectionType)
			continue
		}
		if !jsonEqual(prevSection, nextSection) {
			d.SectionsModified = append(d.SectionsModified, sectionType)
		}
	}

	sort.Strings(d.SectionsAdded)
	sort.Strings(d.SectionsRemoved)
	sort.Strings(d.SectionsModified)
	return d
}

func sectionsByType(sections []model.Section) map[string]model.Section {
	byType := make(map[string]model.Section, len(sections))
	for _, section := range sections {
		byType[section.Type] = section
	}
	return byType
}

func jsonEqual(a, b interface{}) bool {
	aBytes, errA := json.Marshal(a)
	bBytes, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aBytes) == string(bBytes)
}
