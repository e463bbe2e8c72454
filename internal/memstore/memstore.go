// Package memstore implements the service store contracts with plain maps.
// It backs logic tests and single-node embedded use; the Postgres repo is
// the deployment-grade implementation of the same contracts.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cvkit/cvault/internal/model"
	appErr "github.com/cvkit/cvault/internal/pkg/errors"
)

type Store struct {
	mu        sync.RWMutex
	documents map[string]*model.Document
	versions  map[string][]*model.Version
}

func New() *Store {
	return &Store{
		documents: make(map[string]*model.Document),
		versions:  make(map[string][]*model.Version),
	}
}

func (s *Store) Create(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return appErr.ErrConflict
	}
	s.documents[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *Store) Load(ctx context.Context, docID string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *Store) OverwriteState(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.documents[doc.ID]
	if !ok {
		return appErr.ErrNotFound
	}
	stored.ApplySnapshot(model.SnapshotOf(doc))
	stored.Mtime = doc.Mtime
	return nil
}

func (s *Store) Append(ctx context.Context, version *model.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.versions[version.DocumentID] {
		if existing.VersionNumber == version.VersionNumber {
			return appErr.ErrConflict
		}
		// a taken branch name is a validation failure, not a numbering
		// race: retrying cannot resolve it
		if version.IsBranch && existing.IsBranch && existing.BranchName == version.BranchName {
			return appErr.ErrInvalid
		}
	}
	s.versions[version.DocumentID] = append(s.versions[version.DocumentID], cloneVersion(version))
	return nil
}

func (s *Store) LatestMainline(ctx context.Context, docID string) (*model.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.Version
	for _, version := range s.versions[docID] {
		if version.IsBranch {
			continue
		}
		if latest == nil || version.VersionNumber > latest.VersionNumber {
			latest = version
		}
	}
	if latest == nil {
		return nil, appErr.ErrNotFound
	}
	return cloneVersion(latest), nil
}

func (s *Store) LatestNumber(ctx context.Context, docID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	highest := 0
	for _, version := range s.versions[docID] {
		if version.VersionNumber > highest {
			highest = version.VersionNumber
		}
	}
	return highest, nil
}

func (s *Store) Get(ctx context.Context, docID string, versionNumber int) (*model.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, version := range s.versions[docID] {
		if version.VersionNumber == versionNumber {
			return cloneVersion(version), nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *Store) List(ctx context.Context, docID string, limit, offset uint) ([]model.VersionSummary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mainline := make([]*model.Version, 0)
	for _, version := range s.versions[docID] {
		if !version.IsBranch {
			mainline = append(mainline, version)
		}
	}
	sort.Slice(mainline, func(i, j int) bool {
		return mainline[i].VersionNumber > mainline[j].VersionNumber
	})
	total := len(mainline)
	if offset >= uint(total) {
		return []model.VersionSummary{}, total, nil
	}
	end := offset + limit
	if limit == 0 || end > uint(total) {
		end = uint(total)
	}
	page := make([]model.VersionSummary, 0, end-offset)
	for _, version := range mainline[offset:end] {
		page = append(page, version.Summary())
	}
	return page, total, nil
}

func (s *Store) ListBranches(ctx context.Context, docID string) ([]model.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type indexed struct {
		version *model.Version
		pos     int
	}
	branches := make([]indexed, 0)
	for pos, version := range s.versions[docID] {
		if version.IsBranch {
			branches = append(branches, indexed{version: version, pos: pos})
		}
	}
	// newest first; insertion order breaks ties within one second
	sort.Slice(branches, func(i, j int) bool {
		if branches[i].version.Ctime != branches[j].version.Ctime {
			return branches[i].version.Ctime > branches[j].version.Ctime
		}
		return branches[i].pos > branches[j].pos
	})
	out := make([]model.Version, 0, len(branches))
	for _, branch := range branches {
		out = append(out, *cloneVersion(branch.version))
	}
	return out, nil
}

func (s *Store) AggregateSize(ctx context.Context, userID string) (int, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	var totalBytes int64
	for _, versions := range s.versions {
		for _, version := range versions {
			if version.UserID == userID {
				count++
				totalBytes += version.SizeBytes
			}
		}
	}
	return count, totalBytes, nil
}

func cloneDocument(doc *model.Document) *model.Document {
	clone := new(model.Document)
	mustRoundTrip(doc, clone)
	return clone
}

func cloneVersion(version *model.Version) *model.Version {
	clone := new(model.Version)
	mustRoundTrip(version, clone)
	return clone
}

func mustRoundTrip(src, dst interface{}) {
	data, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		panic(err)
	}
}
