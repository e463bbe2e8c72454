package service

import (
	"context"
	"strings"

	"github.com/cvkit/cvault/internal/model"
	appErr "github.com/cvkit/cvault/internal/pkg/errors"
	"github.com/cvkit/cvault/internal/pkg/timeutil"
)

// DocumentService is the thin live-state surface the versioning engine sits
// next to. Updates overwrite the mutable document only; committing a point
// in history stays an explicit act through the version endpoints.
type DocumentService struct {
	documents DocumentStore
}

func NewDocumentService(documents DocumentStore) *DocumentService {
	return &DocumentService{documents: documents}
}

type DocumentInput struct {
	Title         string             `json:"title"`
	Summary       string             `json:"summary"`
	PersonalInfo  model.PersonalInfo `json:"personal_info"`
	Sections      []model.Section    `json:"sections"`
	Theme         model.Theme        `json:"theme"`
	TemplateID    string             `json:"template_id"`
	GeneratedHTML string             `json:"generated_html"`
}

const DocumentStateNormal = 1

func (s *DocumentService) Create(ctx context.Context, userID string, input DocumentInput) (*model.Document, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:            newID(),
		UserID:        userID,
		Title:         input.Title,
		Summary:       input.Summary,
		PersonalInfo:  input.PersonalInfo,
		Sections:      input.Sections,
		Theme:         input.Theme,
		TemplateID:    input.TemplateID,
		GeneratedHTML: input.GeneratedHTML,
		State:         DocumentStateNormal,
		Ctime:         now,
		Mtime:         now,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := s.documents.Load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, appErr.ErrForbidden
	}
	return doc, nil
}

func (s *DocumentService) Update(ctx context.Context, userID, docID string, input DocumentInput) (*model.Document, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, appErr.ErrInvalid
	}
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	doc.Title = input.Title
	doc.Summary = input.Summary
	doc.PersonalInfo = input.PersonalInfo
	doc.Sections = input.Sections
	doc.Theme = input.Theme
	doc.TemplateID = input.TemplateID
	doc.GeneratedHTML = input.GeneratedHTML
	doc.Mtime = timeutil.NowUnix()
	if err := s.documents.OverwriteState(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
