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

const (
	DocumentStateNormal  = 1
	DocumentStateDeleted = 2
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

var documentColumns = []string{
	"id", "user_id", "title", "summary", "personal_info", "sections",
	"theme", "template_id", "generated_html", "state", "ctime", "mtime",
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	personalInfo, sections, theme, err := marshalDocumentFields(doc)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":             doc.ID,
		"user_id":        doc.UserID,
		"title":          doc.Title,
		"summary":        doc.Summary,
		"personal_info":  personalInfo,
		"sections":       sections,
		"theme":          theme,
		"template_id":    doc.TemplateID,
		"generated_html": doc.GeneratedHTML,
		"state":          doc.State,
		"ctime":          doc.Ctime,
		"mtime":          doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

// Load fetches by id only; ownership checks belong to the service layer.
func (r *DocumentRepo) Load(ctx context.Context, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":    docID,
		"state": DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
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
	return scanDocument(rows)
}

// OverwriteState replaces the document's content fields and mtime. Identity
// and lifecycle columns are never touched here.
func (r *DocumentRepo) OverwriteState(ctx context.Context, doc *model.Document) error {
	personalInfo, sections, theme, err := marshalDocumentFields(doc)
	if err != nil {
		return err
	}
	where := map[string]interface{}{
		"id":    doc.ID,
		"state": DocumentStateNormal,
	}
	update := map[string]interface{}{
		"title":          doc.Title,
		"summary":        doc.Summary,
		"personal_info":  personalInfo,
		"sections":       sections,
		"theme":          theme,
		"template_id":    doc.TemplateID,
		"generated_html": doc.GeneratedHTML,
		"mtime":          doc.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func marshalDocumentFields(doc *model.Document) ([]byte, []byte, []byte, error) {
	personalInfo, err := json.Marshal(doc.PersonalInfo)
	if err != nil {
		return nil, nil, nil, err
	}
	sectionsValue := doc.Sections
	if sectionsValue == nil {
		sectionsValue = []model.Section{}
	}
	sections, err := json.Marshal(sectionsValue)
	if err != nil {
		return nil, nil, nil, err
	}
	theme, err := json.Marshal(doc.Theme)
	if err != nil {
		return nil, nil, nil, err
	}
	return personalInfo, sections, theme, nil
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var personalInfo, sections, theme []byte
	if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Summary, &personalInfo,
		&sections, &theme, &doc.TemplateID, &doc.GeneratedHTML, &doc.State,
		&doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(personalInfo, &doc.PersonalInfo); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sections, &doc.Sections); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(theme, &doc.Theme); err != nil {
		return nil, err
	}
	return &doc, nil
}
