package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/dbutil"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

var sourceColumns = []string{
	"id", "title", "source_type", "byte_size", "status", "error_message", "last_processed",
	"supplied_by", "supplier_type", "supplier_email", "license_type", "copyright_holder",
	"metadata", "ctime", "mtime",
}

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) Create(ctx context.Context, src *model.DocumentSource) error {
	meta, err := json.Marshal(src.Metadata)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":               src.ID,
		"title":            src.Title,
		"source_type":      src.SourceType,
		"byte_size":        src.ByteSize,
		"status":           string(src.Status),
		"error_message":    src.ErrorMessage,
		"last_processed":   src.LastProcessed,
		"supplied_by":      src.Attribution.SuppliedBy,
		"supplier_type":    src.Attribution.SupplierType,
		"supplier_email":   src.Attribution.SupplierEmail,
		"license_type":     src.Attribution.LicenseType,
		"copyright_holder": src.Attribution.CopyrightHolder,
		"metadata":         string(meta),
		"ctime":            src.Ctime,
		"mtime":            src.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("document_sources", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// Finalize moves a processing source to a terminal status. Sources that are
// no longer processing are left alone and reported as not found.
func (r *SourceRepo) Finalize(ctx context.Context, id string, status model.SourceStatus, errMsg string, processedAt int64) error {
	where := map[string]interface{}{
		"id":     id,
		"status": string(model.SourceStatusProcessing),
	}
	return r.finalize(ctx, where, status, errMsg, processedAt)
}

// FinalizeStale is Finalize restricted to sources whose mtime is still older
// than cutoff, so a source touched after it was listed is not settled.
func (r *SourceRepo) FinalizeStale(ctx context.Context, id string, status model.SourceStatus, errMsg string, cutoff, processedAt int64) error {
	where := map[string]interface{}{
		"id":      id,
		"status":  string(model.SourceStatusProcessing),
		"mtime <": cutoff,
	}
	return r.finalize(ctx, where, status, errMsg, processedAt)
}

func (r *SourceRepo) finalize(ctx context.Context, where map[string]interface{}, status model.SourceStatus, errMsg string, processedAt int64) error {
	if !model.CanTransition(model.SourceStatusProcessing, status) {
		return appErr.ErrInvalidInput
	}
	update := map[string]interface{}{
		"status":         string(status),
		"error_message":  errMsg,
		"last_processed": processedAt,
		"mtime":          processedAt,
	}
	return r.update(ctx, where, update)
}

// Touch refreshes mtime of a source that is still processing.
func (r *SourceRepo) Touch(ctx context.Context, id string, at int64) error {
	where := map[string]interface{}{
		"id":     id,
		"status": string(model.SourceStatusProcessing),
	}
	return r.update(ctx, where, map[string]interface{}{"mtime": at})
}

func (r *SourceRepo) update(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("document_sources", where, update)
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

func (r *SourceRepo) GetByID(ctx context.Context, id string) (*model.DocumentSource, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("document_sources", where, sourceColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	sources, err := r.query(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &sources[0], nil
}

// ListStale returns processing sources last touched before cutoff, oldest first.
func (r *SourceRepo) ListStale(ctx context.Context, cutoff int64, limit int) ([]model.DocumentSource, error) {
	where := map[string]interface{}{
		"status":   string(model.SourceStatusProcessing),
		"mtime <":  cutoff,
		"_orderby": "mtime asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("document_sources", where, sourceColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.query(ctx, sqlStr, args)
}

func (r *SourceRepo) query(ctx context.Context, sqlStr string, args []interface{}) ([]model.DocumentSource, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var sources []model.DocumentSource
	for rows.Next() {
		var src model.DocumentSource
		var status string
		var meta []byte
		if err := rows.Scan(
			&src.ID,
			&src.Title,
			&src.SourceType,
			&src.ByteSize,
			&status,
			&src.ErrorMessage,
			&src.LastProcessed,
			&src.Attribution.SuppliedBy,
			&src.Attribution.SupplierType,
			&src.Attribution.SupplierEmail,
			&src.Attribution.LicenseType,
			&src.Attribution.CopyrightHolder,
			&meta,
			&src.Ctime,
			&src.Mtime,
		); err != nil {
			return nil, err
		}
		src.Status = model.SourceStatus(status)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &src.Metadata); err != nil {
				return nil, err
			}
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
