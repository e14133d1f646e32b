package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/dbutil"
)

type AccessRepo struct {
	db *sql.DB
}

func NewAccessRepo(db *sql.DB) *AccessRepo {
	return &AccessRepo{db: db}
}

// Grant upserts one (document, coach) grant through add_coach_document_access.
func (r *AccessRepo) Grant(ctx context.Context, documentID, coachID string, tier model.AccessTier) error {
	const query = `SELECT add_coach_document_access($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, documentID, coachID, string(tier))
	return err
}

func (r *AccessRepo) ListByDocument(ctx context.Context, documentID string) ([]model.CoachAccessGrant, error) {
	where := map[string]interface{}{
		"document_id": documentID,
		"_orderby":    "coach_id asc",
	}
	sqlStr, args, err := builder.BuildSelect("coach_document_access", where, []string{"document_id", "coach_id", "access_tier", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var grants []model.CoachAccessGrant
	for rows.Next() {
		var g model.CoachAccessGrant
		var tier string
		if err := rows.Scan(&g.DocumentID, &g.CoachID, &tier, &g.Ctime, &g.Mtime); err != nil {
			return nil, err
		}
		g.AccessTier = model.AccessTier(tier)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
