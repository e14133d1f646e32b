package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/model"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

type GrantFailure struct {
	DocumentID string
	CoachID    string
	Err        error
}

func (f GrantFailure) String() string {
	return fmt.Sprintf("grant %s to coach %s: %v", f.DocumentID, f.CoachID, f.Err)
}

type GrantReport struct {
	Granted  []string
	Failures []GrantFailure
}

// AccessGrantor attaches documents to coach scopes. Grants are upserts, so
// repeating a grant only changes its tier.
type AccessGrantor struct {
	store AccessStore
}

func NewAccessGrantor(store AccessStore) *AccessGrantor {
	return &AccessGrantor{store: store}
}

// Grant upserts one grant per coach. Invalid arguments fail the call; a
// storage failure for one coach is reported in the GrantReport and the
// remaining coaches are still granted.
func (g *AccessGrantor) Grant(ctx context.Context, documentID string, coachIDs []string, tier model.AccessTier) (*GrantReport, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" || !tier.Valid() {
		return nil, appErr.ErrInvalidInput
	}
	coaches := normalizeCoachIDs(coachIDs)
	if len(coaches) == 0 {
		return nil, appErr.ErrInvalidInput
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", documentID), zap.String("tier", string(tier)))
	report := &GrantReport{}
	for _, coachID := range coaches {
		if err := g.store.Grant(ctx, documentID, coachID, tier); err != nil {
			logger.Warn("grant coach access failed", zap.String("coach_id", coachID), zap.Error(err))
			report.Failures = append(report.Failures, GrantFailure{DocumentID: documentID, CoachID: coachID, Err: err})
			continue
		}
		report.Granted = append(report.Granted, coachID)
	}
	return report, nil
}

func normalizeCoachIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
