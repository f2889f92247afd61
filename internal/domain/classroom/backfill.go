package classroom

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
)

// BackfillResult counts the analyses BackfillHistory examined and filled.
type BackfillResult struct {
	Scanned int
	Updated int
}

// BackfillHistory writes a historical summary into every stored analysis
// that lacks one. The summary covers the same student's earlier analyses of
// the same subject, as it would have been computed when the analysis was
// created. With dryRun nothing is written.
func (s *Store) BackfillHistory(ctx context.Context, dryRun bool) (BackfillResult, error) {
	var res BackfillResult
	all, err := s.queryAnalyses(ctx, "backfill history",
		`SELECT `+analysisColumns+` FROM analysis ORDER BY created_at, id`)
	if err != nil {
		return res, err
	}

	type studentSubject struct{ student, subject string }
	earlier := make(map[studentSubject][]insight.Insight)
	var pending []*Analysis
	for _, a := range all {
		res.Scanned++
		k := studentSubject{a.StudentName, a.Subject}
		prev := earlier[k]
		earlier[k] = append(prev, a.Insight)

		if a.Insight.Detail != nil && a.Insight.Detail.HistoricalAnalysis != "" {
			continue
		}
		newestFirst := slices.Clone(prev)
		slices.Reverse(newestFirst)
		summary := insight.HistoricalSummary(a.StudentName, a.Subject, newestFirst)
		if summary == "" {
			continue
		}
		if a.Insight.Detail == nil {
			a.Insight.Detail = &insight.Detail{}
		}
		a.Insight.Detail.HistoricalAnalysis = summary
		pending = append(pending, a)
	}

	res.Updated = len(pending)
	if dryRun || len(pending) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BackfillResult{Scanned: res.Scanned}, fmt.Errorf("backfill history: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, a := range pending {
		payload, err := json.Marshal(a.Insight)
		if err != nil {
			return BackfillResult{Scanned: res.Scanned}, fmt.Errorf("backfill history: encode insight of %s: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE analysis SET insight = ? WHERE id = ?`, string(payload), a.ID); err != nil {
			return BackfillResult{Scanned: res.Scanned}, fmt.Errorf("backfill history: update %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return BackfillResult{Scanned: res.Scanned}, fmt.Errorf("backfill history: %w", err)
	}
	return res, nil
}
