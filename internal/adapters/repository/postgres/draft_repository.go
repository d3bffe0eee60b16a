package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

type draftRepository struct {
	db *sql.DB
}

func NewDraftRepository(db *sql.DB) ports.DraftRepository {
	return &draftRepository{
		db: db,
	}
}

// Save replaces the stored draft for the voter in one transaction.
func (r *draftRepository) Save(ctx context.Context, draft *domain.Draft) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsertDraft := `
		INSERT INTO ballot_drafts (voter_key, updated_at)
		VALUES ($1, $2)
		ON CONFLICT (voter_key) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.ExecContext(ctx, upsertDraft, draft.VoterKey, draft.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert draft: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ballot_draft_entries WHERE voter_key = $1`, draft.VoterKey); err != nil {
		return fmt.Errorf("failed to clear draft entries: %w", err)
	}

	queryEntry := `
		INSERT INTO ballot_draft_entries (voter_key, position_id, kind, candidate_id, special)
		VALUES ($1, $2, $3, $4, $5)
	`
	stmt, err := tx.PrepareContext(ctx, queryEntry)
	if err != nil {
		return fmt.Errorf("failed to prepare entry statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range draft.Entries {
		var candidateID sql.NullInt64
		var special sql.NullString
		if e.Choice.Kind == domain.ChoiceCandidate {
			candidateID = sql.NullInt64{Int64: int64(e.Choice.CandidateID), Valid: true}
		} else {
			special = sql.NullString{String: string(e.Choice.Special), Valid: true}
		}
		_, err = stmt.ExecContext(ctx, draft.VoterKey, int64(e.PositionID), string(e.Choice.Kind), candidateID, special)
		if err != nil {
			return fmt.Errorf("failed to insert draft entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *draftRepository) Load(ctx context.Context, voterKey string) (*domain.Draft, error) {
	draft := domain.Draft{VoterKey: voterKey}
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM ballot_drafts WHERE voter_key = $1`, voterKey).Scan(&draft.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	queryEntries := `
		SELECT position_id, kind, candidate_id, special
		FROM ballot_draft_entries
		WHERE voter_key = $1
		ORDER BY position_id
	`
	rows, err := r.db.QueryContext(ctx, queryEntries, voterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			positionID  int64
			kind        string
			candidateID sql.NullInt64
			special     sql.NullString
		)
		if err := rows.Scan(&positionID, &kind, &candidateID, &special); err != nil {
			return nil, fmt.Errorf("failed to scan draft entry: %w", err)
		}
		choice := domain.Choice{Kind: domain.ChoiceKind(kind)}
		if candidateID.Valid {
			choice.CandidateID = domain.CandidateID(candidateID.Int64)
		}
		if special.Valid {
			choice.Special = domain.SpecialResponse(special.String)
		}
		draft.Entries = append(draft.Entries, domain.BallotEntry{PositionID: domain.PositionID(positionID), Choice: choice})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draft entries: %w", err)
	}

	return &draft, nil
}

func (r *draftRepository) Delete(ctx context.Context, voterKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM ballot_drafts WHERE voter_key = $1`, voterKey)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
