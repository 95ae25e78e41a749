package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Caption struct {
	ID             int64
	RunID          string
	Restart        int32
	Language       string
	Text           string
	ResultEndMs    int64
	CorrectedEndMs int64
	CreatedAt      pgtype.Timestamptz
}

const insertCaption = `
INSERT INTO captions (run_id, restart, language, text, result_end_ms, corrected_end_ms)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`

type InsertCaptionParams struct {
	RunID          string
	Restart        int32
	Language       string
	Text           string
	ResultEndMs    int64
	CorrectedEndMs int64
}

func (q *Queries) InsertCaption(ctx context.Context, arg InsertCaptionParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertCaption,
		arg.RunID,
		arg.Restart,
		arg.Language,
		arg.Text,
		arg.ResultEndMs,
		arg.CorrectedEndMs,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const recentCaptions = `
SELECT id, run_id, restart, language, text, result_end_ms, corrected_end_ms, created_at
FROM captions
ORDER BY created_at DESC, id DESC
LIMIT $1
`

func (q *Queries) RecentCaptions(ctx context.Context, limit int32) ([]Caption, error) {
	rows, err := q.db.Query(ctx, recentCaptions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCaptions(rows)
}

const captionsForRun = `
SELECT id, run_id, restart, language, text, result_end_ms, corrected_end_ms, created_at
FROM captions
WHERE run_id = $1
ORDER BY corrected_end_ms, id
`

func (q *Queries) CaptionsForRun(ctx context.Context, runID string) ([]Caption, error) {
	rows, err := q.db.Query(ctx, captionsForRun, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCaptions(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanCaptions(rows rowScanner) ([]Caption, error) {
	var items []Caption
	for rows.Next() {
		var i Caption
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.Restart,
			&i.Language,
			&i.Text,
			&i.ResultEndMs,
			&i.CorrectedEndMs,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
