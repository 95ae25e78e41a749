package db

import (
	"context"

	"github.com/charmbracelet/log"
)

const archiveQueue = 256

// Archive writes captions in the background. Store never blocks; when
// the queue is full the caption is dropped and logged.
type Archive struct {
	queries  *Queries
	runID    string
	language string
	pending  chan InsertCaptionParams
	logger   *log.Logger
}

func NewArchive(queries *Queries, runID, language string, logger *log.Logger) *Archive {
	return &Archive{
		queries:  queries,
		runID:    runID,
		language: language,
		pending:  make(chan InsertCaptionParams, archiveQueue),
		logger:   logger,
	}
}

func (a *Archive) RunID() string {
	return a.runID
}

func (a *Archive) Store(restart int, text string, resultEndMs, correctedEndMs int64) {
	row := InsertCaptionParams{
		RunID:          a.runID,
		Restart:        int32(restart),
		Language:       a.language,
		Text:           text,
		ResultEndMs:    resultEndMs,
		CorrectedEndMs: correctedEndMs,
	}
	select {
	case a.pending <- row:
	default:
		a.logger.Warn("archive queue full, dropping caption", "corrected_end_ms", correctedEndMs)
	}
}

// Run drains the queue until ctx is done. Insert failures are logged.
func (a *Archive) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case row := <-a.pending:
			a.insert(ctx, row)
		}
	}
}

func (a *Archive) drain() {
	for {
		select {
		case row := <-a.pending:
			a.insert(context.Background(), row)
		default:
			return
		}
	}
}

func (a *Archive) insert(ctx context.Context, row InsertCaptionParams) {
	id, err := a.queries.InsertCaption(ctx, row)
	if err != nil {
		a.logger.Error("insert caption", "error", err)
		return
	}
	a.logger.Debug("caption stored", "id", id, "restart", row.Restart, "corrected_end_ms", row.CorrectedEndMs)
}
