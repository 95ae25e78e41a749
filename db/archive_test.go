package db

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	return nil
}

// fakeDB records inserts and answers them with increasing ids.
type fakeDB struct {
	mu      sync.Mutex
	inserts [][]interface{}
	fail    bool
}

func (f *fakeDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fakeRow{err: errors.New("connection refused")}
	}
	if strings.Contains(sql, "INSERT INTO captions") {
		f.inserts = append(f.inserts, args)
	}
	return fakeRow{id: int64(len(f.inserts))}
}

func (f *fakeDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

func TestInsertCaption(t *testing.T) {
	fake := &fakeDB{}
	q := New(fake)

	id, err := q.InsertCaption(context.Background(), InsertCaptionParams{
		RunID:          "run",
		Restart:        2,
		Language:       "en-US",
		Text:           "hello",
		ResultEndMs:    1200,
		CorrectedEndMs: 581200,
	})
	if err != nil {
		t.Fatalf("InsertCaption: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d", id)
	}

	args := fake.inserts[0]
	if args[0] != "run" || args[1] != int32(2) || args[4] != int64(1200) || args[5] != int64(581200) {
		t.Errorf("args = %v", args)
	}
}

func TestArchiveStoresInOrder(t *testing.T) {
	fake := &fakeDB{}
	a := NewArchive(New(fake), "run-1", "en-US", log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for i := 0; i < 5; i++ {
		a.Store(0, "caption", int64(i*100), int64(i*100))
	}

	deadline := time.Now().Add(2 * time.Second)
	for fake.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fake.count() != 5 {
		t.Fatalf("stored %d captions, want 5", fake.count())
	}
	for i, args := range fake.inserts {
		if args[0] != "run-1" || args[5] != int64(i*100) {
			t.Errorf("insert %d args = %v", i, args)
		}
	}
}

func TestArchiveSurvivesInsertErrors(t *testing.T) {
	fake := &fakeDB{fail: true}
	a := NewArchive(New(fake), "run-2", "en-US", log.New(io.Discard))

	a.Store(0, "lost", 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestArchiveDropsWhenFull(t *testing.T) {
	a := NewArchive(New(&fakeDB{}), "run-3", "en-US", log.New(io.Discard))
	for i := 0; i < archiveQueue+10; i++ {
		a.Store(0, "x", 0, 0)
	}
	if len(a.pending) != archiveQueue {
		t.Errorf("queue length = %d", len(a.pending))
	}
}
