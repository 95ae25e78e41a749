package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed db_init.sql
var sqlFS embed.FS

func OpenDatabase(ctx context.Context, url string) (*pgxpool.Pool, *Queries, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("unable to reach database: %w", err)
	}

	sqlFile, err := sqlFS.ReadFile("db_init.sql")
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf(
			"failed to read embedded db_init.sql: %w",
			err,
		)
	}

	_, err = pool.Exec(ctx, string(sqlFile))
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf(
			"failed to execute embedded db_init.sql: %w",
			err,
		)
	}

	return pool, New(pool), nil
}
