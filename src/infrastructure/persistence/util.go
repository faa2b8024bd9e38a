package persistence

import (
	"context"
	"errors"
	"strconv"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/chcemvediet/portal/src/config"
	"github.com/chcemvediet/portal/src/domain"
	"github.com/chcemvediet/portal/src/domain/repository"
)

// scanFirst reads exactly one row out of a batch result.
func scanFirst(rows pgx.Rows, dst ...interface{}) error {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return errors.New("empty result")
	}
	return rows.Scan(dst...)
}

// fetchPage runs the count query and the LIMIT/OFFSET query for the same
// predicate in a single round trip, filling page.Total on the way. The
// limit and offset are appended after queryArgs, so placeholders in the
// predicate must be numbered from $1.
func fetchPage(
	db config.PgxIface,
	page *repository.Page,
	items interface{},
	selects, from, orderBy string,
	queryArgs ...interface{},
) error {
	limitArg := len(queryArgs) + 1
	query := `SELECT ` + selects + ` FROM ` + from +
		` ORDER BY ` + orderBy +
		` LIMIT $` + strconv.Itoa(limitArg) +
		` OFFSET $` + strconv.Itoa(limitArg+1)

	batch := &pgx.Batch{}
	batch.Queue(`SELECT count(*) FROM `+from, queryArgs...)
	batch.Queue(query, append(queryArgs, page.Limit, page.Offset)...)

	results := db.SendBatch(context.Background(), batch)
	defer results.Close()

	rows, err := results.Query()
	if err != nil {
		return err
	}
	if err := scanFirst(rows, &page.Total); err != nil {
		return err
	}

	rows, err = results.Query()
	if err != nil {
		return err
	}
	return pgxscan.ScanAll(items, rows)
}

// mapNotFound translates pgx's no-rows error into the domain sentinel so
// callers outside this package never import pgx for the check.
func mapNotFound(err error) error {
	if pgxscan.NotFound(err) {
		return domain.ErrNotFound
	}
	return err
}
