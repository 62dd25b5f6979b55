package listing

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"bookmarket/internal/apperr"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps listings in Postgres. The one-live-listing rule is
// backed by the partial unique indexes in db/migrations.
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

func (r *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresStore) Ping(ctx context.Context) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.Ping(timeoutCtx)
}

type scanner interface {
	Scan(dest ...any) error
}

const bookColumns = `id, name, owner_id, author_id, genre_id, edition, preservation_level, created_at`

func scanBook(row scanner) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Name, &b.OwnerID, &b.AuthorID, &b.GenreID, &b.Edition, &b.PreservationLevel, &b.CreatedAt)
	return b, err
}

func (r *PostgresStore) CreateBook(ctx context.Context, b *Book) error {
	const query = `
	INSERT INTO books (name, owner_id, author_id, genre_id, edition, preservation_level)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, query, b.Name, b.OwnerID, b.AuthorID, b.GenreID, b.Edition, b.PreservationLevel).
		Scan(&b.ID, &b.CreatedAt)
	return translate(err, "book")
}

func (r *PostgresStore) GetBook(ctx context.Context, id string) (Book, error) {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, id))
	if err != nil {
		return Book{}, translate(err, "book "+id)
	}
	return b, nil
}

func (r *PostgresStore) UpdateBook(ctx context.Context, b Book) error {
	const query = `
	UPDATE books
	SET name = $2, author_id = $3, genre_id = $4, edition = $5, preservation_level = $6
	WHERE id = $1
	`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, query, b.ID, b.Name, b.AuthorID, b.GenreID, b.Edition, b.PreservationLevel)
	if err != nil {
		return translate(err, "book "+b.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("book %s not found", b.ID)
	}
	return nil
}

func (r *PostgresStore) DeleteBook(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return translate(err, "book "+id)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("book %s not found", id)
	}
	return nil
}

func (r *PostgresStore) BooksOwnedBy(ctx context.Context, ownerID string) iter.Seq2[Book, error] {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE owner_id = $1 ORDER BY created_at, id`
	return queryEach(r, ctx, scanBook, "book", query, ownerID)
}

const saleColumns = `id, book_id, buyer_id, status, date_published, date_sold, price::text`

func scanSale(row scanner) (Sale, error) {
	var (
		s      Sale
		status string
		price  string
	)
	if err := row.Scan(&s.ID, &s.BookID, &s.BuyerID, &status, &s.DatePublished, &s.DateSold, &price); err != nil {
		return Sale{}, err
	}
	var err error
	if s.Status, err = ParseStatus(status); err != nil {
		return Sale{}, err
	}
	if s.Price, err = decimal.NewFromString(price); err != nil {
		return Sale{}, fmt.Errorf("sale %s price: %w", s.ID, err)
	}
	return s, nil
}

func (r *PostgresStore) CreateSale(ctx context.Context, bookID string, price decimal.Decimal) (Sale, error) {
	if err := ValidatePrice(price); err != nil {
		return Sale{}, err
	}
	const query = `
	INSERT INTO sales (book_id, status, price)
	VALUES ($1, $2, $3::numeric)
	RETURNING ` + saleColumns
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	sale, err := scanSale(r.db.QueryRow(timeoutCtx, query, bookID, StatusAvailable.String(), price.String()))
	if err != nil {
		if isUniqueViolation(err) {
			return Sale{}, apperr.Conflictf("book %s is already listed for sale", bookID)
		}
		return Sale{}, translate(err, "book "+bookID)
	}
	return sale, nil
}

func (r *PostgresStore) FindActiveSale(ctx context.Context, bookID string) (Sale, error) {
	const query = `SELECT ` + saleColumns + ` FROM sales WHERE book_id = $1 AND status = $2`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	sale, err := scanSale(r.db.QueryRow(timeoutCtx, query, bookID, StatusAvailable.String()))
	if err != nil {
		return Sale{}, translate(err, "active sale for book "+bookID)
	}
	return sale, nil
}

func (r *PostgresStore) LatestSale(ctx context.Context, bookID string) (Sale, error) {
	const query = `SELECT ` + saleColumns + ` FROM sales WHERE book_id = $1 ORDER BY seq DESC LIMIT 1`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	sale, err := scanSale(r.db.QueryRow(timeoutCtx, query, bookID))
	if err != nil {
		return Sale{}, translate(err, "sale for book "+bookID)
	}
	return sale, nil
}

func (r *PostgresStore) SalesByStatus(ctx context.Context, status Status) iter.Seq2[Sale, error] {
	const query = `SELECT ` + saleColumns + ` FROM sales WHERE status = $1 ORDER BY seq`
	return queryEach(r, ctx, scanSale, "sale", query, status.String())
}

func (r *PostgresStore) SalesForBook(ctx context.Context, bookID string) iter.Seq2[Sale, error] {
	const query = `SELECT ` + saleColumns + ` FROM sales WHERE book_id = $1 ORDER BY seq DESC`
	return queryEach(r, ctx, scanSale, "sale", query, bookID)
}

func (r *PostgresStore) SwapSale(ctx context.Context, expected Status, next Sale) (Sale, error) {
	if !SaleTransitionAllowed(expected, next.Status) {
		return Sale{}, apperr.Conflictf("sale cannot move from %s to %s", expected, next.Status)
	}
	const query = `
	UPDATE sales
	SET buyer_id = $3, status = $4, date_sold = $5
	WHERE id = $1 AND status = $2
	RETURNING ` + saleColumns
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	sale, err := scanSale(r.db.QueryRow(timeoutCtx, query, next.ID, expected.String(), next.BuyerID, next.Status.String(), next.DateSold))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, r.swapMiss(timeoutCtx, "sales", "sale", next.ID, expected)
	}
	if err != nil {
		return Sale{}, translate(err, "sale "+next.ID)
	}
	return sale, nil
}

const exchangeColumns = `id, book_offered_id, book_returned_id, status, date_published, date_exchanged`

func scanExchange(row scanner) (Exchange, error) {
	var (
		e      Exchange
		status string
	)
	if err := row.Scan(&e.ID, &e.BookOfferedID, &e.BookReturnedID, &status, &e.DatePublished, &e.DateExchanged); err != nil {
		return Exchange{}, err
	}
	var err error
	if e.Status, err = ParseStatus(status); err != nil {
		return Exchange{}, err
	}
	return e, nil
}

func (r *PostgresStore) CreateExchange(ctx context.Context, bookID string) (Exchange, error) {
	const query = `
	INSERT INTO exchanges (book_offered_id, status)
	VALUES ($1, $2)
	RETURNING ` + exchangeColumns
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	e, err := scanExchange(r.db.QueryRow(timeoutCtx, query, bookID, StatusAvailable.String()))
	if err != nil {
		if isUniqueViolation(err) {
			return Exchange{}, apperr.Conflictf("book %s already has an open exchange", bookID)
		}
		return Exchange{}, translate(err, "book "+bookID)
	}
	return e, nil
}

func (r *PostgresStore) FindActiveExchange(ctx context.Context, bookID string) (Exchange, error) {
	const query = `SELECT ` + exchangeColumns + ` FROM exchanges WHERE book_offered_id = $1 AND status = $2`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	e, err := scanExchange(r.db.QueryRow(timeoutCtx, query, bookID, StatusAvailable.String()))
	if err != nil {
		return Exchange{}, translate(err, "active exchange for book "+bookID)
	}
	return e, nil
}

func (r *PostgresStore) LatestExchange(ctx context.Context, bookID string) (Exchange, error) {
	const query = `SELECT ` + exchangeColumns + ` FROM exchanges WHERE book_offered_id = $1 ORDER BY seq DESC LIMIT 1`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	e, err := scanExchange(r.db.QueryRow(timeoutCtx, query, bookID))
	if err != nil {
		return Exchange{}, translate(err, "exchange for book "+bookID)
	}
	return e, nil
}

func (r *PostgresStore) ExchangesByStatus(ctx context.Context, status Status) iter.Seq2[Exchange, error] {
	const query = `SELECT ` + exchangeColumns + ` FROM exchanges WHERE status = $1 ORDER BY seq`
	return queryEach(r, ctx, scanExchange, "exchange", query, status.String())
}

func (r *PostgresStore) ExchangesForBook(ctx context.Context, bookID string) iter.Seq2[Exchange, error] {
	const query = `SELECT ` + exchangeColumns + ` FROM exchanges WHERE book_offered_id = $1 ORDER BY seq DESC`
	return queryEach(r, ctx, scanExchange, "exchange", query, bookID)
}

func (r *PostgresStore) SwapExchange(ctx context.Context, expected Status, next Exchange) (Exchange, error) {
	if !ExchangeTransitionAllowed(expected, next.Status) {
		return Exchange{}, apperr.Conflictf("exchange cannot move from %s to %s", expected, next.Status)
	}
	const query = `
	UPDATE exchanges
	SET book_returned_id = $3, status = $4, date_exchanged = $5
	WHERE id = $1 AND status = $2
	RETURNING ` + exchangeColumns
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	e, err := scanExchange(r.db.QueryRow(timeoutCtx, query, next.ID, expected.String(), next.BookReturnedID, next.Status.String(), next.DateExchanged))
	if errors.Is(err, pgx.ErrNoRows) {
		return Exchange{}, r.swapMiss(timeoutCtx, "exchanges", "exchange", next.ID, expected)
	}
	if err != nil {
		return Exchange{}, translate(err, "exchange "+next.ID)
	}
	return e, nil
}

// swapMiss explains a compare-and-swap that matched no row: either the record
// is gone or another writer moved it first.
func (r *PostgresStore) swapMiss(ctx context.Context, table, kind, id string, expected Status) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM `+table+` WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return translate(err, kind+" "+id)
	}
	return apperr.Conflictf("%s %s is %s, not %s", kind, id, status, expected)
}

// queryEach runs query when the sequence is ranged over. The result is read
// and the connection returned to the pool before the first yield, so callers
// may query the store again from inside the loop.
func queryEach[T any](r *PostgresStore, ctx context.Context, scan func(scanner) (T, error), kind, query string, args ...any) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		items, err := queryAll(r, ctx, scan, kind, query, args...)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for _, v := range items {
			if !yield(v, nil) {
				return
			}
		}
	}
}

func queryAll[T any](r *PostgresStore, ctx context.Context, scan func(scanner) (T, error), kind, query string, args ...any) ([]T, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query, args...)
	if err != nil {
		return nil, translate(err, kind)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
	if err != nil {
		return nil, translate(err, "scan "+kind)
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// translate maps driver errors onto the apperr taxonomy. Unknown errors are
// wrapped and passed through.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFoundf("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Conflictf("%s already exists", what)
		case pgerrcode.ForeignKeyViolation:
			return apperr.NotFoundf("%s references a missing record", what)
		case pgerrcode.InvalidTextRepresentation:
			return apperr.NotFoundf("%s not found", what)
		case pgerrcode.CheckViolation:
			return apperr.Validationf("%s violates %s", what, pgErr.ConstraintName)
		case pgerrcode.NumericValueOutOfRange:
			return apperr.Validationf("%s has a value out of range", what)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
