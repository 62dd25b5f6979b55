package reference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookmarket/internal/apperr"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresRepo) ListCities(ctx context.Context) ([]City, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, `SELECT id, name FROM cities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[City])
}

func (r *PostgresRepo) GetCity(ctx context.Context, id string) (City, error) {
	var c City
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `SELECT id, name FROM cities WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	return c, notFound(err, "city "+id)
}

func (r *PostgresRepo) CityByName(ctx context.Context, name string) (City, error) {
	var c City
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `SELECT id, name FROM cities WHERE lower(name) = lower($1)`, name).Scan(&c.ID, &c.Name)
	return c, notFound(err, fmt.Sprintf("city %q", name))
}

func (r *PostgresRepo) CreateCity(ctx context.Context, c *City) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `INSERT INTO cities (name) VALUES ($1) RETURNING id`, c.Name).Scan(&c.ID)
	return duplicate(err, fmt.Sprintf("city %q", c.Name))
}

func (r *PostgresRepo) ListAuthors(ctx context.Context) ([]Author, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, `SELECT id, first_name, last_name FROM authors ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Author])
}

func (r *PostgresRepo) GetAuthor(ctx context.Context, id string) (Author, error) {
	var a Author
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `SELECT id, first_name, last_name FROM authors WHERE id = $1`, id).
		Scan(&a.ID, &a.FirstName, &a.LastName)
	return a, notFound(err, "author "+id)
}

func (r *PostgresRepo) CreateAuthor(ctx context.Context, a *Author) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `INSERT INTO authors (first_name, last_name) VALUES ($1, $2) RETURNING id`,
		a.FirstName, a.LastName).Scan(&a.ID)
	return duplicate(err, fmt.Sprintf("author %q", a.FullName()))
}

func (r *PostgresRepo) ListGenres(ctx context.Context) ([]Genre, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, `SELECT id, name FROM genres ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Genre])
}

func (r *PostgresRepo) GetGenre(ctx context.Context, id string) (Genre, error) {
	var g Genre
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `SELECT id, name FROM genres WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	return g, notFound(err, "genre "+id)
}

func (r *PostgresRepo) GenreByName(ctx context.Context, name string) (Genre, error) {
	var g Genre
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `SELECT id, name FROM genres WHERE lower(name) = lower($1)`, name).Scan(&g.ID, &g.Name)
	return g, notFound(err, fmt.Sprintf("genre %q", name))
}

func (r *PostgresRepo) CreateGenre(ctx context.Context, g *Genre) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(timeoutCtx, `INSERT INTO genres (name) VALUES ($1) RETURNING id`, g.Name).Scan(&g.ID)
	return duplicate(err, fmt.Sprintf("genre %q", g.Name))
}

func notFound(err error, what string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.Is(err, pgx.ErrNoRows) ||
		(errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation) {
		return apperr.NotFoundf("%s not found", what)
	}
	return err
}

func duplicate(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperr.Conflictf("%s already exists", what)
	}
	return err
}
