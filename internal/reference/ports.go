package reference

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=reference

// Repository reports missing rows as apperr not-found errors and duplicate
// names as apperr conflicts.
type Repository interface {
	ListCities(ctx context.Context) ([]City, error)
	GetCity(ctx context.Context, id string) (City, error)
	CityByName(ctx context.Context, name string) (City, error)
	CreateCity(ctx context.Context, c *City) error

	ListAuthors(ctx context.Context) ([]Author, error)
	GetAuthor(ctx context.Context, id string) (Author, error)
	CreateAuthor(ctx context.Context, a *Author) error

	ListGenres(ctx context.Context) ([]Genre, error)
	GetGenre(ctx context.Context, id string) (Genre, error)
	GenreByName(ctx context.Context, name string) (Genre, error)
	CreateGenre(ctx context.Context, g *Genre) error
}
