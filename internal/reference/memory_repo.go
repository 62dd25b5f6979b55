package reference

import (
	"context"
	"strings"
	"sync"

	"bookmarket/internal/apperr"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	cities  []City
	authors []Author
	genres  []Genre
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) ListCities(ctx context.Context) ([]City, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]City(nil), r.cities...), nil
}

func (r *MemoryRepo) GetCity(ctx context.Context, id string) (City, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.cities {
		if c.ID == id {
			return c, nil
		}
	}
	return City{}, apperr.NotFoundf("city %s not found", id)
}

func (r *MemoryRepo) CityByName(ctx context.Context, name string) (City, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.cities {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return City{}, apperr.NotFoundf("city %q not found", name)
}

func (r *MemoryRepo) CreateCity(ctx context.Context, c *City) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.cities {
		if strings.EqualFold(existing.Name, c.Name) {
			return apperr.Conflictf("city %q already exists", c.Name)
		}
	}
	c.ID = uuid.NewString()
	r.cities = append(r.cities, *c)
	return nil
}

func (r *MemoryRepo) ListAuthors(ctx context.Context) ([]Author, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Author(nil), r.authors...), nil
}

func (r *MemoryRepo) GetAuthor(ctx context.Context, id string) (Author, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.authors {
		if a.ID == id {
			return a, nil
		}
	}
	return Author{}, apperr.NotFoundf("author %s not found", id)
}

func (r *MemoryRepo) CreateAuthor(ctx context.Context, a *Author) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.authors {
		if strings.EqualFold(existing.FirstName, a.FirstName) && strings.EqualFold(existing.LastName, a.LastName) {
			return apperr.Conflictf("author %q already exists", a.FullName())
		}
	}
	a.ID = uuid.NewString()
	r.authors = append(r.authors, *a)
	return nil
}

func (r *MemoryRepo) ListGenres(ctx context.Context) ([]Genre, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Genre(nil), r.genres...), nil
}

func (r *MemoryRepo) GetGenre(ctx context.Context, id string) (Genre, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.genres {
		if g.ID == id {
			return g, nil
		}
	}
	return Genre{}, apperr.NotFoundf("genre %s not found", id)
}

func (r *MemoryRepo) GenreByName(ctx context.Context, name string) (Genre, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.genres {
		if strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}
	return Genre{}, apperr.NotFoundf("genre %q not found", name)
}

func (r *MemoryRepo) CreateGenre(ctx context.Context, g *Genre) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.genres {
		if strings.EqualFold(existing.Name, g.Name) {
			return apperr.Conflictf("genre %q already exists", g.Name)
		}
	}
	g.ID = uuid.NewString()
	r.genres = append(r.genres, *g)
	return nil
}
