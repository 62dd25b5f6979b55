package reference

import (
	"context"
	"strings"

	"bookmarket/internal/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Cities(ctx context.Context) ([]City, error) {
	return s.repo.ListCities(ctx)
}

func (s *Service) CityByName(ctx context.Context, name string) (City, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return City{}, apperr.Validation("city is required")
	}
	return s.repo.CityByName(ctx, name)
}

func (s *Service) GetCity(ctx context.Context, id string) (City, error) {
	return s.repo.GetCity(ctx, id)
}

func (s *Service) Authors(ctx context.Context) ([]Author, error) {
	return s.repo.ListAuthors(ctx)
}

func (s *Service) GetAuthor(ctx context.Context, id string) (Author, error) {
	return s.repo.GetAuthor(ctx, id)
}

func (s *Service) CreateAuthor(ctx context.Context, req CreateAuthorRequest) (Author, error) {
	a := &Author{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	if a.FirstName == "" || a.LastName == "" {
		return Author{}, apperr.Validation("first_name and last_name are required")
	}
	if err := s.repo.CreateAuthor(ctx, a); err != nil {
		return Author{}, err
	}
	return *a, nil
}

func (s *Service) Genres(ctx context.Context) ([]Genre, error) {
	return s.repo.ListGenres(ctx)
}

func (s *Service) GetGenre(ctx context.Context, id string) (Genre, error) {
	return s.repo.GetGenre(ctx, id)
}

func (s *Service) CreateGenre(ctx context.Context, req CreateGenreRequest) (Genre, error) {
	g := &Genre{Name: strings.TrimSpace(req.Name)}
	if g.Name == "" {
		return Genre{}, apperr.Validation("name is required")
	}
	if err := s.repo.CreateGenre(ctx, g); err != nil {
		return Genre{}, err
	}
	return *g, nil
}

// EnsureCity returns the city with this name, creating it when absent.
func (s *Service) EnsureCity(ctx context.Context, name string) (City, error) {
	c, err := s.repo.CityByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !apperr.IsNotFound(err) {
		return City{}, err
	}
	c = City{Name: name}
	if err := s.repo.CreateCity(ctx, &c); err != nil {
		return City{}, err
	}
	return c, nil
}

// EnsureGenre returns the genre with this name, creating it when absent.
func (s *Service) EnsureGenre(ctx context.Context, name string) (Genre, error) {
	g, err := s.repo.GenreByName(ctx, name)
	if err == nil {
		return g, nil
	}
	if !apperr.IsNotFound(err) {
		return Genre{}, err
	}
	return s.CreateGenre(ctx, CreateGenreRequest{Name: name})
}
