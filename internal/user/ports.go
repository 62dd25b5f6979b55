package user

import (
	"context"

	"bookmarket/internal/reference"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=user

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
}

// CityLookup resolves the city a user lives in.
type CityLookup interface {
	GetCity(ctx context.Context, id string) (reference.City, error)
	CityByName(ctx context.Context, name string) (reference.City, error)
}
