package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookmarket/internal/apperr"
	"bookmarket/internal/platform/crypto"
)

type Service struct {
	repo     Repository
	cities   CityLookup
	secret   string
	tokenTTL time.Duration
	onDelete []func(ctx context.Context, userID string) error
}

type Option func(*Service)

// WithDeleteHook runs fn after a user is deleted, for stores that do not
// cascade the delete themselves.
func WithDeleteHook(fn func(ctx context.Context, userID string) error) Option {
	return func(s *Service) { s.onDelete = append(s.onDelete, fn) }
}

func NewService(repo Repository, cities CityLookup, secret string, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{repo: repo, cities: cities, secret: secret, tokenTTL: tokenTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Profile, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return Profile{}, apperr.Conflictf("email %s is already registered", email)
	} else if !apperr.IsNotFound(err) {
		return Profile{}, err
	}

	city, err := s.cities.CityByName(ctx, req.City)
	if err != nil {
		return Profile{}, err
	}

	hashed, err := crypto.HashPassword(req.Password)
	if err != nil {
		return Profile{}, err
	}

	u := &User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Password:  hashed,
		CityID:    city.ID,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return Profile{}, err
	}
	return toProfile(*u, city.Name), nil
}

// Login checks the credentials and issues an access token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !apperr.IsNotFound(err) {
		return Token{}, err
	}
	if err != nil || !crypto.VerifyPassword(u.Password, password) {
		return Token{}, apperr.Unauthenticated("invalid email or password")
	}

	token, _, err := crypto.GenerateToken(s.secret, u.ID, s.tokenTTL)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return s.profile(ctx, u)
}

func (s *Service) List(ctx context.Context) ([]Profile, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(users))
	for _, u := range users {
		p, err := s.profile(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Update applies a partial update. Users may only edit themselves.
func (s *Service) Update(ctx context.Context, actorID, id string, req UpdateRequest) (Profile, error) {
	if actorID != id {
		return Profile{}, apperr.Forbidden("you can only update your own account")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.City != nil {
		city, err := s.cities.CityByName(ctx, *req.City)
		if err != nil {
			return Profile{}, err
		}
		u.CityID = city.ID
	}
	if req.Password != nil {
		if u.Password, err = crypto.HashPassword(*req.Password); err != nil {
			return Profile{}, err
		}
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return Profile{}, err
	}
	return s.profile(ctx, u)
}

func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if actorID != id {
		return apperr.Forbidden("you can only delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, fn := range s.onDelete {
		if err := fn(ctx, id); err != nil {
			return fmt.Errorf("clean up after user %s: %w", id, err)
		}
	}
	return nil
}

func (s *Service) profile(ctx context.Context, u User) (Profile, error) {
	city, err := s.cities.GetCity(ctx, u.CityID)
	if err != nil && !apperr.IsNotFound(err) {
		return Profile{}, err
	}
	return toProfile(u, city.Name), nil
}

func toProfile(u User, city string) Profile {
	return Profile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		City:      city,
	}
}
