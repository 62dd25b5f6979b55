package market

import (
	"strings"
	"unicode/utf8"

	"bookmarket/internal/apperr"
	"bookmarket/internal/listing"

	"github.com/shopspring/decimal"
)

const (
	maxNameLength    = 100
	maxEditionLength = 4
	minPreservation  = 1
	maxPreservation  = 10
)

// ListRequest selects which listings to open for a book. Price is required
// with ForSale and rejected without it.
type ListRequest struct {
	ForSale     bool             `json:"for_sale"`
	Price       *decimal.Decimal `json:"price" validate:"omitempty,gt=0"`
	ForExchange bool             `json:"for_exchange"`
}

func (l ListRequest) validate() error {
	switch {
	case l.ForSale && l.Price == nil:
		return apperr.Validation("price is required when for_sale is set")
	case !l.ForSale && l.Price != nil:
		return apperr.Validation("price is only accepted together with for_sale")
	case l.ForSale:
		return listing.ValidatePrice(*l.Price)
	}
	return nil
}

// NewBook is the payload of POST /books.
type NewBook struct {
	Name              string `json:"name" validate:"notblank,max=100"`
	AuthorID          string `json:"author_id" validate:"required"`
	GenreID           string `json:"genre_id" validate:"required"`
	Edition           string `json:"edition" validate:"max=4"`
	PreservationLevel int    `json:"preservation_level" validate:"min=1,max=10"`
	ListRequest
}

func (b *NewBook) validate() error {
	b.Name = strings.TrimSpace(b.Name)
	b.Edition = strings.TrimSpace(b.Edition)
	if err := validateName(b.Name); err != nil {
		return err
	}
	if b.AuthorID == "" {
		return apperr.Validation("author_id is required")
	}
	if b.GenreID == "" {
		return apperr.Validation("genre_id is required")
	}
	if err := validateEdition(b.Edition); err != nil {
		return err
	}
	if err := validatePreservation(b.PreservationLevel); err != nil {
		return err
	}
	return b.ListRequest.validate()
}

// BookUpdate carries the fields of PUT /books/{id}; nil fields are left as they are.
type BookUpdate struct {
	Name              *string `json:"name" validate:"omitempty,notblank,max=100"`
	AuthorID          *string `json:"author_id" validate:"omitempty,notblank"`
	GenreID           *string `json:"genre_id" validate:"omitempty,notblank"`
	Edition           *string `json:"edition" validate:"omitempty,max=4"`
	PreservationLevel *int    `json:"preservation_level" validate:"omitempty,min=1,max=10"`
}

type ProposeRequest struct {
	BookID string `json:"book_id" validate:"required"`
}

func validateName(name string) error {
	if name == "" {
		return apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return apperr.Validationf("name must be at most %d characters", maxNameLength)
	}
	return nil
}

func validateEdition(edition string) error {
	if utf8.RuneCountInString(edition) > maxEditionLength {
		return apperr.Validationf("edition must be at most %d characters", maxEditionLength)
	}
	return nil
}

func validatePreservation(level int) error {
	if level < minPreservation || level > maxPreservation {
		return apperr.Validationf("preservation_level must be between %d and %d", minPreservation, maxPreservation)
	}
	return nil
}
