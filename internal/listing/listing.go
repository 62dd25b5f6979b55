// Package listing owns Book, Sale and Exchange records and the rules that keep
// at most one live listing of each kind per book.
package listing

import (
	"time"

	"bookmarket/internal/apperr"

	"github.com/shopspring/decimal"
)

// Prices are stored as NUMERIC(10, 2).
const (
	priceScale  = 2
	priceDigits = 10
)

var maxPrice = decimal.New(1, priceDigits-priceScale)

// ValidatePrice accepts positive prices with at most two decimal places and
// ten digits in total, so every store keeps exactly the value it was given.
func ValidatePrice(price decimal.Decimal) error {
	switch {
	case !price.IsPositive():
		return apperr.Validation("price must be greater than zero")
	case !price.Equal(price.Truncate(priceScale)):
		return apperr.Validationf("price must have at most %d decimal places", priceScale)
	case !price.LessThan(maxPrice):
		return apperr.Validationf("price must be less than %s", maxPrice)
	}
	return nil
}

// Book is the root entity. OwnerID never changes after creation.
type Book struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	OwnerID           string    `json:"owner_id"`
	AuthorID          string    `json:"author_id"`
	GenreID           string    `json:"genre_id"`
	Edition           string    `json:"edition"`
	PreservationLevel int       `json:"preservation_level"`
	CreatedAt         time.Time `json:"created_at"`
}

// Sale is a book offered for a fixed price.
type Sale struct {
	ID            string          `json:"id"`
	BookID        string          `json:"book_id"`
	BuyerID       *string         `json:"buyer_id"`
	Status        Status          `json:"status"`
	DatePublished time.Time       `json:"date_published"`
	DateSold      *time.Time      `json:"date_sold"`
	Price         decimal.Decimal `json:"price"`
}

// Active reports whether the sale can still be bought.
func (s Sale) Active() bool { return s.Status == StatusAvailable }

// Exchange is a book offered in exchange for another book.
type Exchange struct {
	ID             string     `json:"id"`
	BookOfferedID  string     `json:"book_offered_id"`
	BookReturnedID *string    `json:"book_returned_id"`
	Status         Status     `json:"status"`
	DatePublished  time.Time  `json:"date_published"`
	DateExchanged  *time.Time `json:"date_exchanged"`
}

func (e Exchange) Active() bool { return e.Status == StatusAvailable }

func (s Sale) clone() Sale {
	s.BuyerID = cloneString(s.BuyerID)
	s.DateSold = cloneTime(s.DateSold)
	return s
}

func (e Exchange) clone() Exchange {
	e.BookReturnedID = cloneString(e.BookReturnedID)
	e.DateExchanged = cloneTime(e.DateExchanged)
	return e
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
