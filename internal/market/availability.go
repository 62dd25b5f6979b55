package market

import (
	"context"

	"bookmarket/internal/apperr"
	"bookmarket/internal/listing"

	"github.com/shopspring/decimal"
)

// Availability says how a book can currently be acquired. A book may be for
// sale and for exchange at the same time.
type Availability struct {
	ForSale     bool             `json:"for_sale"`
	Price       *decimal.Decimal `json:"price"`
	ForExchange bool             `json:"for_exchange"`
}

// Listed reports whether the book has any active listing.
func (a Availability) Listed() bool { return a.ForSale || a.ForExchange }

// BookDetails is a book annotated with its resolved availability.
type BookDetails struct {
	listing.Book
	Availability
}

// Resolver derives Availability from the active listings in a store.
type Resolver struct {
	store listing.Store
}

func NewResolver(store listing.Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, bookID string) (Availability, error) {
	var a Availability

	sale, err := r.store.FindActiveSale(ctx, bookID)
	switch {
	case err == nil:
		price := sale.Price
		a.ForSale = true
		a.Price = &price
	case !apperr.IsNotFound(err):
		return Availability{}, err
	}

	_, err = r.store.FindActiveExchange(ctx, bookID)
	switch {
	case err == nil:
		a.ForExchange = true
	case !apperr.IsNotFound(err):
		return Availability{}, err
	}
	return a, nil
}

// Details loads the book and resolves its availability.
func (r *Resolver) Details(ctx context.Context, bookID string) (BookDetails, error) {
	book, err := r.store.GetBook(ctx, bookID)
	if err != nil {
		return BookDetails{}, err
	}
	return r.annotate(ctx, book)
}

func (r *Resolver) annotate(ctx context.Context, book listing.Book) (BookDetails, error) {
	a, err := r.Resolve(ctx, book.ID)
	if err != nil {
		return BookDetails{}, err
	}
	return BookDetails{Book: book, Availability: a}, nil
}
