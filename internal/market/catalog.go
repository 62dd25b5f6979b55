package market

import (
	"context"
	"iter"

	"bookmarket/internal/apperr"
	"bookmarket/internal/listing"
)

// Catalog builds the read views over listings. Both views are lazy: the
// store is read as the sequence is ranged over, and ranging again re-reads it.
type Catalog struct {
	store    listing.Store
	resolver *Resolver
}

func NewCatalog(store listing.Store) *Catalog {
	return &Catalog{store: store, resolver: NewResolver(store)}
}

// ListAvailable yields every book with an active sale or exchange, once each.
func (c *Catalog) ListAvailable(ctx context.Context) iter.Seq2[BookDetails, error] {
	return func(yield func(BookDetails, error) bool) {
		seen := make(map[string]struct{})

		// emit reports whether ranging should continue.
		emit := func(bookID string) bool {
			if _, ok := seen[bookID]; ok {
				return true
			}
			seen[bookID] = struct{}{}

			details, err := c.resolver.Details(ctx, bookID)
			switch {
			case apperr.IsNotFound(err):
				return true
			case err != nil:
				yield(BookDetails{}, err)
				return false
			case !details.Listed():
				// Settled between the scan and the lookup.
				return true
			}
			return yield(details, nil)
		}

		for sale, err := range c.store.SalesByStatus(ctx, listing.StatusAvailable) {
			if err != nil {
				yield(BookDetails{}, err)
				return
			}
			if !emit(sale.BookID) {
				return
			}
		}
		for ex, err := range c.store.ExchangesByStatus(ctx, listing.StatusAvailable) {
			if err != nil {
				yield(BookDetails{}, err)
				return
			}
			if !emit(ex.BookOfferedID) {
				return
			}
		}
	}
}

// ListOwnedBy yields all books owned by userID, listed or not.
func (c *Catalog) ListOwnedBy(ctx context.Context, userID string) iter.Seq2[BookDetails, error] {
	return func(yield func(BookDetails, error) bool) {
		for book, err := range c.store.BooksOwnedBy(ctx, userID) {
			if err != nil {
				yield(BookDetails{}, err)
				return
			}
			details, err := c.resolver.annotate(ctx, book)
			if err != nil {
				yield(BookDetails{}, err)
				return
			}
			if !yield(details, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[BookDetails, error]) ([]BookDetails, error) {
	books := []BookDetails{}
	for b, err := range seq {
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}
