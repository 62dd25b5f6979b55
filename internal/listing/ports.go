package listing

import (
	"context"
	"iter"

	"github.com/shopspring/decimal"
)

// Store is the contract for book and listing storage. All writes are single
// record; the only cross-record rule is the one-live-listing-per-book check on
// CreateSale and CreateExchange.
//
// SwapSale and SwapExchange are compare-and-swap writes: the mutable fields of
// next are saved only if the stored record still has the expected status,
// otherwise an apperr conflict is returned.
//
// Iterators are lazy and restartable; each range reads current data.
type Store interface {
	CreateBook(ctx context.Context, b *Book) error
	GetBook(ctx context.Context, id string) (Book, error)
	UpdateBook(ctx context.Context, b Book) error
	DeleteBook(ctx context.Context, id string) error
	BooksOwnedBy(ctx context.Context, ownerID string) iter.Seq2[Book, error]

	CreateSale(ctx context.Context, bookID string, price decimal.Decimal) (Sale, error)
	FindActiveSale(ctx context.Context, bookID string) (Sale, error)
	LatestSale(ctx context.Context, bookID string) (Sale, error)
	SalesByStatus(ctx context.Context, status Status) iter.Seq2[Sale, error]
	SalesForBook(ctx context.Context, bookID string) iter.Seq2[Sale, error]
	SwapSale(ctx context.Context, expected Status, next Sale) (Sale, error)

	CreateExchange(ctx context.Context, bookID string) (Exchange, error)
	FindActiveExchange(ctx context.Context, bookID string) (Exchange, error)
	LatestExchange(ctx context.Context, bookID string) (Exchange, error)
	ExchangesByStatus(ctx context.Context, status Status) iter.Seq2[Exchange, error]
	ExchangesForBook(ctx context.Context, bookID string) iter.Seq2[Exchange, error]
	SwapExchange(ctx context.Context, expected Status, next Exchange) (Exchange, error)

	Ping(ctx context.Context) error
}
