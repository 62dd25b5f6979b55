package listing

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"bookmarket/internal/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is a Store kept in process memory. A single RWMutex serializes
// writers, which makes every check-then-act below atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	books     map[string]Book
	bookOrder []string
	sales     []Sale
	exchanges []Exchange
	now       func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for date_published.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		books: make(map[string]Book),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) CreateBook(ctx context.Context, b *Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, exists := s.books[b.ID]; exists {
		return apperr.Conflictf("book %s already exists", b.ID)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	s.books[b.ID] = *b
	s.bookOrder = append(s.bookOrder, b.ID)
	return nil
}

func (s *MemoryStore) GetBook(ctx context.Context, id string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return Book{}, apperr.NotFoundf("book %s not found", id)
	}
	return b, nil
}

func (s *MemoryStore) UpdateBook(ctx context.Context, b Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.books[b.ID]
	if !ok {
		return apperr.NotFoundf("book %s not found", b.ID)
	}
	cur.Name = b.Name
	cur.AuthorID = b.AuthorID
	cur.GenreID = b.GenreID
	cur.Edition = b.Edition
	cur.PreservationLevel = b.PreservationLevel
	s.books[b.ID] = cur
	return nil
}

// DeleteBook drops the book together with its sales and offered exchanges.
// Exchanges that received the book keep their record with the reference cleared.
func (s *MemoryStore) DeleteBook(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return apperr.NotFoundf("book %s not found", id)
	}
	delete(s.books, id)
	s.bookOrder = slices.DeleteFunc(s.bookOrder, func(bookID string) bool { return bookID == id })
	s.sales = slices.DeleteFunc(s.sales, func(sale Sale) bool { return sale.BookID == id })
	s.exchanges = slices.DeleteFunc(s.exchanges, func(e Exchange) bool { return e.BookOfferedID == id })
	for i := range s.exchanges {
		if ref := s.exchanges[i].BookReturnedID; ref != nil && *ref == id {
			s.exchanges[i].BookReturnedID = nil
		}
	}
	return nil
}

// DeleteOwner removes everything a deleted user leaves behind: their books,
// with the same cascade as DeleteBook, and their buyer reference on sales.
// Postgres does the same through the foreign keys on books and sales.
func (s *MemoryStore) DeleteOwner(ctx context.Context, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]bool)
	for id, b := range s.books {
		if b.OwnerID == ownerID {
			removed[id] = true
			delete(s.books, id)
		}
	}
	s.bookOrder = slices.DeleteFunc(s.bookOrder, func(id string) bool { return removed[id] })
	s.sales = slices.DeleteFunc(s.sales, func(sale Sale) bool { return removed[sale.BookID] })
	s.exchanges = slices.DeleteFunc(s.exchanges, func(e Exchange) bool { return removed[e.BookOfferedID] })
	for i := range s.exchanges {
		if ref := s.exchanges[i].BookReturnedID; ref != nil && removed[*ref] {
			s.exchanges[i].BookReturnedID = nil
		}
	}
	for i := range s.sales {
		if ref := s.sales[i].BuyerID; ref != nil && *ref == ownerID {
			s.sales[i].BuyerID = nil
		}
	}
	return nil
}

func (s *MemoryStore) BooksOwnedBy(ctx context.Context, ownerID string) iter.Seq2[Book, error] {
	return func(yield func(Book, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(Book{}, err)
			return
		}
		s.mu.RLock()
		var owned []Book
		for _, id := range s.bookOrder {
			if b := s.books[id]; b.OwnerID == ownerID {
				owned = append(owned, b)
			}
		}
		s.mu.RUnlock()

		for _, b := range owned {
			if !yield(b, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) CreateSale(ctx context.Context, bookID string, price decimal.Decimal) (Sale, error) {
	if err := ctx.Err(); err != nil {
		return Sale{}, err
	}
	if err := ValidatePrice(price); err != nil {
		return Sale{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[bookID]; !ok {
		return Sale{}, apperr.NotFoundf("book %s not found", bookID)
	}
	for _, sale := range s.sales {
		if sale.BookID == bookID && sale.Active() {
			return Sale{}, apperr.Conflictf("book %s is already listed for sale", bookID)
		}
	}
	sale := Sale{
		ID:            uuid.NewString(),
		BookID:        bookID,
		Status:        StatusAvailable,
		DatePublished: s.now(),
		Price:         price,
	}
	s.sales = append(s.sales, sale)
	return sale, nil
}

func (s *MemoryStore) FindActiveSale(ctx context.Context, bookID string) (Sale, error) {
	return s.findSale(ctx, bookID, Sale.Active, "no active sale for book %s")
}

func (s *MemoryStore) LatestSale(ctx context.Context, bookID string) (Sale, error) {
	return s.findSale(ctx, bookID, func(Sale) bool { return true }, "book %s has never been listed for sale")
}

func (s *MemoryStore) findSale(ctx context.Context, bookID string, match func(Sale) bool, notFound string) (Sale, error) {
	if err := ctx.Err(); err != nil {
		return Sale{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.sales) - 1; i >= 0; i-- {
		if sale := s.sales[i]; sale.BookID == bookID && match(sale) {
			return sale.clone(), nil
		}
	}
	return Sale{}, apperr.NotFoundf(notFound, bookID)
}

func (s *MemoryStore) SalesByStatus(ctx context.Context, status Status) iter.Seq2[Sale, error] {
	return s.saleSeq(ctx, false, func(sale Sale) bool { return sale.Status == status })
}

func (s *MemoryStore) SalesForBook(ctx context.Context, bookID string) iter.Seq2[Sale, error] {
	return s.saleSeq(ctx, true, func(sale Sale) bool { return sale.BookID == bookID })
}

func (s *MemoryStore) saleSeq(ctx context.Context, newestFirst bool, match func(Sale) bool) iter.Seq2[Sale, error] {
	return func(yield func(Sale, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(Sale{}, err)
			return
		}
		s.mu.RLock()
		var matched []Sale
		for _, sale := range s.sales {
			if match(sale) {
				matched = append(matched, sale.clone())
			}
		}
		s.mu.RUnlock()

		if newestFirst {
			slices.Reverse(matched)
		}
		for _, sale := range matched {
			if !yield(sale, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) SwapSale(ctx context.Context, expected Status, next Sale) (Sale, error) {
	if err := ctx.Err(); err != nil {
		return Sale{}, err
	}
	if !SaleTransitionAllowed(expected, next.Status) {
		return Sale{}, apperr.Conflictf("sale cannot move from %s to %s", expected, next.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.sales, func(sale Sale) bool { return sale.ID == next.ID })
	if i < 0 {
		return Sale{}, apperr.NotFoundf("sale %s not found", next.ID)
	}
	cur := s.sales[i]
	if cur.Status != expected {
		return Sale{}, apperr.Conflictf("sale %s is %s, not %s", cur.ID, cur.Status, expected)
	}
	cur.BuyerID = cloneString(next.BuyerID)
	cur.Status = next.Status
	cur.DateSold = cloneTime(next.DateSold)
	s.sales[i] = cur
	return cur.clone(), nil
}

func (s *MemoryStore) CreateExchange(ctx context.Context, bookID string) (Exchange, error) {
	if err := ctx.Err(); err != nil {
		return Exchange{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[bookID]; !ok {
		return Exchange{}, apperr.NotFoundf("book %s not found", bookID)
	}
	for _, e := range s.exchanges {
		if e.BookOfferedID == bookID && ExchangeOpen(e.Status) {
			return Exchange{}, apperr.Conflictf("book %s already has an open exchange", bookID)
		}
	}
	e := Exchange{
		ID:            uuid.NewString(),
		BookOfferedID: bookID,
		Status:        StatusAvailable,
		DatePublished: s.now(),
	}
	s.exchanges = append(s.exchanges, e)
	return e, nil
}

func (s *MemoryStore) FindActiveExchange(ctx context.Context, bookID string) (Exchange, error) {
	return s.findExchange(ctx, bookID, Exchange.Active, "no active exchange for book %s")
}

func (s *MemoryStore) LatestExchange(ctx context.Context, bookID string) (Exchange, error) {
	return s.findExchange(ctx, bookID, func(Exchange) bool { return true }, "book %s has never been listed for exchange")
}

func (s *MemoryStore) findExchange(ctx context.Context, bookID string, match func(Exchange) bool, notFound string) (Exchange, error) {
	if err := ctx.Err(); err != nil {
		return Exchange{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.exchanges) - 1; i >= 0; i-- {
		if e := s.exchanges[i]; e.BookOfferedID == bookID && match(e) {
			return e.clone(), nil
		}
	}
	return Exchange{}, apperr.NotFoundf(notFound, bookID)
}

func (s *MemoryStore) ExchangesByStatus(ctx context.Context, status Status) iter.Seq2[Exchange, error] {
	return s.exchangeSeq(ctx, false, func(e Exchange) bool { return e.Status == status })
}

func (s *MemoryStore) ExchangesForBook(ctx context.Context, bookID string) iter.Seq2[Exchange, error] {
	return s.exchangeSeq(ctx, true, func(e Exchange) bool { return e.BookOfferedID == bookID })
}

func (s *MemoryStore) exchangeSeq(ctx context.Context, newestFirst bool, match func(Exchange) bool) iter.Seq2[Exchange, error] {
	return func(yield func(Exchange, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(Exchange{}, err)
			return
		}
		s.mu.RLock()
		var matched []Exchange
		for _, e := range s.exchanges {
			if match(e) {
				matched = append(matched, e.clone())
			}
		}
		s.mu.RUnlock()

		if newestFirst {
			slices.Reverse(matched)
		}
		for _, e := range matched {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) SwapExchange(ctx context.Context, expected Status, next Exchange) (Exchange, error) {
	if err := ctx.Err(); err != nil {
		return Exchange{}, err
	}
	if !ExchangeTransitionAllowed(expected, next.Status) {
		return Exchange{}, apperr.Conflictf("exchange cannot move from %s to %s", expected, next.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.exchanges, func(e Exchange) bool { return e.ID == next.ID })
	if i < 0 {
		return Exchange{}, apperr.NotFoundf("exchange %s not found", next.ID)
	}
	cur := s.exchanges[i]
	if cur.Status != expected {
		return Exchange{}, apperr.Conflictf("exchange %s is %s, not %s", cur.ID, cur.Status, expected)
	}
	if next.BookReturnedID != nil {
		if _, ok := s.books[*next.BookReturnedID]; !ok {
			return Exchange{}, apperr.NotFoundf("book %s not found", *next.BookReturnedID)
		}
	}
	cur.BookReturnedID = cloneString(next.BookReturnedID)
	cur.Status = next.Status
	cur.DateExchanged = cloneTime(next.DateExchanged)
	s.exchanges[i] = cur
	return cur.clone(), nil
}
