package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bookmarket/internal/apperr"
	"bookmarket/internal/listing"
	"bookmarket/internal/reference"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *listing.MemoryStore
	engine  *Engine
	catalog *Catalog
	author  reference.Author
	genre   reference.Genre
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	refs := reference.NewService(reference.NewMemoryRepo())
	author, err := refs.CreateAuthor(ctx, reference.CreateAuthorRequest{FirstName: "Ursula", LastName: "Le Guin"})
	require.NoError(t, err)
	genre, err := refs.CreateGenre(ctx, reference.CreateGenreRequest{Name: "Fantasy"})
	require.NoError(t, err)

	store := listing.NewMemoryStore()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return &fixture{
		store:   store,
		engine:  NewEngine(store, refs, opts...),
		catalog: NewCatalog(store),
		author:  author,
		genre:   genre,
	}
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (f *fixture) newBook(name string, list ListRequest) NewBook {
	return NewBook{
		Name:              name,
		AuthorID:          f.author.ID,
		GenreID:           f.genre.ID,
		Edition:           "1st",
		PreservationLevel: 8,
		ListRequest:       list,
	}
}

func (f *fixture) create(t *testing.T, owner, name string, list ListRequest) BookDetails {
	t.Helper()
	b, err := f.engine.CreateBook(context.Background(), owner, f.newBook(name, list))
	require.NoError(t, err)
	return b
}

func TestEngine_SaleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.create(t, "u1", "A Wizard of Earthsea", ListRequest{ForSale: true, Price: price("10.00")})
	assert.True(t, b1.ForSale)
	assert.False(t, b1.ForExchange)
	require.NotNil(t, b1.Price)
	assert.True(t, b1.Price.Equal(decimal.RequireFromString("10.00")))

	sale, err := f.engine.Buy(ctx, b1.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, listing.StatusUnavailable, sale.Status)
	require.NotNil(t, sale.BuyerID)
	assert.Equal(t, "u2", *sale.BuyerID)
	require.NotNil(t, sale.DateSold)
	assert.Equal(t, fixedNow, *sale.DateSold)

	_, err = f.engine.Buy(ctx, b1.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// The seller still owns the sold book.
	got, err := f.engine.Book(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)
	assert.False(t, got.ForSale)
	assert.Nil(t, got.Price)
}

func TestEngine_ExchangeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b2 := f.create(t, "u1", "The Dispossessed", ListRequest{ForExchange: true})
	b3 := f.create(t, "u2", "Solaris", ListRequest{})

	ex, err := f.engine.Propose(ctx, b2.ID, b3.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, listing.StatusPending, ex.Status)
	require.NotNil(t, ex.BookReturnedID)
	assert.Equal(t, b3.ID, *ex.BookReturnedID)
	require.NotNil(t, ex.DateExchanged)

	ex, err = f.engine.Accept(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusAccepted, ex.Status)

	latest, err := f.store.LatestExchange(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusAccepted, latest.Status)

	_, err = f.engine.Decline(ctx, b2.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.engine.Accept(ctx, b2.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestEngine_DeclineIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offered := f.create(t, "u1", "Dune", ListRequest{ForExchange: true})
	returned := f.create(t, "u2", "Hyperion", ListRequest{})

	_, err := f.engine.Accept(ctx, offered.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict, "nothing proposed yet")

	_, err = f.engine.Propose(ctx, offered.ID, returned.ID, "u2")
	require.NoError(t, err)

	ex, err := f.engine.Decline(ctx, offered.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusDeclined, ex.Status)

	_, err = f.engine.Accept(ctx, offered.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.engine.Propose(ctx, offered.ID, returned.ID, "u2")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestEngine_SelfDealingIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	listed := f.create(t, "u1", "Kindred", ListRequest{ForSale: true, Price: price("5"), ForExchange: true})
	unlisted := f.create(t, "u1", "Dawn", ListRequest{})
	other := f.create(t, "u2", "Beloved", ListRequest{})

	for _, id := range []string{listed.ID, unlisted.ID} {
		_, err := f.engine.Buy(ctx, id, "u1")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		_, err = f.engine.Propose(ctx, id, other.ID, "u1")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	}

	_, err := f.engine.Propose(ctx, listed.ID, other.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrForbidden, "returned book must belong to the proposer")
}

func TestEngine_MissingListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, "u1", "Neuromancer", ListRequest{})
	mine := f.create(t, "u2", "Count Zero", ListRequest{})

	_, err := f.engine.Buy(ctx, b.ID, "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.engine.Propose(ctx, b.ID, mine.ID, "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.engine.Accept(ctx, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.Buy(ctx, "missing", "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.engine.Buy(ctx, b.ID, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestEngine_ConcurrentBuysHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "owner", "Snow Crash", ListRequest{ForSale: true, Price: price("12.50")})

	const buyers = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.Buy(ctx, b.ID, fmt.Sprintf("buyer-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, buyers-1, conflicts)
}

func TestEngine_ConcurrentAcceptAndDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	offered := f.create(t, "u1", "Ubik", ListRequest{ForExchange: true})
	returned := f.create(t, "u2", "Valis", ListRequest{})
	_, err := f.engine.Propose(ctx, offered.ID, returned.ID, "u2")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = f.engine.Accept(ctx, offered.ID)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = f.engine.Decline(ctx, offered.ID)
	}()
	wg.Wait()

	failed := 0
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, apperr.ErrConflict)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestEngine_CreateBookValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*NewBook)
		kind   error
	}{
		{"blank name", func(b *NewBook) { b.Name = "   " }, apperr.ErrValidation},
		{"long edition", func(b *NewBook) { b.Edition = "first" }, apperr.ErrValidation},
		{"preservation too low", func(b *NewBook) { b.PreservationLevel = 0 }, apperr.ErrValidation},
		{"preservation too high", func(b *NewBook) { b.PreservationLevel = 11 }, apperr.ErrValidation},
		{"sale without price", func(b *NewBook) { b.ForSale = true }, apperr.ErrValidation},
		{"zero price", func(b *NewBook) { b.ForSale, b.Price = true, price("0") }, apperr.ErrValidation},
		{"price without sale", func(b *NewBook) { b.Price = price("3") }, apperr.ErrValidation},
		{"sub-cent price", func(b *NewBook) { b.ForSale, b.Price = true, price("10.005") }, apperr.ErrValidation},
		{"price too large", func(b *NewBook) { b.ForSale, b.Price = true, price("123456789012345.99") }, apperr.ErrValidation},
		{"unknown author", func(b *NewBook) { b.AuthorID = "nope" }, apperr.ErrNotFound},
		{"unknown genre", func(b *NewBook) { b.GenreID = "nope" }, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.newBook("Lagoon", ListRequest{})
			tt.mutate(&req)
			_, err := f.engine.CreateBook(ctx, "u1", req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	_, err := f.engine.CreateBook(ctx, "", f.newBook("Lagoon", ListRequest{}))
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	books, err := Collect(f.catalog.ListOwnedBy(ctx, "u1"))
	require.NoError(t, err)
	assert.Empty(t, books)
}

type failingExchangeStore struct {
	listing.Store
}

func (failingExchangeStore) CreateExchange(context.Context, string) (listing.Exchange, error) {
	return listing.Exchange{}, errors.New("disk full")
}

func TestEngine_CreateBookRemovesBookWhenListingFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	engine := NewEngine(failingExchangeStore{f.store}, f.engine.refs)

	_, err := engine.CreateBook(ctx, "u1", f.newBook("Lagoon", ListRequest{ForSale: true, Price: price("4"), ForExchange: true}))
	require.EqualError(t, err, "disk full")

	books, err := Collect(f.catalog.ListOwnedBy(ctx, "u1"))
	require.NoError(t, err)
	assert.Empty(t, books)
	available, err := Collect(f.catalog.ListAvailable(ctx))
	require.NoError(t, err)
	assert.Empty(t, available, "the sale went with the book")
}

func TestEngine_ListBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "u1", "Piranesi", ListRequest{ForSale: true, Price: price("9")})

	_, err := f.engine.ListBook(ctx, "u2", b.ID, ListRequest{ForExchange: true})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.engine.ListBook(ctx, "u1", b.ID, ListRequest{ForSale: true, Price: price("8"), ForExchange: true})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	got, err := f.engine.Book(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.ForExchange, "a rejected relist opens nothing")

	_, err = f.engine.ListBook(ctx, "u1", b.ID, ListRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.Buy(ctx, b.ID, "u2")
	require.NoError(t, err)

	relisted, err := f.engine.ListBook(ctx, "u1", b.ID, ListRequest{ForSale: true, Price: price("11"), ForExchange: true})
	require.NoError(t, err)
	assert.True(t, relisted.ForSale)
	assert.True(t, relisted.ForExchange)
	assert.True(t, relisted.Price.Equal(decimal.NewFromInt(11)))

	h, err := f.engine.History(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, h.Sales, 2)
	assert.Equal(t, listing.StatusAvailable, h.Sales[0].Status)
	assert.Equal(t, listing.StatusUnavailable, h.Sales[1].Status)
	assert.Len(t, h.Exchanges, 1)
}

func TestEngine_UpdateAndDeleteBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "u1", "Gideon", ListRequest{ForExchange: true})

	name := "Harrow"
	_, err := f.engine.UpdateBook(ctx, "u2", b.ID, BookUpdate{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	level := 12
	_, err = f.engine.UpdateBook(ctx, "u1", b.ID, BookUpdate{PreservationLevel: &level})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	missing := "nope"
	_, err = f.engine.UpdateBook(ctx, "u1", b.ID, BookUpdate{GenreID: &missing})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	updated, err := f.engine.UpdateBook(ctx, "u1", b.ID, BookUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Harrow", updated.Name)
	assert.Equal(t, "u1", updated.OwnerID)
	assert.True(t, updated.ForExchange)

	assert.ErrorIs(t, f.engine.DeleteBook(ctx, "u2", b.ID), apperr.ErrForbidden)
	require.NoError(t, f.engine.DeleteBook(ctx, "u1", b.ID))
	_, err = f.engine.Book(ctx, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.engine.History(ctx, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEngine_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	f := newFixture(t, WithTracerProvider(tp))
	ctx := context.Background()

	b := f.create(t, "u1", "Blindsight", ListRequest{ForSale: true, Price: price("7")})
	_, err := f.engine.Buy(ctx, b.ID, "u1")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.engine.Buy(ctx, b.ID, "u2")
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "market.create_book", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("book.id", b.ID))

	assert.Equal(t, "market.buy", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, spans[1].Events(), "error recorded as an event")

	assert.Equal(t, "market.buy", spans[2].Name())
	assert.Equal(t, codes.Unset, spans[2].Status().Code)
	assert.Contains(t, spans[2].Attributes(), attribute.String("book.id", b.ID))
}

func TestEngine_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	f := newFixture(t, WithMeterProvider(provider))
	ctx := context.Background()

	b := f.create(t, "u1", "Exhalation", ListRequest{ForSale: true, Price: price("7")})
	_, err := f.engine.Buy(ctx, b.ID, "u2")
	require.NoError(t, err)
	_, err = f.engine.Buy(ctx, b.ID, "u3")
	require.ErrorIs(t, err, apperr.ErrConflict)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "market_operations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value("operation")
				out, _ := dp.Attributes.Value("outcome")
				counts[op.AsString()+"/"+out.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{
		"create_book/ok": 1,
		"buy/ok":         1,
		"buy/conflict":   1,
	}, counts)
}
