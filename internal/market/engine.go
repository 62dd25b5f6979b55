// Package market runs the listing lifecycle: creating books and their
// listings, buying, and proposing, accepting or declining exchanges.
//
// Every transition is a single compare-and-swap against the listing store, so
// two racing callers can never both win; the loser gets an apperr conflict.
package market

import (
	"context"
	"errors"
	"time"

	"bookmarket/internal/apperr"
	"bookmarket/internal/listing"
	"bookmarket/internal/reference"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "bookmarket/market"

// AuthorGenreLookup is the slice of reference data the engine needs.
type AuthorGenreLookup interface {
	GetAuthor(ctx context.Context, id string) (reference.Author, error)
	GetGenre(ctx context.Context, id string) (reference.Genre, error)
}

type Engine struct {
	store    listing.Store
	refs     AuthorGenreLookup
	resolver *Resolver
	now      func() time.Time

	tracer     trace.Tracer
	meter      metric.Meter
	operations metric.Int64Counter
	durations  metric.Float64Histogram
}

type Option func(*Engine)

// WithClock replaces the clock used for date_sold and date_exchanged.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets where the market_operations_total counter and the
// market_operation_duration_seconds histogram are reported.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meter = mp.Meter(instrumentationName) }
}

func NewEngine(store listing.Store, refs AuthorGenreLookup, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		refs:     refs,
		resolver: NewResolver(store),
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.initInstruments()
	return e
}

func (e *Engine) initInstruments() {
	var err error
	e.operations, err = e.meter.Int64Counter("market_operations_total",
		metric.WithDescription("Engine operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		otel.Handle(err)
		e.operations = noop.Int64Counter{}
	}
	e.durations, err = e.meter.Float64Histogram("market_operation_duration_seconds",
		metric.WithDescription("Engine operation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
		e.durations = noop.Float64Histogram{}
	}
}

// begin opens the span for one engine operation. The returned func ends it
// and counts the outcome.
func (e *Engine) begin(ctx context.Context, op, bookID string) (context.Context, func(error)) {
	ctx, span := e.tracer.Start(ctx, "market."+op,
		trace.WithAttributes(attribute.String("book.id", bookID)),
	)
	began := time.Now()
	return ctx, func(err error) {
		attrs := metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome(err)),
		)
		e.operations.Add(ctx, 1, attrs)
		e.durations.Record(ctx, time.Since(began).Seconds(), attrs)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return "invalid"
	case apperr.ErrNotFound:
		return "not_found"
	case apperr.ErrConflict:
		return "conflict"
	case apperr.ErrForbidden:
		return "forbidden"
	case apperr.ErrUnauthenticated:
		return "unauthenticated"
	}
	return "error"
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// CreateBook stores a new book owned by ownerID and opens the listings
// requested in req. If a listing cannot be opened the book is removed again.
func (e *Engine) CreateBook(ctx context.Context, ownerID string, req NewBook) (_ BookDetails, err error) {
	ctx, done := e.begin(ctx, "create_book", "")
	defer func() { done(err) }()

	if ownerID == "" {
		return BookDetails{}, apperr.Unauthenticated("authentication required")
	}
	if err := req.validate(); err != nil {
		return BookDetails{}, err
	}
	if err := e.checkRefs(ctx, req.AuthorID, req.GenreID); err != nil {
		return BookDetails{}, err
	}

	book := listing.Book{
		Name:              req.Name,
		OwnerID:           ownerID,
		AuthorID:          req.AuthorID,
		GenreID:           req.GenreID,
		Edition:           req.Edition,
		PreservationLevel: req.PreservationLevel,
	}
	if err := e.store.CreateBook(ctx, &book); err != nil {
		return BookDetails{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("book.id", book.ID))

	if err := e.open(ctx, book.ID, req.ListRequest); err != nil {
		if delErr := e.store.DeleteBook(context.WithoutCancel(ctx), book.ID); delErr != nil {
			return BookDetails{}, errors.Join(err, delErr)
		}
		return BookDetails{}, err
	}
	return e.resolver.annotate(ctx, book)
}

// ListBook opens new listings for a book that already exists. Only the owner
// may relist, and a kind that is still live cannot be opened twice.
func (e *Engine) ListBook(ctx context.Context, actorID, bookID string, req ListRequest) (_ BookDetails, err error) {
	ctx, done := e.begin(ctx, "list_book", bookID)
	defer func() { done(err) }()

	if err := req.validate(); err != nil {
		return BookDetails{}, err
	}
	if !req.ForSale && !req.ForExchange {
		return BookDetails{}, apperr.Validation("for_sale or for_exchange must be set")
	}
	book, err := e.ownedBook(ctx, actorID, bookID)
	if err != nil {
		return BookDetails{}, err
	}

	// Both slots are checked before writing so a conflict on one kind does
	// not leave the other half-listed.
	if req.ForSale {
		if _, err := e.store.FindActiveSale(ctx, bookID); err == nil {
			return BookDetails{}, apperr.Conflictf("book %s is already listed for sale", bookID)
		} else if !apperr.IsNotFound(err) {
			return BookDetails{}, err
		}
	}
	if req.ForExchange {
		latest, err := e.store.LatestExchange(ctx, bookID)
		switch {
		case err == nil && listing.ExchangeOpen(latest.Status):
			return BookDetails{}, apperr.Conflictf("book %s already has an open exchange", bookID)
		case err != nil && !apperr.IsNotFound(err):
			return BookDetails{}, err
		}
	}

	if err := e.open(ctx, bookID, req); err != nil {
		return BookDetails{}, err
	}
	return e.resolver.annotate(ctx, book)
}

func (e *Engine) open(ctx context.Context, bookID string, req ListRequest) error {
	if req.ForSale {
		if _, err := e.store.CreateSale(ctx, bookID, *req.Price); err != nil {
			return err
		}
	}
	if req.ForExchange {
		if _, err := e.store.CreateExchange(ctx, bookID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBook rewrites the descriptive fields of a book. The owner never changes.
func (e *Engine) UpdateBook(ctx context.Context, actorID, bookID string, req BookUpdate) (_ BookDetails, err error) {
	ctx, done := e.begin(ctx, "update_book", bookID)
	defer func() { done(err) }()

	book, err := e.ownedBook(ctx, actorID, bookID)
	if err != nil {
		return BookDetails{}, err
	}

	if req.Name != nil {
		book.Name = *req.Name
	}
	if req.AuthorID != nil {
		book.AuthorID = *req.AuthorID
	}
	if req.GenreID != nil {
		book.GenreID = *req.GenreID
	}
	if req.Edition != nil {
		book.Edition = *req.Edition
	}
	if req.PreservationLevel != nil {
		book.PreservationLevel = *req.PreservationLevel
	}
	if err := errors.Join(
		validateName(book.Name),
		validateEdition(book.Edition),
		validatePreservation(book.PreservationLevel),
	); err != nil {
		return BookDetails{}, apperr.Validation(err.Error())
	}
	if err := e.checkRefs(ctx, book.AuthorID, book.GenreID); err != nil {
		return BookDetails{}, err
	}

	if err := e.store.UpdateBook(ctx, book); err != nil {
		return BookDetails{}, err
	}
	return e.resolver.annotate(ctx, book)
}

// DeleteBook removes the book and its listing history.
func (e *Engine) DeleteBook(ctx context.Context, actorID, bookID string) (err error) {
	ctx, done := e.begin(ctx, "delete_book", bookID)
	defer func() { done(err) }()

	if _, err := e.ownedBook(ctx, actorID, bookID); err != nil {
		return err
	}
	return e.store.DeleteBook(ctx, bookID)
}

func (e *Engine) Book(ctx context.Context, bookID string) (BookDetails, error) {
	return e.resolver.Details(ctx, bookID)
}

// History is every listing a book has had, newest first.
type History struct {
	Sales     []listing.Sale     `json:"sales"`
	Exchanges []listing.Exchange `json:"exchanges"`
}

func (e *Engine) History(ctx context.Context, bookID string) (History, error) {
	if _, err := e.store.GetBook(ctx, bookID); err != nil {
		return History{}, err
	}
	h := History{Sales: []listing.Sale{}, Exchanges: []listing.Exchange{}}
	for sale, err := range e.store.SalesForBook(ctx, bookID) {
		if err != nil {
			return History{}, err
		}
		h.Sales = append(h.Sales, sale)
	}
	for ex, err := range e.store.ExchangesForBook(ctx, bookID) {
		if err != nil {
			return History{}, err
		}
		h.Exchanges = append(h.Exchanges, ex)
	}
	return h, nil
}

// Buy moves the book's active sale to UNAVAILABLE with buyerID as buyer.
// Ownership of the book is not transferred.
func (e *Engine) Buy(ctx context.Context, bookID, buyerID string) (_ listing.Sale, err error) {
	ctx, done := e.begin(ctx, "buy", bookID)
	defer func() { done(err) }()

	if buyerID == "" {
		return listing.Sale{}, apperr.Unauthenticated("authentication required")
	}
	book, err := e.store.GetBook(ctx, bookID)
	if err != nil {
		return listing.Sale{}, err
	}
	if book.OwnerID == buyerID {
		return listing.Sale{}, apperr.Forbidden("you cannot buy your own book")
	}

	sale, err := e.store.FindActiveSale(ctx, bookID)
	if apperr.IsNotFound(err) {
		return listing.Sale{}, e.settledSale(ctx, bookID)
	}
	if err != nil {
		return listing.Sale{}, err
	}

	soldAt := e.clock()
	next := sale
	next.BuyerID = &buyerID
	next.Status = listing.StatusUnavailable
	next.DateSold = &soldAt
	return e.store.SwapSale(ctx, listing.StatusAvailable, next)
}

// settledSale explains why a book has no active sale: it was never listed, or
// its last sale is already closed.
func (e *Engine) settledSale(ctx context.Context, bookID string) error {
	latest, err := e.store.LatestSale(ctx, bookID)
	if err != nil {
		return err
	}
	return apperr.Conflictf("book %s is not for sale: last sale is %s", bookID, latest.Status)
}

// Propose offers bookReturnedID, which the proposer must own, for the
// active exchange of bookOfferedID.
func (e *Engine) Propose(ctx context.Context, bookOfferedID, bookReturnedID, proposerID string) (_ listing.Exchange, err error) {
	ctx, done := e.begin(ctx, "propose", bookOfferedID)
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("book.returned_id", bookReturnedID))

	if proposerID == "" {
		return listing.Exchange{}, apperr.Unauthenticated("authentication required")
	}
	offered, err := e.store.GetBook(ctx, bookOfferedID)
	if err != nil {
		return listing.Exchange{}, err
	}
	if offered.OwnerID == proposerID {
		return listing.Exchange{}, apperr.Forbidden("you cannot exchange with yourself")
	}
	returned, err := e.store.GetBook(ctx, bookReturnedID)
	if err != nil {
		return listing.Exchange{}, err
	}
	if returned.OwnerID != proposerID {
		return listing.Exchange{}, apperr.Forbiddenf("book %s does not belong to you", bookReturnedID)
	}

	ex, err := e.store.FindActiveExchange(ctx, bookOfferedID)
	if apperr.IsNotFound(err) {
		return listing.Exchange{}, e.settledExchange(ctx, bookOfferedID)
	}
	if err != nil {
		return listing.Exchange{}, err
	}

	proposedAt := e.clock()
	next := ex
	next.BookReturnedID = &bookReturnedID
	next.Status = listing.StatusPending
	next.DateExchanged = &proposedAt
	return e.store.SwapExchange(ctx, listing.StatusAvailable, next)
}

func (e *Engine) settledExchange(ctx context.Context, bookID string) error {
	latest, err := e.store.LatestExchange(ctx, bookID)
	if err != nil {
		return err
	}
	return apperr.Conflictf("book %s is not open for exchange: last exchange is %s", bookID, latest.Status)
}

// Accept closes the pending exchange of bookOfferedID as ACCEPTED. The caller
// is responsible for checking that the actor owns the book.
func (e *Engine) Accept(ctx context.Context, bookOfferedID string) (listing.Exchange, error) {
	return e.settle(ctx, "accept", bookOfferedID, listing.StatusAccepted)
}

// Decline closes the pending exchange of bookOfferedID as DECLINE.
func (e *Engine) Decline(ctx context.Context, bookOfferedID string) (listing.Exchange, error) {
	return e.settle(ctx, "decline", bookOfferedID, listing.StatusDeclined)
}

func (e *Engine) settle(ctx context.Context, op, bookID string, to listing.Status) (_ listing.Exchange, err error) {
	ctx, done := e.begin(ctx, op, bookID)
	defer func() { done(err) }()

	latest, err := e.store.LatestExchange(ctx, bookID)
	if err != nil {
		return listing.Exchange{}, err
	}
	if latest.Status != listing.StatusPending {
		return listing.Exchange{}, apperr.Conflictf("exchange for book %s is %s, not %s", bookID, latest.Status, listing.StatusPending)
	}

	next := latest
	next.Status = to
	return e.store.SwapExchange(ctx, listing.StatusPending, next)
}

// ownedBook loads a book and checks that actorID owns it.
func (e *Engine) ownedBook(ctx context.Context, actorID, bookID string) (listing.Book, error) {
	if actorID == "" {
		return listing.Book{}, apperr.Unauthenticated("authentication required")
	}
	book, err := e.store.GetBook(ctx, bookID)
	if err != nil {
		return listing.Book{}, err
	}
	if book.OwnerID != actorID {
		return listing.Book{}, apperr.Forbiddenf("book %s does not belong to you", bookID)
	}
	return book, nil
}

func (e *Engine) checkRefs(ctx context.Context, authorID, genreID string) error {
	if _, err := e.refs.GetAuthor(ctx, authorID); err != nil {
		return err
	}
	_, err := e.refs.GetGenre(ctx, genreID)
	return err
}
