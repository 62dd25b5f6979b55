package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bookmarket/internal/config"
	"bookmarket/internal/httpx"
	"bookmarket/internal/listing"
	"bookmarket/internal/market"
	"bookmarket/internal/reference"
	"bookmarket/internal/user"
)

type application struct {
	store   listing.Store
	refs    *reference.Service
	users   *user.Service
	engine  *market.Engine
	catalog *market.Catalog
	secret  string
}

func newApplication(cfg config.Config, store listing.Store, users user.Repository, refs reference.Repository) *application {
	refService := reference.NewService(refs)
	var userOpts []user.Option
	if mem, ok := store.(*listing.MemoryStore); ok {
		// Postgres cascades this through books.owner_id and sales.buyer_id.
		userOpts = append(userOpts, user.WithDeleteHook(mem.DeleteOwner))
	}
	return &application{
		store:   store,
		refs:    refService,
		users:   user.NewService(users, refService, cfg.JWTSecret, cfg.TokenTTL, userOpts...),
		engine:  market.NewEngine(store, refService),
		catalog: market.NewCatalog(store),
		secret:  cfg.JWTSecret,
	}
}

// routes registers every endpoint. Mutating endpoints are wrapped in auth
// individually; reads stay public.
func (app *application) routes() *http.ServeMux {
	auth := func(h http.HandlerFunc) http.Handler { return httpx.RequireAuth(app.secret, h) }

	users := user.NewHTTPHandler(app.users)
	refs := reference.NewHTTPHandler(app.refs)
	books := market.NewHTTPHandler(app.engine, app.catalog)

	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := app.store.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.HandleFunc("POST /users/register", users.Register)
	router.HandleFunc("POST /users/login", users.Login)
	router.HandleFunc("GET /users", users.List)
	router.HandleFunc("GET /users/{id}", users.Get)
	router.Handle("PUT /users/{id}", auth(users.Update))
	router.Handle("DELETE /users/{id}", auth(users.Delete))

	router.HandleFunc("GET /cities", refs.ListCities)
	router.HandleFunc("GET /authors", refs.ListAuthors)
	router.Handle("POST /authors", auth(refs.CreateAuthor))
	router.HandleFunc("GET /genres", refs.ListGenres)
	router.Handle("POST /genres", auth(refs.CreateGenre))

	router.HandleFunc("GET /books", books.List)
	router.Handle("POST /books", auth(books.Create))
	router.Handle("GET /books/my", auth(books.Mine))
	router.HandleFunc("GET /books/{id}", books.Get)
	router.Handle("PUT /books/{id}", auth(books.Update))
	router.Handle("DELETE /books/{id}", auth(books.Delete))
	router.HandleFunc("GET /books/{id}/listings", books.History)
	router.Handle("POST /books/{id}/listings", auth(books.Relist))
	router.Handle("GET /books/{id}/buy", auth(books.Buy))
	router.Handle("POST /books/{id}/exchange", auth(books.Propose))
	router.Handle("POST /books/{id}/exchange/accept", auth(books.Accept))
	router.Handle("POST /books/{id}/exchange/decline", auth(books.Decline))

	return router
}

// newHandler wraps the router in the middleware chain, outermost first.
func newHandler(cfg config.Config, app *application, logger *slog.Logger, rateLimiter *httpx.RateLimitMiddleware) http.Handler {
	return httpx.Chain(app.routes(),
		httpx.RequestIDMiddleware,
		httpx.RecoveryMiddleware(logger),
		httpx.AccessLogMiddleware(logger),
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		httpx.CORSMiddleware(cfg.CORSAllowedOrigins),
		httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes),
		rateLimiter.Middleware,
	)
}
