package market

import (
	"net/http"

	"bookmarket/internal/apperr"
	"bookmarket/internal/httpx"
)

type HTTPHandler struct {
	engine  *Engine
	catalog *Catalog
}

func NewHTTPHandler(engine *Engine, catalog *Catalog) *HTTPHandler {
	return &HTTPHandler{engine: engine, catalog: catalog}
}

// Create handles POST /books
// @Summary Create a book
// @Description Create a book and optionally list it for sale and/or exchange
// @Tags books
// @Accept json
// @Produce json
// @Param request body NewBook true "Book"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req NewBook
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	book, err := h.engine.CreateBook(r.Context(), httpx.UserIDFrom(r), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, book)
}

// List handles GET /books
// @Summary List available books
// @Tags books
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /books [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := Collect(h.catalog.ListAvailable(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, books, map[string]any{"total": len(books)})
}

// Mine handles GET /books/my
// @Summary List your books
// @Tags books
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/my [get]
func (h *HTTPHandler) Mine(w http.ResponseWriter, r *http.Request) {
	books, err := Collect(h.catalog.ListOwnedBy(r.Context(), httpx.UserIDFrom(r)))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, books, map[string]any{"total": len(books)})
}

// Get handles GET /books/{id}
// @Summary Get a book with its availability
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, err := h.engine.Book(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, book, nil)
}

// Update handles PUT /books/{id}
// @Summary Update a book you own
// @Tags books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param request body BookUpdate true "Fields to change"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/{id} [put]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req BookUpdate
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	book, err := h.engine.UpdateBook(r.Context(), httpx.UserIDFrom(r), r.PathValue("id"), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, book, nil)
}

// Delete handles DELETE /books/{id}
// @Summary Delete a book you own
// @Tags books
// @Param id path string true "Book ID"
// @Success 204
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/{id} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteBook(r.Context(), httpx.UserIDFrom(r), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

// Relist handles POST /books/{id}/listings
// @Summary Open new listings for a book you own
// @Tags books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param request body ListRequest true "Listings to open"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/{id}/listings [post]
func (h *HTTPHandler) Relist(w http.ResponseWriter, r *http.Request) {
	var req ListRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	book, err := h.engine.ListBook(r.Context(), httpx.UserIDFrom(r), r.PathValue("id"), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, book)
}

// History handles GET /books/{id}/listings
// @Summary Listing history of a book
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /books/{id}/listings [get]
func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.engine.History(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, history, nil)
}

// Buy handles GET /books/{id}/buy
// @Summary Buy a book
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/{id}/buy [get]
func (h *HTTPHandler) Buy(w http.ResponseWriter, r *http.Request) {
	sale, err := h.engine.Buy(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, sale, nil)
}

// Propose handles POST /books/{id}/exchange
// @Summary Offer one of your books in exchange
// @Tags books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param request body ProposeRequest true "Book you offer"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/{id}/exchange [post]
func (h *HTTPHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req ProposeRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	ex, err := h.engine.Propose(r.Context(), r.PathValue("id"), req.BookID, httpx.UserIDFrom(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, ex, nil)
}

// Accept handles POST /books/{id}/exchange/accept
// @Summary Accept the pending exchange on your book
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/{id}/exchange/accept [post]
func (h *HTTPHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if !h.requireOwner(w, r) {
		return
	}
	ex, err := h.engine.Accept(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, ex, nil)
}

// Decline handles POST /books/{id}/exchange/decline
// @Summary Decline the pending exchange on your book
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /books/{id}/exchange/decline [post]
func (h *HTTPHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if !h.requireOwner(w, r) {
		return
	}
	ex, err := h.engine.Decline(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, ex, nil)
}

// requireOwner writes a 403 unless the caller owns the book in the path.
func (h *HTTPHandler) requireOwner(w http.ResponseWriter, r *http.Request) bool {
	book, err := h.engine.Book(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return false
	}
	if book.OwnerID != httpx.UserIDFrom(r) {
		httpx.WriteError(w, r, apperr.Forbidden("only the owner can settle this exchange"))
		return false
	}
	return true
}
