package reference

import (
	"net/http"

	"bookmarket/internal/httpx"
)

type HTTPHandler struct {
	svc *Service
}

func NewHTTPHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// ListCities handles GET /cities
// @Summary List cities
// @Tags reference
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /cities [get]
func (h *HTTPHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.svc.Cities(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	names := make([]string, 0, len(cities))
	for _, c := range cities {
		names = append(names, c.Name)
	}
	httpx.JSONSuccess(w, r, names, map[string]any{"total": len(names)})
}

// ListAuthors handles GET /authors
// @Summary List authors
// @Tags reference
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /authors [get]
func (h *HTTPHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.svc.Authors(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, authors, map[string]any{"total": len(authors)})
}

// CreateAuthor handles POST /authors
// @Summary Create an author
// @Tags reference
// @Accept json
// @Produce json
// @Param request body CreateAuthorRequest true "Author"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /authors [post]
func (h *HTTPHandler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req CreateAuthorRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	author, err := h.svc.CreateAuthor(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, author)
}

// ListGenres handles GET /genres
// @Summary List genres
// @Tags reference
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /genres [get]
func (h *HTTPHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.svc.Genres(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, genres, map[string]any{"total": len(genres)})
}

// CreateGenre handles POST /genres
// @Summary Create a genre
// @Tags reference
// @Accept json
// @Produce json
// @Param request body CreateGenreRequest true "Genre"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Security BearerAuth
// @Router /genres [post]
func (h *HTTPHandler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var req CreateGenreRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	genre, err := h.svc.CreateGenre(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, genre)
}
