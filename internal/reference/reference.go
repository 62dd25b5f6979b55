// Package reference holds the lookup tables books and users point at:
// cities, authors and genres.
package reference

type City struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Author struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (a Author) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	return a.FirstName + " " + a.LastName
}

type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateAuthorRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
}

type CreateGenreRequest struct {
	Name string `json:"name" validate:"notblank,max=100"`
}
