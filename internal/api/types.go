package api

import (
	"io"
	"time"
)

// Reading status codes as stored by the backend.
const (
	StatusWantToRead = "W"
	StatusReading    = "R"
	StatusCompleted  = "C"
)

// MinRating is the smallest rating the backend accepts for a rated book.
const MinRating = 0.5

// Credential is the access/refresh token pair identifying a session.
type Credential struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User mirrors the backend user profile record.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// Book is the card-level book detail embedded in library and shelf payloads.
// Status and Rating are the caller's denormalized reading state for the book;
// they must stay consistent with the owning reading-status record.
type Book struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	CoverURL string  `json:"cover_url"`
	Pages    int     `json:"page_count"`
	Status   string  `json:"status"`
	Rating   float64 `json:"rating"`
}

// ReadingStatus is one library entry: a book plus the user's progress.
type ReadingStatus struct {
	ID        int64   `json:"id"`
	Status    string  `json:"status"`
	Rating    float64 `json:"rating"`
	Book      Book    `json:"book"`
	UpdatedAt string  `json:"updated_at"`
}

// ParsedUpdatedAt returns the update timestamp as time.Time when possible.
func (rs ReadingStatus) ParsedUpdatedAt() time.Time {
	if t, err := time.Parse(time.RFC3339, rs.UpdatedAt); err == nil {
		return t
	}
	return time.Time{}
}

// ReadingStatusPatch carries the fields a PATCH may change. Nil fields are
// omitted from the request body.
type ReadingStatusPatch struct {
	Status *string  `json:"status,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

// CreateReadingStatusInput is the POST /reading-statuses/ payload.
type CreateReadingStatusInput struct {
	BookID int64   `json:"book_id"`
	Status string  `json:"status"`
	Rating float64 `json:"rating,omitempty"`
}

// ReadingStatusPage mirrors the paginated reading-status listing.
type ReadingStatusPage struct {
	Count       int             `json:"count"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
	HasNext     bool            `json:"has_next"`
	HasPrevious bool            `json:"has_previous"`
	Results     []ReadingStatus `json:"results"`
}

// Shelf mirrors a bookshelf record.
type Shelf struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	BookCount   int    `json:"book_count"`
	IsPublic    bool   `json:"is_public"`
	CreatedAt   string `json:"created_at"`
}

// ShelfInput carries the writable shelf fields for create and update.
type ShelfInput struct {
	Name        string
	Description string
	IsPublic    bool
}

// Upload attaches a file to a multipart request.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// RegisterInput is the POST /users/register/ payload.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    *User  `json:"user"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type shelfListResponse struct {
	Results []Shelf `json:"results"`
}

type shelfBooksResponse struct {
	Results []Book `json:"results"`
}

type addShelfBookRequest struct {
	BookID int64 `json:"book_id"`
}
