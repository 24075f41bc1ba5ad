package ports

import (
	"context"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// UserQuery carries pagination and search parameters for the directory listing.
type UserQuery struct {
	// Search is matched case-insensitively as a substring of
	// firstName, lastName, and email.
	Search string
	Page   int
	Limit  int
}

// UserPage is one page of directory results.
type UserPage struct {
	Users []domain.User
	Total int64
	Page  int
	Limit int
	Pages int
}

// AuthRepository defines the persistence interface for user accounts.
type AuthRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*domain.User, error)
	// Update applies the non-zero fields of update to the stored user and
	// returns the updated document.
	Update(ctx context.Context, id string, update UserUpdate) (*domain.User, error)
	List(ctx context.Context, q UserQuery) (*UserPage, error)
}

// UserUpdate holds the mutable profile fields. Empty strings are skipped;
// PasswordHash is only written when non-empty.
type UserUpdate struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}
