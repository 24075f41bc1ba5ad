package ports

import (
	"context"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
)

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// AuthResult pairs a signed session token with the authenticated user.
type AuthResult struct {
	Token string
	User  *domain.User
}

// ProfileUpdateInput carries a partial profile update. Empty fields are
// left untouched.
type ProfileUpdateInput struct {
	FirstName string
	LastName  string
	Email     string
}

// ChangePasswordInput carries a password change request.
type ChangePasswordInput struct {
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

// AuthService defines credential issuance, verification, and the user
// directory.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate verifies the token signature and expiry, loads the user,
	// and rejects missing or inactive accounts. It returns
	// domain.ErrTokenExpired, domain.ErrTokenInvalid, domain.ErrUserNotFound,
	// or domain.ErrAccountInactive as distinct conditions.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileUpdateInput) (*domain.User, error)
	ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error
	ListUsers(ctx context.Context, q UserQuery) (*UserPage, error)
}
