package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

type stubAuthRepo struct {
	createFn           func(ctx context.Context, user *domain.User) (*domain.User, error)
	findByEmailFn      func(ctx context.Context, email string) (*domain.User, error)
	findByIDFn         func(ctx context.Context, id string) (*domain.User, error)
	findByEmployeeIDFn func(ctx context.Context, employeeID string) (*domain.User, error)
	updateFn           func(ctx context.Context, id string, update ports.UserUpdate) (*domain.User, error)
	listFn             func(ctx context.Context, q ports.UserQuery) (*ports.UserPage, error)
}

func (s *stubAuthRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	return s.createFn(ctx, user)
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if s.findByEmailFn == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.findByEmailFn(ctx, email)
}

func (s *stubAuthRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return s.findByIDFn(ctx, id)
}

func (s *stubAuthRepo) FindByEmployeeID(ctx context.Context, employeeID string) (*domain.User, error) {
	if s.findByEmployeeIDFn == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.findByEmployeeIDFn(ctx, employeeID)
}

func (s *stubAuthRepo) Update(ctx context.Context, id string, update ports.UserUpdate) (*domain.User, error) {
	return s.updateFn(ctx, id, update)
}

func (s *stubAuthRepo) List(ctx context.Context, q ports.UserQuery) (*ports.UserPage, error) {
	return s.listFn(ctx, q)
}

type stubPublisher struct {
	submitted  []*domain.Timesheet
	saved      []*domain.Timesheet
	registered []*domain.User
	err        error
}

func (s *stubPublisher) TimesheetSubmitted(ctx context.Context, ts *domain.Timesheet) error {
	s.submitted = append(s.submitted, ts)
	return s.err
}

func (s *stubPublisher) TimesheetSaved(ctx context.Context, ts *domain.Timesheet) error {
	s.saved = append(s.saved, ts)
	return s.err
}

func (s *stubPublisher) UserRegistered(ctx context.Context, u *domain.User) error {
	s.registered = append(s.registered, u)
	return s.err
}

func newTestAuthService(repo *stubAuthRepo, pub *stubPublisher) *AuthService {
	return NewAuthService(repo, pub, "test-secret", time.Hour, zerolog.Nop())
}

var employeeIDPattern = regexp.MustCompile(`^EMP\d{6}$`)

func TestAuthService_Register_Success(t *testing.T) {
	pub := &stubPublisher{}
	repo := &stubAuthRepo{
		createFn: func(ctx context.Context, user *domain.User) (*domain.User, error) {
			created := *user
			created.ID = "507f1f77bcf86cd799439011"
			return &created, nil
		},
	}
	svc := newTestAuthService(repo, pub)

	result, err := svc.Register(context.Background(), ports.RegisterInput{
		FirstName: "Alice",
		LastName:  "Doe",
		Email:     "Alice@Example.COM",
		Password:  "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if result.User.Email != "alice@example.com" {
		t.Fatalf("email not lowercased: %s", result.User.Email)
	}
	if !employeeIDPattern.MatchString(result.User.EmployeeID) {
		t.Fatalf("bad employee id: %s", result.User.EmployeeID)
	}
	if result.User.Role != domain.RoleUser || !result.User.IsActive {
		t.Fatalf("unexpected defaults: role=%s active=%v", result.User.Role, result.User.IsActive)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte("password123")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if len(pub.registered) != 1 {
		t.Fatalf("expected one user.registered event, got %d", len(pub.registered))
	}
	if result.Token == "" {
		t.Fatal("expected a session token")
	}
}

func TestAuthService_Register_TokenClaims(t *testing.T) {
	repo := &stubAuthRepo{
		createFn: func(ctx context.Context, user *domain.User) (*domain.User, error) {
			created := *user
			created.ID = "id-1"
			return &created, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	result, err := svc.Register(context.Background(), ports.RegisterInput{
		FirstName: "Alice", LastName: "Doe", Email: "a@b.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(result.Token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims["id"] != "id-1" || claims["email"] != "a@b.com" || claims["role"] != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims["employeeId"] == "" {
		t.Fatal("expected employeeId claim")
	}
}

func TestAuthService_Register_PasswordMismatch(t *testing.T) {
	svc := newTestAuthService(&stubAuthRepo{}, &stubPublisher{})

	_, err := svc.Register(context.Background(), ports.RegisterInput{
		FirstName: "A", LastName: "B", Email: "a@b.com",
		Password: "password123", ConfirmPassword: "different123",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Register_ShortPassword(t *testing.T) {
	svc := newTestAuthService(&stubAuthRepo{}, &stubPublisher{})

	_, err := svc.Register(context.Background(), ports.RegisterInput{
		FirstName: "A", LastName: "B", Email: "a@b.com", Password: "short",
	})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Register_EmailExists(t *testing.T) {
	repo := &stubAuthRepo{
		findByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{Email: email}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	_, err := svc.Register(context.Background(), ports.RegisterInput{
		FirstName: "A", LastName: "B", Email: "taken@b.com", Password: "password123",
	})
	if !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestAuthService_Register_PublishFailureIsNotFatal(t *testing.T) {
	repo := &stubAuthRepo{
		createFn: func(ctx context.Context, user *domain.User) (*domain.User, error) {
			return user, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{err: errors.New("broker down")})

	_, err := svc.Register(context.Background(), ports.RegisterInput{
		FirstName: "A", LastName: "B", Email: "a@b.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("publish failure must not fail registration: %v", err)
	}
}

func TestAuthService_Register_EmployeeIDRegeneratedOnCollision(t *testing.T) {
	lookups := 0
	repo := &stubAuthRepo{
		findByEmployeeIDFn: func(ctx context.Context, employeeID string) (*domain.User, error) {
			lookups++
			if lookups == 1 {
				return &domain.User{EmployeeID: employeeID}, nil
			}
			return nil, domain.ErrUserNotFound
		},
		createFn: func(ctx context.Context, user *domain.User) (*domain.User, error) {
			return user, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	result, err := svc.Register(context.Background(), ports.RegisterInput{
		FirstName: "A", LastName: "B", Email: "a@b.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if lookups != 2 {
		t.Fatalf("expected a second id lookup after the collision, got %d", lookups)
	}
	if !employeeIDPattern.MatchString(result.User.EmployeeID) {
		t.Fatalf("bad employee id: %s", result.User.EmployeeID)
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(hash)
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := &stubAuthRepo{
		findByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			if email != "alice@example.com" {
				t.Fatalf("email not normalized: %s", email)
			}
			return &domain.User{
				ID: "id-1", Email: email, IsActive: true,
				PasswordHash: mustHash(t, "password123"),
			}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	result, err := svc.Login(context.Background(), "  Alice@Example.com ", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a session token")
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := &stubAuthRepo{
		findByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{Email: email, IsActive: true, PasswordHash: mustHash(t, "correct-password")}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	_, err := svc.Login(context.Background(), "a@b.com", "wrong-password")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnknownEmailIndistinguishable(t *testing.T) {
	svc := newTestAuthService(&stubAuthRepo{}, &stubPublisher{})

	_, err := svc.Login(context.Background(), "nobody@b.com", "password123")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email must look like bad credentials, got %v", err)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		t.Fatal("login must not reveal that the email is unknown")
	}
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	repo := &stubAuthRepo{
		findByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{Email: email, IsActive: false, PasswordHash: mustHash(t, "password123")}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	_, err := svc.Login(context.Background(), "a@b.com", "password123")
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestAuthService_Authenticate_RoundTrip(t *testing.T) {
	user := &domain.User{ID: "id-1", Email: "a@b.com", IsActive: true}
	repo := &stubAuthRepo{
		findByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			if id != "id-1" {
				t.Fatalf("unexpected id: %s", id)
			}
			return user, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	token, err := svc.generateToken(user)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != "id-1" {
		t.Fatalf("wrong user: %s", got.ID)
	}
}

func TestAuthService_Authenticate_Expired(t *testing.T) {
	svc := newTestAuthService(&stubAuthRepo{}, &stubPublisher{})
	svc.tokenTTL = -time.Hour

	token, err := svc.generateToken(&domain.User{ID: "id-1"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	_, err = svc.Authenticate(context.Background(), token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthService_Authenticate_Malformed(t *testing.T) {
	svc := newTestAuthService(&stubAuthRepo{}, &stubPublisher{})

	_, err := svc.Authenticate(context.Background(), "not-a-token")
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthService_Authenticate_InactiveUser(t *testing.T) {
	repo := &stubAuthRepo{
		findByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, IsActive: false}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	token, err := svc.generateToken(&domain.User{ID: "id-1"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	_, err = svc.Authenticate(context.Background(), token)
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestAuthService_UpdateProfile_EmailConflict(t *testing.T) {
	repo := &stubAuthRepo{
		findByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, Email: "old@b.com"}, nil
		},
		findByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{Email: email}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	_, err := svc.UpdateProfile(context.Background(), "id-1", ports.ProfileUpdateInput{Email: "taken@b.com"})
	if !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestAuthService_UpdateProfile_SameEmailSkipsUniquenessCheck(t *testing.T) {
	repo := &stubAuthRepo{
		findByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, Email: "same@b.com"}, nil
		},
		findByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			t.Fatal("uniqueness check must be skipped for an unchanged email")
			return nil, nil
		},
		updateFn: func(ctx context.Context, id string, update ports.UserUpdate) (*domain.User, error) {
			if update.Email != "" {
				t.Fatalf("unchanged email must not be written, got %q", update.Email)
			}
			return &domain.User{ID: id, FirstName: update.FirstName}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	_, err := svc.UpdateProfile(context.Background(), "id-1", ports.ProfileUpdateInput{
		FirstName: "New", Email: "Same@B.com",
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
}

func TestAuthService_ChangePassword_WrongCurrent(t *testing.T) {
	repo := &stubAuthRepo{
		findByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, PasswordHash: mustHash(t, "actual-password")}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	err := svc.ChangePassword(context.Background(), "id-1", ports.ChangePasswordInput{
		CurrentPassword: "wrong-password", NewPassword: "newpassword1",
	})
	if !errors.Is(err, domain.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestAuthService_ChangePassword_StoresNewHash(t *testing.T) {
	var stored string
	repo := &stubAuthRepo{
		findByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, PasswordHash: mustHash(t, "old-password")}, nil
		},
		updateFn: func(ctx context.Context, id string, update ports.UserUpdate) (*domain.User, error) {
			stored = update.PasswordHash
			return &domain.User{ID: id}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	err := svc.ChangePassword(context.Background(), "id-1", ports.ChangePasswordInput{
		CurrentPassword: "old-password", NewPassword: "new-password1", ConfirmNewPassword: "new-password1",
	})
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if strings.Contains(stored, "new-password1") {
		t.Fatal("plaintext password must never be stored")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte("new-password1")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestAuthService_ListUsers_Defaults(t *testing.T) {
	repo := &stubAuthRepo{
		listFn: func(ctx context.Context, q ports.UserQuery) (*ports.UserPage, error) {
			if q.Page != 1 || q.Limit != 10 {
				t.Fatalf("expected defaults page=1 limit=10, got %d/%d", q.Page, q.Limit)
			}
			return &ports.UserPage{Page: q.Page, Limit: q.Limit}, nil
		},
	}
	svc := newTestAuthService(repo, &stubPublisher{})

	if _, err := svc.ListUsers(context.Background(), ports.UserQuery{}); err != nil {
		t.Fatalf("list users: %v", err)
	}
}
