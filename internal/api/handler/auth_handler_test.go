package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/core/ports"
)

type stubAuthService struct {
	registerFn       func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	loginFn          func(ctx context.Context, email, password string) (*ports.AuthResult, error)
	authenticateFn   func(ctx context.Context, token string) (*domain.User, error)
	getUserFn        func(ctx context.Context, id string) (*domain.User, error)
	updateProfileFn  func(ctx context.Context, userID string, in ports.ProfileUpdateInput) (*domain.User, error)
	changePasswordFn func(ctx context.Context, userID string, in ports.ChangePasswordInput) error
	listUsersFn      func(ctx context.Context, q ports.UserQuery) (*ports.UserPage, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	return s.authenticateFn(ctx, token)
}

func (s *stubAuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUserFn(ctx, id)
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, userID string, in ports.ProfileUpdateInput) (*domain.User, error) {
	return s.updateProfileFn(ctx, userID, in)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, userID string, in ports.ChangePasswordInput) error {
	return s.changePasswordFn(ctx, userID, in)
}

func (s *stubAuthService) ListUsers(ctx context.Context, q ports.UserQuery) (*ports.UserPage, error) {
	return s.listUsersFn(ctx, q)
}

func newTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			if in.FirstName != "Alice" || in.Email != "alice@example.com" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.AuthResult{
				Token: "token123",
				User:  &domain.User{EmployeeID: "EMP123456", FirstName: "Alice", Email: in.Email},
			}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/auth-service/register",
		`{"firstName":"Alice","lastName":"Doe","email":"alice@example.com","password":"password123"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["message"] != "User registered successfully" || resp["token"] != "token123" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["employeeId"] != "EMP123456" {
		t.Fatalf("unexpected user payload: %+v", resp["user"])
	}
	if _, leaked := user["password"]; leaked {
		t.Fatal("password must never appear in responses")
	}
}

func TestAuthHandler_Register_ValidationFailure(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			t.Fatal("service must not be called on invalid input")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newTestContext(t, http.MethodPost, "/auth-service/register",
		`{"firstName":"Alice","lastName":"Doe","email":"not-an-email","password":"password123"}`)
	err := h.Register(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Register_EmailExistsPropagates(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			return nil, domain.ErrEmailExists
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newTestContext(t, http.MethodPost, "/auth-service/register",
		`{"firstName":"Alice","lastName":"Doe","email":"taken@example.com","password":"password123"}`)
	if err := h.Register(c); !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists to propagate, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*ports.AuthResult, error) {
			return &ports.AuthResult{Token: "token123", User: &domain.User{Email: email}}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/auth-service/login",
		`{"email":"alice@example.com","password":"password123"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"token":"token123"`) {
		t.Fatalf("missing token: %s", rec.Body.String())
	}
}

func TestAuthHandler_Login_MissingPassword(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (*ports.AuthResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newTestContext(t, http.MethodPost, "/auth-service/login", `{"email":"alice@example.com"}`)
	err := h.Login(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Profile_RequiresMiddleware(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, _ := newTestContext(t, http.MethodGet, "/auth-service/profile", "")
	err := h.Profile(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without middleware, got %v", err)
	}
}

func TestAuthHandler_Profile_ReturnsContextUser(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, rec := newTestContext(t, http.MethodGet, "/auth-service/profile", "")
	c.Set("user", &domain.User{EmployeeID: "EMP123456", Email: "a@b.com"})

	if err := h.Profile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "EMP123456") {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthHandler_ChangePassword_Success(t *testing.T) {
	stub := &stubAuthService{
		changePasswordFn: func(ctx context.Context, userID string, in ports.ChangePasswordInput) error {
			if userID != "id-1" || in.CurrentPassword != "oldpass123" {
				t.Fatalf("unexpected args: %s %+v", userID, in)
			}
			return nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newTestContext(t, http.MethodPut, "/auth-service/change-password",
		`{"currentPassword":"oldpass123","newPassword":"newpass123","confirmNewPassword":"newpass123"}`)
	c.Set("user", &domain.User{ID: "id-1"})

	if err := h.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_ChangePassword_ConfirmMismatch(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		changePasswordFn: func(ctx context.Context, userID string, in ports.ChangePasswordInput) error {
			t.Fatal("service must not be called")
			return nil
		},
	})

	c, _ := newTestContext(t, http.MethodPut, "/auth-service/change-password",
		`{"currentPassword":"oldpass123","newPassword":"newpass123","confirmNewPassword":"other12345"}`)
	c.Set("user", &domain.User{ID: "id-1"})

	err := h.ChangePassword(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Users_PassesQuery(t *testing.T) {
	stub := &stubAuthService{
		listUsersFn: func(ctx context.Context, q ports.UserQuery) (*ports.UserPage, error) {
			if q.Search != "alice" || q.Page != 2 || q.Limit != 5 {
				t.Fatalf("unexpected query: %+v", q)
			}
			return &ports.UserPage{
				Users: []domain.User{{EmployeeID: "EMP123456"}},
				Total: 6, Page: 2, Limit: 5, Pages: 2,
			}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newTestContext(t, http.MethodGet, "/auth-service/users?search=alice&page=2&limit=5", "")
	if err := h.Users(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	pagination, ok := resp["pagination"].(map[string]any)
	if !ok || pagination["pages"] != float64(2) {
		t.Fatalf("unexpected pagination: %+v", resp["pagination"])
	}
}

func TestAuthHandler_UserByID_NotFoundPropagates(t *testing.T) {
	stub := &stubAuthService{
		getUserFn: func(ctx context.Context, id string) (*domain.User, error) {
			return nil, domain.ErrUserNotFound
		},
	}
	h := NewAuthHandler(stub)

	c, _ := newTestContext(t, http.MethodGet, "/auth-service/users/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	if err := h.UserByID(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound to propagate, got %v", err)
	}
}

func TestAuthHandler_Health(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	c, rec := newTestContext(t, http.MethodGet, "/auth-service/health", "")
	if err := h.Health(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"OK"`) {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}
