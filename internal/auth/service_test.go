package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-travelplanner/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndLogin(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now().Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user@example.com", "User One", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService("test-secret", mock)
	user, tokens, err := svc.Register(context.Background(), RegisterRequest{
		Email:    " User@Example.com ",
		Name:     "User One",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected user and tokens")
	}

	mock.ExpectQuery(`SELECT id, email, name, password_hash, created_at`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "password_hash", "created_at"}).
			AddRow(user.ID, user.Email, user.Name, user.PasswordHash, createdAt))

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), user.ID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, loginTokens, err := svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginTokens.AccessToken == "" || loginTokens.RefreshToken == "" {
		t.Fatalf("expected login tokens")
	}

	userID, err := svc.ValidateAccessToken(loginTokens.AccessToken)
	if err != nil || userID != user.ID {
		t.Fatalf("validate access token: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService("test-secret", nil)

	_, _, err := svc.Register(context.Background(), RegisterRequest{Email: "", Password: "password123"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for missing email, got %v", err)
	}
	_, _, err = svc.Register(context.Background(), RegisterRequest{Email: "user@example.com", Password: "short"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	tokens, err := svc.GenerateTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(5*time.Minute)))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	next, err := svc.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == "" || next.RefreshToken == tokens.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}

	// The old token was revoked by the first exchange.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	if _, err := svc.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, errRefreshInvalid) {
		t.Fatalf("expected replayed token to be rejected, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := NewService("test-secret", nil)
	access, err := svc.signToken("user-1", tokenTypeAccess, accessTokenTTL)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), access); !errors.Is(err, errRefreshInvalid) {
		t.Fatalf("expected access token to be refused, got %v", err)
	}
}

func TestValidateAccessTokenRejectsRefreshToken(t *testing.T) {
	svc := NewService("test-secret", nil)
	refresh, err := svc.signToken("user-1", tokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ValidateAccessToken(refresh); err == nil {
		t.Fatalf("expected refresh token to be refused as access token")
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)

	mock.ExpectQuery(`SELECT id, email, name, password_hash, created_at`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "password_hash", "created_at"}).
			AddRow("user-1", "user@example.com", "user", string(hash), time.Now()))

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "wrong"})
	if !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, name, password_hash, created_at`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	if !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, name, password_hash, created_at`).
		WithArgs("user@example.com").
		WillReturnError(pgErr)

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "user@example.com", Password: "pass"})
	if !apperr.IsKind(err, apperr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestGenerateTokensSaveRefreshError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgErr)

	svc := NewService("test-secret", mock)
	_, err = svc.GenerateTokens(context.Background(), "user-1")
	if !apperr.IsKind(err, apperr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestGenerateTokensSignError(t *testing.T) {
	oldSign := signTokenFn
	call := 0
	signTokenFn = func(_ *Service, _, _ string, _ time.Duration) (string, error) {
		call++
		if call == 2 {
			return "", pgErr
		}
		return "token", nil
	}
	defer func() { signTokenFn = oldSign }()

	svc := NewService("test-secret", nil)
	if _, err := svc.GenerateTokens(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRegisterHashError(t *testing.T) {
	oldHash := hashPasswordFn
	hashPasswordFn = func(_ []byte, _ int) ([]byte, error) {
		return nil, pgErr
	}
	defer func() { hashPasswordFn = oldHash }()

	svc := NewService("test-secret", nil)
	_, _, err := svc.Register(context.Background(), RegisterRequest{Email: "user@example.com", Password: "password123"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseTokenInvalid(t *testing.T) {
	oldParse := parseWithClaimsFn
	parseWithClaimsFn = func(_ string, _ jwt.Claims, _ jwt.Keyfunc, _ ...jwt.ParserOption) (*jwt.Token, error) {
		return &jwt.Token{Valid: false, Claims: &Claims{}}, nil
	}
	defer func() { parseWithClaimsFn = oldParse }()

	svc := NewService("test-secret", nil)
	if _, err := svc.parseToken("token", tokenTypeAccess); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	other := NewService("other-secret", nil)
	token, err := other.signToken("user-1", tokenTypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	svc := NewService("test-secret", nil)
	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestRegisterDBError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user@example.com", "", pgxmock.AnyArg()).
		WillReturnError(pgErr)
	mock.ExpectRollback()

	svc := NewService("test-secret", mock)
	_, _, err = svc.Register(context.Background(), RegisterRequest{Email: "user@example.com", Password: "password123"})
	if !apperr.IsKind(err, apperr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user@example.com", "", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	svc := NewService("test-secret", mock)
	_, _, err = svc.Register(context.Background(), RegisterRequest{Email: "user@example.com", Password: "password123"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := apperr.HTTP(err); got.Code != fiber.StatusBadRequest || got.Message != "email: is already registered" {
		t.Fatalf("unexpected http error: %d %q", got.Code, got.Message)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterRollsBackWhenRefreshSaveFails(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user@example.com", "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgErr)
	mock.ExpectRollback()

	svc := NewService("test-secret", mock)
	_, _, err = svc.Register(context.Background(), RegisterRequest{Email: "user@example.com", Password: "password123"})
	if !apperr.IsKind(err, apperr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("user insert was not rolled back: %v", err)
	}
}

func TestRegisterBeginError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(pgErr)

	svc := NewService("test-secret", mock)
	_, _, err = svc.Register(context.Background(), RegisterRequest{Email: "user@example.com", Password: "password123"})
	if !apperr.IsKind(err, apperr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService("test-secret", mock)
	refresh, err := svc.signToken("user-2", tokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs(refresh).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-2", time.Now().Add(-time.Minute)))
	mock.ExpectRollback()

	if _, err = svc.Refresh(context.Background(), refresh); !errors.Is(err, errRefreshInvalid) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestRefreshOwnerMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService("test-secret", mock)
	refresh, err := svc.signToken("user-2", tokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs(refresh).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("someone-else", time.Now().Add(time.Hour)))
	mock.ExpectRollback()

	if _, err = svc.Refresh(context.Background(), refresh); !errors.Is(err, errRefreshInvalid) {
		t.Fatalf("expected owner mismatch to be rejected, got %v", err)
	}
}

func TestRefreshLookupError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService("test-secret", mock)
	refresh, err := svc.signToken("user-3", tokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs(refresh).
		WillReturnError(pgErr)
	mock.ExpectRollback()

	if _, err = svc.Refresh(context.Background(), refresh); !apperr.IsKind(err, apperr.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

var pgErr = errors.New("db error")
