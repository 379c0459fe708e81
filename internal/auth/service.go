package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-travelplanner/internal/db"
	"backend-travelplanner/internal/shared/apperr"
	"backend-travelplanner/internal/shared/validate"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	uniqueViolation = "23505"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errRefreshInvalid     = errors.New("refresh token invalid")
)

var (
	signTokenFn       = (*Service).signToken
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
)

type Service struct {
	secret []byte
	db     db.Querier
}

// Claims carries Type so a refresh token is never accepted where an access
// token is expected, and the reverse.
type Claims struct {
	UserID string `json:"user_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

// Register creates the user and its first refresh token in one transaction.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, TokenResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return User{}, TokenResponse{}, err
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenResponse{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	}

	var tokens TokenResponse
	err = db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO users (id, email, name, password_hash)
			VALUES ($1,$2,$3,$4)
			RETURNING created_at
		`, user.ID, user.Email, user.Name, user.PasswordHash)
		if err := row.Scan(&user.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return apperr.Validation("email", "is already registered")
			}
			return apperr.Persistence(err)
		}

		var err error
		tokens, err = s.issueTokens(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return User{}, TokenResponse{}, asPersistence(err)
	}
	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(req.Email)))

	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, TokenResponse{}, errInvalidCredentials
		}
		return User{}, TokenResponse{}, apperr.Persistence(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, errInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	return s.issueTokens(ctx, s.db, userID)
}

// Refresh revokes the presented refresh token and issues a new pair in the
// same transaction. A token is good for one exchange.
func (s *Service) Refresh(ctx context.Context, token string) (TokenResponse, error) {
	claims, err := s.parseToken(token, tokenTypeRefresh)
	if err != nil {
		return TokenResponse{}, errRefreshInvalid
	}

	var tokens TokenResponse
	err = db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		userID, expiresAt, err := revokeRefreshToken(ctx, tx, token)
		if errors.Is(err, pgx.ErrNoRows) {
			return errRefreshInvalid
		}
		if err != nil {
			return apperr.Persistence(err)
		}
		if userID != claims.UserID || time.Now().After(expiresAt) {
			return errRefreshInvalid
		}
		tokens, err = s.issueTokens(ctx, tx, userID)
		return err
	})
	if errors.Is(err, errRefreshInvalid) {
		return TokenResponse{}, err
	}
	if err != nil {
		return TokenResponse{}, asPersistence(err)
	}
	return tokens, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token, tokenTypeAccess)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) issueTokens(ctx context.Context, q db.Querier, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, tokenTypeAccess, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, userID, tokenTypeRefresh, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := saveRefreshToken(ctx, q, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, apperr.Persistence(err)
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) signToken(userID, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token, typ string) (*Claims, error) {
	return parseClaims(token, s.secret, typ)
}

func parseClaims(token string, secret []byte, typ string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, errors.New("token invalid")
	}
	if claims.Type != typ {
		return nil, errors.New("wrong token type")
	}
	return claims, nil
}

func saveRefreshToken(ctx context.Context, q db.Querier, token, userID string, ttl time.Duration) error {
	_, err := q.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	return err
}

// revokeRefreshToken marks a live token revoked and returns its owner. A
// concurrent exchange of the same token waits on the row and then finds
// nothing, so only one of them wins.
func revokeRefreshToken(ctx context.Context, q db.Querier, token string) (string, time.Time, error) {
	row := q.QueryRow(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token = $1 AND revoked_at IS NULL
		RETURNING user_id, expires_at
	`, token)
	var userID string
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}

func isUniqueViolation(err error) bool {
	var pgError *pgconn.PgError
	return errors.As(err, &pgError) && pgError.Code == uniqueViolation
}

// asPersistence leaves application errors alone and treats anything else
// that escapes a transaction (begin, commit) as a storage failure.
func asPersistence(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Persistence(err)
}
