package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-cragmap/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountsOffline    = errors.New("account store unavailable")
)

// Service is the account backend of the identity provider.
type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	UserID       string `json:"user_id"`
	DisplayLabel string `json:"display_label"`
	jwt.RegisteredClaims
}

func NewService(secret string, q db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     q,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Account, TokenResponse, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		return Account{}, TokenResponse{}, errors.New("email and password required")
	}
	if len(req.Password) < 6 {
		return Account{}, TokenResponse{}, errors.New("password must be at least 6 characters")
	}
	if s.db == nil {
		return Account{}, TokenResponse{}, ErrAccountsOffline
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, TokenResponse{}, err
	}

	acct := Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO climbers (id, email, display_name, password_hash)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, acct.ID, acct.Email, acct.DisplayName, acct.PasswordHash)
	if err := row.Scan(&acct.CreatedAt); err != nil {
		return Account{}, TokenResponse{}, err
	}

	tokens, err := s.IssueToken(acct)
	if err != nil {
		return Account{}, TokenResponse{}, err
	}
	return acct, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Account, TokenResponse, error) {
	if s.db == nil {
		return Account{}, TokenResponse{}, ErrAccountsOffline
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM climbers WHERE email = $1
	`, strings.TrimSpace(strings.ToLower(req.Email)))

	var acct Account
	if err := row.Scan(&acct.ID, &acct.Email, &acct.DisplayName, &acct.PasswordHash, &acct.CreatedAt); err != nil {
		return Account{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		return Account{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.IssueToken(acct)
	if err != nil {
		return Account{}, TokenResponse{}, err
	}
	return acct, tokens, nil
}

func (s *Service) IssueToken(acct Account) (TokenResponse, error) {
	access, err := s.signToken(Identity{ID: acct.ID, DisplayLabel: acct.Label()}, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

// Verify returns the identity an access token was issued for.
func (s *Service) Verify(token string) (Identity, error) {
	claims, err := parseClaims(token, s.secret)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: claims.UserID, DisplayLabel: claims.DisplayLabel}, nil
}

func (s *Service) signToken(id Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:       id.ID,
		DisplayLabel: id.DisplayLabel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func parseClaims(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}
