package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	authrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/auth"
	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
	"github.com/HaiderAli3D/LOKI-AI/internal/requestdata"
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type AuthService interface {
	Register(dbc dbctx.Context, input RegisterInput) (*types.User, *TokenPair, error)
	Login(dbc dbctx.Context, email, password string) (*types.User, *TokenPair, error)
	// Refresh rotates the token pair; the presented refresh token is
	// retired in the same transaction.
	Refresh(dbc dbctx.Context, refreshToken string) (*TokenPair, error)
	Logout(dbc dbctx.Context) error
	// SetContextFromToken verifies a bearer token and attaches the
	// caller's identity to the context.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	log        *logger.Logger
	db         *gorm.DB
	users      authrepo.UserRepo
	tokens     authrepo.UserTokenRepo
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	log *logger.Logger,
	db *gorm.DB,
	users authrepo.UserRepo,
	tokens authrepo.UserTokenRepo,
	jwtSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) (AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, fmt.Errorf("missing JWT secret")
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &authService{
		log:        log.With("service", "AuthService"),
		db:         db,
		users:      users,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (s *authService) Register(dbc dbctx.Context, input RegisterInput) (*types.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, apierr.Invalid(fmt.Errorf("invalid email"))
	}
	if len(input.Password) < 8 {
		return nil, nil, apierr.Invalid(fmt.Errorf("password must be at least 8 characters"))
	}

	existing, err := s.users.GetByEmails(dbc, []string{email})
	if err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("check email: %w", err))
	}
	if len(existing) > 0 {
		return nil, nil, apierr.New(http.StatusConflict, apierr.CodeConflict, fmt.Errorf("email already registered"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("hash password: %w", err))
	}

	user := &types.User{
		ID:          uuid.New(),
		Email:       email,
		Password:    string(hashed),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        types.RoleStudent,
	}
	if _, err := s.users.Create(dbc, []*types.User{user}); err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("create user: %w", err))
	}

	pair, err := s.issueTokens(dbc, user)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("user registered", "user_id", user.ID, "email", email)
	return user, pair, nil
}

func (s *authService) Login(dbc dbctx.Context, email, password string) (*types.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := s.users.GetByEmails(dbc, []string{email})
	if err != nil {
		return nil, nil, apierr.Storage(fmt.Errorf("load user: %w", err))
	}
	if len(users) == 0 {
		return nil, nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("invalid credentials"))
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("invalid credentials"))
	}

	pair, err := s.issueTokens(dbc, user)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("user logged in", "user_id", user.ID)
	return user, pair, nil
}

func (s *authService) Refresh(dbc dbctx.Context, refreshToken string) (*TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apierr.Invalid(fmt.Errorf("missing refresh token"))
	}

	rows, err := s.tokens.GetByRefreshTokens(dbc, []string{refreshToken})
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("load refresh token: %w", err))
	}
	if len(rows) == 0 || time.Now().After(rows[0].ExpiresAt) {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("refresh token invalid or expired"))
	}
	row := rows[0]

	users, err := s.users.GetByIDs(dbc, []uuid.UUID{row.UserID})
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("load user: %w", err))
	}
	if len(users) == 0 {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("user no longer exists"))
	}

	var pair *TokenPair
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err = transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		if err := s.tokens.FullDeleteByIDs(inner, []uuid.UUID{row.ID}); err != nil {
			return err
		}
		p, err := s.issueTokens(inner, users[0])
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *authService) Logout(dbc dbctx.Context) error {
	rd := requestdata.GetRequestData(dbc.Ctx)
	if rd == nil || rd.TokenString == "" {
		return apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("not authenticated"))
	}
	rows, err := s.tokens.GetByAccessTokens(dbc, []string{rd.TokenString})
	if err != nil {
		return apierr.Storage(fmt.Errorf("load token: %w", err))
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.tokens.FullDeleteByIDs(dbc, ids); err != nil {
		return apierr.Storage(fmt.Errorf("delete token: %w", err))
	}
	s.log.Info("user logged out", "user_id", rd.UserID)
	return nil
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("missing token"))
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("invalid token"))
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("invalid token subject"))
	}

	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.tokens.GetByAccessTokens(dbc, []string{tokenString})
	if err != nil {
		return ctx, apierr.Storage(fmt.Errorf("load token: %w", err))
	}
	if len(rows) == 0 {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("token revoked"))
	}

	users, err := s.users.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return ctx, apierr.Storage(fmt.Errorf("load user: %w", err))
	}
	if len(users) == 0 {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("user no longer exists"))
	}

	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        users[0].Role,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (s *authService) issueTokens(dbc dbctx.Context, user *types.User) (*TokenPair, error) {
	now := time.Now().UTC()
	expires := now.Add(s.accessTTL)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, apierr.Storage(fmt.Errorf("sign access token: %w", err))
	}

	row := &types.UserToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    now.Add(s.refreshTTL),
	}
	if _, err := s.tokens.Create(dbc, []*types.UserToken{row}); err != nil {
		return nil, apierr.Storage(fmt.Errorf("store token: %w", err))
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    expires,
	}, nil
}
