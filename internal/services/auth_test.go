package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/requestdata"
)

type fakeUserRepo struct {
	rows []*types.User
}

func (r *fakeUserRepo) Create(dbc dbctx.Context, rows []*types.User) ([]*types.User, error) {
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *fakeUserRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.User, error) {
	var out []*types.User
	for _, u := range r.rows {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetByEmails(dbc dbctx.Context, emails []string) ([]*types.User, error) {
	var out []*types.User
	for _, u := range r.rows {
		for _, e := range emails {
			if u.Email == e {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

type fakeUserTokenRepo struct {
	rows []*types.UserToken
}

func (r *fakeUserTokenRepo) Create(dbc dbctx.Context, rows []*types.UserToken) ([]*types.UserToken, error) {
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *fakeUserTokenRepo) GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.UserToken, error) {
	var out []*types.UserToken
	for _, t := range r.rows {
		for _, id := range userIDs {
			if t.UserID == id {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (r *fakeUserTokenRepo) GetByAccessTokens(dbc dbctx.Context, tokens []string) ([]*types.UserToken, error) {
	var out []*types.UserToken
	for _, t := range r.rows {
		for _, v := range tokens {
			if t.AccessToken == v {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (r *fakeUserTokenRepo) GetByRefreshTokens(dbc dbctx.Context, tokens []string) ([]*types.UserToken, error) {
	var out []*types.UserToken
	for _, t := range r.rows {
		for _, v := range tokens {
			if t.RefreshToken == v {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (r *fakeUserTokenRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	kept := r.rows[:0]
	for _, t := range r.rows {
		doomed := false
		for _, id := range ids {
			if t.ID == id {
				doomed = true
			}
		}
		if !doomed {
			kept = append(kept, t)
		}
	}
	r.rows = kept
	return nil
}

func newAuthFixture(t *testing.T) (AuthService, *fakeUserRepo, *fakeUserTokenRepo) {
	t.Helper()
	users := &fakeUserRepo{}
	tokens := &fakeUserTokenRepo{}
	svc, err := NewAuthService(testLogger(t), nil, users, tokens, "test-secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc, users, tokens
}

func TestAuthServiceRequiresSecret(t *testing.T) {
	if _, err := NewAuthService(testLogger(t), nil, &fakeUserRepo{}, &fakeUserTokenRepo{}, "  ", 0, 0); err == nil {
		t.Fatal("expected empty JWT secret to be rejected")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	dbc := testDBC()

	user, pair, err := svc.Register(dbc, RegisterInput{Email: "Student@Example.COM", Password: "correct horse", DisplayName: "Sam"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "student@example.com" {
		t.Fatalf("email not normalised: %q", user.Email)
	}
	if user.Role != types.RoleStudent {
		t.Fatalf("new users default to student, got %q", user.Role)
	}
	if user.Password == "correct horse" {
		t.Fatal("password stored in plaintext")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("register must issue a token pair")
	}

	if _, _, err := svc.Register(dbc, RegisterInput{Email: "student@example.com", Password: "another pass"}); apierr.CodeOf(err) != apierr.CodeConflict {
		t.Fatalf("duplicate email: got code %q", apierr.CodeOf(err))
	}
	if _, _, err := svc.Register(dbc, RegisterInput{Email: "short@example.com", Password: "short"}); apierr.CodeOf(err) != apierr.CodeInvalidRequest {
		t.Fatalf("short password: got code %q", apierr.CodeOf(err))
	}

	if _, _, err := svc.Login(dbc, "student@example.com", "correct horse"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	// Wrong password and unknown account fail identically.
	if _, _, err := svc.Login(dbc, "student@example.com", "wrong"); apierr.CodeOf(err) != apierr.CodeUnauthenticated {
		t.Fatalf("wrong password: got code %q", apierr.CodeOf(err))
	}
	if _, _, err := svc.Login(dbc, "nobody@example.com", "whatever"); apierr.CodeOf(err) != apierr.CodeUnauthenticated {
		t.Fatalf("unknown user: got code %q", apierr.CodeOf(err))
	}
}

func TestSetContextFromToken(t *testing.T) {
	svc, _, tokens := newAuthFixture(t)
	dbc := testDBC()

	user, pair, err := svc.Register(dbc, RegisterInput{Email: "student@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, err := svc.SetContextFromToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID != user.ID || rd.Role != types.RoleStudent {
		t.Fatalf("unexpected request data: %+v", rd)
	}

	if _, err := svc.SetContextFromToken(context.Background(), pair.AccessToken+"x"); apierr.CodeOf(err) != apierr.CodeUnauthenticated {
		t.Fatalf("tampered token: got code %q", apierr.CodeOf(err))
	}

	// Deleting the token row revokes an otherwise valid JWT.
	ids := make([]uuid.UUID, 0, len(tokens.rows))
	for _, row := range tokens.rows {
		ids = append(ids, row.ID)
	}
	_ = tokens.FullDeleteByIDs(dbc, ids)
	if _, err := svc.SetContextFromToken(context.Background(), pair.AccessToken); apierr.CodeOf(err) != apierr.CodeUnauthenticated {
		t.Fatalf("revoked token: got code %q", apierr.CodeOf(err))
	}
}

func TestLogoutDeletesTokenRows(t *testing.T) {
	svc, _, tokens := newAuthFixture(t)
	dbc := testDBC()

	user, pair, err := svc.Register(dbc, RegisterInput{Email: "student@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx := requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		TokenString: pair.AccessToken,
		UserID:      user.ID,
		Role:        user.Role,
	})
	if err := svc.Logout(dbctx.Context{Ctx: ctx}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(tokens.rows) != 0 {
		t.Fatalf("token rows survive logout: %d", len(tokens.rows))
	}

	if err := svc.Logout(testDBC()); apierr.CodeOf(err) != apierr.CodeUnauthenticated {
		t.Fatalf("logout without identity: got code %q", apierr.CodeOf(err))
	}
}
