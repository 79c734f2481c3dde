package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abduss/mediadrive/internal/config"
	"github.com/abduss/mediadrive/internal/session"
	"github.com/golang-jwt/jwt/v5"
)

const maxErrorBody = 64 << 10

// GoTrue talks to a hosted GoTrue-compatible auth API (Supabase Auth).
type GoTrue struct {
	baseURL string
	anonKey string
	client  *http.Client
	nowFunc func() time.Time
}

// NewGoTrue builds a client for cfg.URL.
func NewGoTrue(cfg config.AuthConfig, client *http.Client) *GoTrue {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &GoTrue{
		baseURL: cfg.URL,
		anonKey: cfg.AnonKey,
		client:  client,
		nowFunc: time.Now,
	}
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         *gotrueUser `json:"user"`

	// signup without auto-confirm answers with the bare user
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueError struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (g *GoTrue) SignUp(ctx context.Context, email, password string) (*session.Session, error) {
	var out gotrueSession
	if err := g.do(ctx, http.MethodPost, "/auth/v1/signup", "", credentials{email, password}, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, nil
	}
	return g.toSession(out), nil
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	var out gotrueSession
	if err := g.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentials{email, password}, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("identity service returned no session")
	}
	return g.toSession(out), nil
}

// Refresh exchanges a refresh token for a new session. A rejected refresh
// token yields ErrUnauthorized.
func (g *GoTrue) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	var out gotrueSession
	body := map[string]string{"refresh_token": refreshToken}
	if err := g.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &out); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && (pe.Status == http.StatusBadRequest || pe.Status == http.StatusUnauthorized) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("identity service returned no session")
	}
	return g.toSession(out), nil
}

func (g *GoTrue) SignOut(ctx context.Context, sess *session.Session) error {
	err := g.do(ctx, http.MethodPost, "/auth/v1/logout", sess.AccessToken, nil, nil)
	var pe *ProviderError
	if errors.As(err, &pe) && (pe.Status == http.StatusUnauthorized || pe.Status == http.StatusNotFound) {
		// the token is already gone
		return nil
	}
	return err
}

func (g *GoTrue) UpdatePassword(ctx context.Context, sess *session.Session, newPassword string) error {
	body := map[string]string{"password": newPassword}
	return g.do(ctx, http.MethodPut, "/auth/v1/user", sess.AccessToken, body, nil)
}

func (g *GoTrue) User(ctx context.Context, accessToken string) (*session.Session, error) {
	var user gotrueUser
	if err := g.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return &session.Session{
		UserID:      user.ID,
		Email:       user.Email,
		ExpiresAt:   tokenExpiry(accessToken),
		AccessToken: accessToken,
	}, nil
}

func (g *GoTrue) toSession(out gotrueSession) *session.Session {
	sess := &session.Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    tokenExpiry(out.AccessToken),
	}
	if out.User != nil {
		sess.UserID = out.User.ID
		sess.Email = out.User.Email
	}
	if sess.ExpiresAt.IsZero() {
		switch {
		case out.ExpiresAt > 0:
			sess.ExpiresAt = time.Unix(out.ExpiresAt, 0)
		case out.ExpiresIn > 0:
			sess.ExpiresAt = g.nowFunc().Add(time.Duration(out.ExpiresIn) * time.Second)
		}
	}
	return sess
}

func (g *GoTrue) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	g.authorize(req, bearer)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeProviderError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (g *GoTrue) authorize(req *http.Request, bearer string) {
	req.Header.Set("apikey", g.anonKey)
	if bearer == "" {
		bearer = g.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
}

func decodeProviderError(resp *http.Response) error {
	pe := &ProviderError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var ge gotrueError
	if json.Unmarshal(raw, &ge) == nil {
		pe.Code = ge.ErrorCode
		if pe.Code == "" && len(ge.Code) > 0 && ge.Code[0] == '"' {
			_ = json.Unmarshal(ge.Code, &pe.Code)
		}
		for _, m := range []string{ge.Msg, ge.Message, ge.ErrorDescription, ge.Error} {
			if m != "" {
				pe.Message = m
				break
			}
		}
	}
	return pe
}

// tokenExpiry reads the exp claim without verifying the signature; the
// identity service is the one that validates tokens.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
