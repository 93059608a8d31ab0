// Package gotrue is the HTTP transport for GoTrue compatible auth APIs.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"propmaster/internal/identity/tokens"
	"propmaster/internal/session/models"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New builds a client for the auth API rooted at baseURL, e.g.
// https://project.supabase.co/auth/v1.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type signUpRequest struct {
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Data     tokens.UserMetadata `json:"data"`
}

// errorBody covers the error shapes GoTrue versions return.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*tokens.Response, error) {
	var resp tokens.Response
	err := c.do(ctx, "/token?grant_type=password", "", passwordGrant{Email: email, Password: password}, &resp,
		func(status int, msg string) error {
			if status == http.StatusBadRequest || status == http.StatusUnauthorized {
				return dErrors.New(dErrors.CodeInvalidCredentials, orDefault(msg, "invalid login credentials"))
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*tokens.Response, error) {
	var resp tokens.Response
	err := c.do(ctx, "/token?grant_type=refresh_token", "", refreshGrant{RefreshToken: refreshToken}, &resp,
		func(status int, msg string) error {
			if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusNotFound {
				return dErrors.Wrap(sentinel.ErrRejected, dErrors.CodeStaleToken, orDefault(msg, "refresh token rejected"))
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignUp returns a token response when the provider auto-confirms. When
// confirmation is pending the provider answers with the bare user object,
// which is returned as a response without access token.
func (c *Client) SignUp(ctx context.Context, email, password string, meta models.Metadata) (*tokens.Response, error) {
	body := signUpRequest{
		Email:    email,
		Password: password,
		Data:     tokens.UserMetadata{FullName: meta.DisplayName, Role: meta.Role.String()},
	}
	var raw json.RawMessage
	err := c.do(ctx, "/signup", "", body, &raw, func(status int, msg string) error {
		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			return dErrors.New(dErrors.CodeValidation, orDefault(msg, "sign-up rejected"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resp tokens.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "malformed sign-up response")
	}
	if resp.AccessToken != "" {
		return &resp, nil
	}
	var pending tokens.UserPayload
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "malformed sign-up response")
	}
	return &tokens.Response{User: pending}, nil
}

// Logout revokes the session behind accessToken. A token the provider no
// longer recognises counts as signed out.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, "/logout", accessToken, nil, nil, func(status int, _ string) error {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return errAlreadySignedOut
		}
		return nil
	})
}

var errAlreadySignedOut = errors.New("already signed out")

// do POSTs body to path and decodes a 2xx answer into out. classify maps
// 4xx answers to domain errors; unclassified failures are unavailability.
func (c *Client) do(
	ctx context.Context,
	path, bearer string,
	body any,
	out any,
	classify func(status int, msg string) error,
) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && errors.Is(urlErr.Err, context.Canceled) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "auth api unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "malformed auth api response")
		}
		return nil
	}

	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &eb)
	if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		if mapped := classify(resp.StatusCode, eb.text()); mapped != nil {
			if errors.Is(mapped, errAlreadySignedOut) {
				return nil
			}
			return mapped
		}
	}
	return dErrors.Wrap(
		fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, eb.text()),
		dErrors.CodeProviderUnavailable, "auth api error")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
