package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contentforge/studio/internal/models"
)

var errMissingToken = errors.New("auth response carries no token")

// authEnvelope accepts {token, user} as well as a flat user object with a token field.
type authEnvelope struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

func decodeAuth(raw json.RawMessage) (*models.AuthResult, error) {
	var env authEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Token == "" {
		return nil, errMissingToken
	}
	res := &models.AuthResult{Token: env.Token}
	userJSON := env.User
	if len(userJSON) == 0 || string(userJSON) == "null" {
		userJSON = raw
	}
	if err := json.Unmarshal(userJSON, &res.User); err != nil {
		return nil, err
	}
	return res, nil
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &raw); err != nil {
		return nil, err
	}
	return decodeAuth(raw)
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthResult, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &raw); err != nil {
		return nil, err
	}
	return decodeAuth(raw)
}

// Me returns the account bound to the current token.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var raw struct {
		User *models.User `json:"user"`
	}
	var body json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &body); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &raw); err == nil && raw.User != nil && raw.User.ID != "" {
		return raw.User, nil
	}
	var user models.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
