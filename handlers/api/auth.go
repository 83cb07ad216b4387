package api

import (
	"context"
	"errors"

	"github.com/valyala/fasthttp"

	"leadsdash/models"
)

// ErrNoToken is returned when /token answers 2xx without an access token
var ErrNoToken = errors.New("authenticate: response carries no access_token")

// TokenResponse is the body of POST /token
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

// Authenticate exchanges credentials for a bearer token. The credentials are
// sent form-encoded.
func (c *Client) Authenticate(ctx context.Context, creds models.Credentials) (*TokenResponse, error) {
	const op = "authenticate"

	req := c.newRequest(fasthttp.MethodPost, "/token", "")
	defer fasthttp.ReleaseRequest(req)

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Add("username", creds.Username)
	args.Add("password", creds.Password)

	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBody(args.QueryString())

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.do(ctx, op, req, resp); err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(op, resp, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &out, nil
}

// Register creates an account. Any 2xx answer counts as success.
func (c *Client) Register(ctx context.Context, creds models.Credentials) error {
	req := c.newRequest(fasthttp.MethodPost, "/register", "")
	defer fasthttp.ReleaseRequest(req)

	if err := setJSONBody(req, creds); err != nil {
		return err
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	return c.do(ctx, "register", req, resp)
}
