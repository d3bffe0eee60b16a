package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

const (
	adminLoginPath       = "/api/auth/login"
	participantLoginPath = "/api/participant-auth/login"
	verifyPath           = "/api/auth/verify"
)

var (
	errMissingAck   = errors.New("success response without acknowledgement")
	errMissingToken = errors.New("login response without access token")
)

type AuthClient struct {
	client *Client
}

func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

func (a *AuthClient) Login(ctx context.Context, role domain.Role, email, password string) ports.LoginResult {
	path := participantLoginPath
	if role == domain.RoleAdmin {
		path = adminLoginPath
	}

	body, outcome := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   path,
		body:   loginRequest{Email: email, Password: password},
	})
	if !outcome.OK() {
		return ports.LoginResult{Outcome: outcome}
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.LoginResult{Outcome: malformed(outcome.Status, err)}
	}
	if resp.AccessToken == "" {
		return ports.LoginResult{Outcome: malformed(outcome.Status, errMissingToken)}
	}

	result := ports.LoginResult{Outcome: outcome, AccessToken: resp.AccessToken}
	if user := resp.User.toDomain(role); user != nil {
		result.User = *user
	} else {
		result.User = domain.Identity{Email: email, Role: role}
	}
	return result
}

func (a *AuthClient) Verify(ctx context.Context) ports.VerifyResult {
	body, outcome := a.client.do(ctx, request{
		method: http.MethodGet,
		path:   verifyPath,
		bearer: true,
	})
	if !outcome.OK() {
		return ports.VerifyResult{Outcome: outcome}
	}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.VerifyResult{Outcome: malformed(outcome.Status, err)}
	}
	result := ports.VerifyResult{Outcome: outcome}
	if id, ok := a.client.session.Identity(); ok {
		result.User = id
	}
	if user := resp.User.toDomain(result.User.Role); user != nil {
		result.User = *user
	}
	return result
}
