package oauth2as

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/store"
)

var supportedGrantTypes = map[string]bool{
	"authorization_code": true,
	"refresh_token":      true,
	"client_credentials": true,
}

// RegisterClientRequest is the RFC 7591 registration request body.
type RegisterClientRequest struct {
	ClientName     string   `json:"client_name"`
	RedirectURIs   []string `json:"redirect_uris"`
	GrantTypes     []string `json:"grant_types"`
	Scopes         []string `json:"scope_list"`
	AllowPlainPKCE bool     `json:"allow_plain_pkce"`
}

// RegisterClientResponse is returned once; the plaintext secret is
// never retrievable again.
type RegisterClientResponse struct {
	ClientID              string   `json:"client_id"`
	ClientSecret          string   `json:"client_secret,omitempty"`
	ClientName            string   `json:"client_name"`
	RedirectURIs          []string `json:"redirect_uris"`
	GrantTypes            []string `json:"grant_types"`
	Scopes                []string `json:"scope_list"`
	RegistrationAccessTok string   `json:"registration_access_token"`
}

// ClientRegistrar implements RFC 7591 client registration against the
// store, hashing confidential clients' secrets with bcrypt (the same
// cost-factor KDF the teacher's user-password path uses) so the
// plaintext secret exists only in the single response.
type ClientRegistrar struct {
	repo *store.OAuthClientRepository
}

func NewClientRegistrar(repo *store.OAuthClientRepository) *ClientRegistrar {
	return &ClientRegistrar{repo: repo}
}

func (c *ClientRegistrar) Register(ctx context.Context, tenantID kernel.TenantID, req RegisterClientRequest) (*RegisterClientResponse, error) {
	if req.ClientName == "" {
		return nil, asErrors.New(ErrInvalidRequest).WithDetail("field", "client_name")
	}
	if len(req.RedirectURIs) == 0 {
		return nil, asErrors.New(ErrInvalidRequest).WithDetail("field", "redirect_uris")
	}
	if len(req.GrantTypes) == 0 {
		req.GrantTypes = []string{"authorization_code"}
	}
	for _, gt := range req.GrantTypes {
		if !supportedGrantTypes[gt] {
			return nil, asErrors.New(ErrInvalidRequest).WithDetail("unsupported_grant_type", gt)
		}
	}

	clientID := kernel.NewClientID(uuid.NewString())
	isConfidential := containsString(req.GrantTypes, "client_credentials")

	var secretHash sql.NullString
	var plaintextSecret string
	if isConfidential {
		secret, err := randomSecret(32)
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, errx.Wrap(err, "hash client secret", errx.TypeInternal)
		}
		plaintextSecret = secret
		secretHash = sql.NullString{String: string(hash), Valid: true}
	}

	if err := c.repo.Create(ctx, store.OAuthClient{
		ID:               clientID,
		TenantID:         tenantID,
		ClientSecretHash: secretHash,
		ClientName:       req.ClientName,
		RedirectURIs:     req.RedirectURIs,
		GrantTypes:       req.GrantTypes,
		Scopes:           req.Scopes,
		IsConfidential:   isConfidential,
		AllowPlainPKCE:   req.AllowPlainPKCE,
	}); err != nil {
		return nil, errx.Wrap(err, "create oauth client", errx.TypeInternal)
	}

	registrationToken, err := randomSecret(32)
	if err != nil {
		return nil, err
	}

	return &RegisterClientResponse{
		ClientID:              clientID.String(),
		ClientSecret:          plaintextSecret,
		ClientName:            req.ClientName,
		RedirectURIs:          req.RedirectURIs,
		GrantTypes:            req.GrantTypes,
		Scopes:                req.Scopes,
		RegistrationAccessTok: registrationToken,
	}, nil
}

// AuthenticateClient verifies client credentials (HTTP Basic or form
// body, either is accepted per RFC 6749 §2.3.1) and returns the stored
// client. A public client (no stored secret hash) authenticates by
// client_id alone.
func AuthenticateClient(ctx context.Context, repo *store.OAuthClientRepository, clientID, clientSecret string) (*store.OAuthClient, error) {
	if clientID == "" {
		return nil, asErrors.New(ErrInvalidClient).WithDetail("reason", "missing client_id")
	}
	client, err := repo.Get(ctx, kernel.NewClientID(clientID))
	if err != nil {
		return nil, asErrors.New(ErrInvalidClient).WithDetail("reason", "unknown client")
	}
	if client.IsConfidential {
		if !client.ClientSecretHash.Valid || clientSecret == "" {
			return nil, asErrors.New(ErrInvalidClient).WithDetail("reason", "missing client_secret")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash.String), []byte(clientSecret)); err != nil {
			return nil, asErrors.New(ErrInvalidClient).WithDetail("reason", "bad client_secret")
		}
	}
	return client, nil
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errx.Wrap(err, "generate random secret", errx.TypeInternal)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
