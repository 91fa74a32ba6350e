package oauth2as

import (
	"database/sql"
	"encoding/base64"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/store"
)

// ResourceOwnerResolver identifies the logged-in user approving an
// /oauth2/authorize request. It is the seam between this package and
// whatever session mechanism fronts the dashboard (pkg/iam/login's
// cookie session); oauth2as never reaches into iam directly.
type ResourceOwnerResolver interface {
	ResolveUser(c *fiber.Ctx) (userID kernel.UserID, tenantID kernel.TenantID, ok bool)
}

// Handlers wires the fiber routes for C4: register, authorize, token,
// revoke, and the two well-known metadata documents.
type Handlers struct {
	clients     *store.OAuthClientRepository
	codes       *store.AuthorizationCodeRepository
	refreshToks *store.RefreshTokenRepository
	registrar   *ClientRegistrar
	keys        *KeyManager
	issuer      *TokenIssuer
	owners      ResourceOwnerResolver
	cfg         config.OAuth2ASConfig
	loginURL    string
}

func NewHandlers(
	clients *store.OAuthClientRepository,
	codes *store.AuthorizationCodeRepository,
	refreshToks *store.RefreshTokenRepository,
	keys *KeyManager,
	issuer *TokenIssuer,
	owners ResourceOwnerResolver,
	cfg config.OAuth2ASConfig,
	loginURL string,
) *Handlers {
	return &Handlers{
		clients:     clients,
		codes:       codes,
		refreshToks: refreshToks,
		registrar:   NewClientRegistrar(clients),
		keys:        keys,
		issuer:      issuer,
		owners:      owners,
		cfg:         cfg,
		loginURL:    loginURL,
	}
}

// RegisterRoutes mounts C4's endpoints on app.
func (h *Handlers) RegisterRoutes(app fiber.Router) {
	app.Post("/oauth2/register", h.register)
	app.Get("/oauth2/authorize", h.authorize)
	app.Post("/oauth2/token", h.token)
	app.Post("/oauth2/revoke", h.revoke)
	app.Get("/.well-known/oauth-authorization-server", h.metadata)
	app.Get("/.well-known/jwks.json", h.jwks)
}

func (h *Handlers) register(c *fiber.Ctx) error {
	var req RegisterClientRequest
	if err := c.BodyParser(&req); err != nil {
		return writeJSONError(c, 400, asErrors.New(ErrInvalidRequest).WithDetail("cause", err.Error()))
	}

	ownerUserID, tenantID, ok := h.owners.ResolveUser(c)
	if !ok {
		return writeJSONError(c, 401, asErrors.New(ErrInvalidClient).WithDetail("reason", "registration requires an authenticated tenant admin"))
	}
	_ = ownerUserID

	resp, err := h.registrar.Register(c.Context(), tenantID, req)
	if err != nil {
		return writeJSONError(c, httpStatusFor(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handlers) authorize(c *fiber.Ctx) error {
	q := c.Queries()
	responseType := q["response_type"]
	clientID := q["client_id"]
	redirectURI := q["redirect_uri"]
	state := q["state"]
	scope := q["scope"]
	codeChallenge := q["code_challenge"]
	codeChallengeMethod := q["code_challenge_method"]
	if codeChallengeMethod == "" {
		codeChallengeMethod = "S256"
	}

	if responseType != "code" {
		return redirectOrHTMLError(c, redirectURI, state, "unsupported_response_type")
	}
	if clientID == "" || redirectURI == "" {
		return writeJSONError(c, 400, asErrors.New(ErrInvalidRequest))
	}

	client, err := h.clients.Get(c.Context(), kernel.NewClientID(clientID))
	if err != nil {
		return writeHTMLError(c, "unknown client")
	}
	if !exactRedirectURIMatch(client.RedirectURIs, redirectURI) {
		// I5: no partial/pattern matching, even for a trailing slash.
		return writeHTMLError(c, "redirect_uri does not match a registered URI")
	}
	if codeChallenge == "" && !client.IsConfidential {
		// Public clients cannot authenticate at /token, so PKCE is their
		// only replay protection — it is never optional for them.
		return redirectOrHTMLError(c, redirectURI, state, "invalid_request")
	}
	if codeChallengeMethod == "plain" && (!h.cfg.AllowPlainPKCE || !client.AllowPlainPKCE) {
		// I3: plain requires both a deployment-wide opt-in and a
		// per-client declaration at registration; either absent falls
		// back to rejecting the request rather than silently using S256.
		return redirectOrHTMLError(c, redirectURI, state, "invalid_request")
	}
	if codeChallengeMethod == "plain" {
		logx.WithFields(logx.Fields{"client_id": clientID}).Warn("authorize request used discouraged plain PKCE")
	}

	userID, tenantID, ok := h.owners.ResolveUser(c)
	if !ok {
		returnTo := c.OriginalURL()
		return c.Redirect(h.loginURL+"?return_to="+url.QueryEscape(returnTo), fiber.StatusFound)
	}
	if tenantID != client.TenantID {
		return writeHTMLError(c, "client does not belong to this tenant")
	}

	scopes := splitSpace(scope)
	if !scopesAllowed(scopes, client.Scopes) {
		return redirectOrHTMLError(c, redirectURI, state, "invalid_scope")
	}

	rawCode, err := randomSecret(24)
	if err != nil {
		return writeHTMLError(c, "internal error")
	}

	if err := h.codes.Create(c.Context(), store.AuthorizationCode{
		Code:                rawCode,
		ClientID:            client.ID,
		TenantID:            tenantID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scopes:              scopes,
		CodeChallenge:       nullableString(codeChallenge),
		CodeChallengeMethod: nullableString(codeChallengeMethod),
		ExpiresAt:           time.Now().Add(h.cfg.AuthCodeTTL),
	}); err != nil {
		return writeHTMLError(c, "internal error")
	}

	dest, _ := url.Parse(redirectURI)
	qs := dest.Query()
	qs.Set("code", rawCode)
	if state != "" {
		qs.Set("state", state)
	}
	dest.RawQuery = qs.Encode()
	return c.Redirect(dest.String(), fiber.StatusFound)
}

func (h *Handlers) token(c *fiber.Ctx) error {
	grantType := c.FormValue("grant_type")
	clientID, clientSecret := clientCredentialsFrom(c)

	client, err := AuthenticateClient(c.Context(), h.clients, clientID, clientSecret)
	if err != nil {
		return writeJSONError(c, httpStatusFor(err), err)
	}
	if !containsString(client.GrantTypes, grantType) {
		// I4.
		return writeJSONError(c, 400, asErrors.New(ErrUnauthorizedClient))
	}

	switch grantType {
	case "authorization_code":
		return h.grantAuthorizationCode(c, client)
	case "refresh_token":
		return h.grantRefreshToken(c, client)
	case "client_credentials":
		return h.grantClientCredentials(c, client)
	default:
		return writeJSONError(c, 400, asErrors.New(ErrUnsupportedGrant))
	}
}

func (h *Handlers) grantAuthorizationCode(c *fiber.Ctx, client *store.OAuthClient) error {
	code := c.FormValue("code")
	redirectURI := c.FormValue("redirect_uri")
	verifier := c.FormValue("code_verifier")
	if code == "" {
		return writeJSONError(c, 400, asErrors.New(ErrInvalidRequest).WithDetail("field", "code"))
	}

	rawCode, hash, err := NewOpaqueToken()
	if err != nil {
		return writeJSONError(c, 500, err)
	}

	// redirect_uri/client/PKCE are validated inside the same transaction
	// that locks the code row, before it is marked consumed or any
	// refresh token is inserted — a validation failure here leaves the
	// code untouched and never creates an orphaned token row.
	validate := func(row store.AuthorizationCode) error {
		if !exactRedirectURIMatch([]string{row.RedirectURI}, redirectURI) {
			return asErrors.New(ErrInvalidGrant).WithDetail("reason", "redirect_uri mismatch")
		}
		if row.ClientID != client.ID {
			return asErrors.New(ErrInvalidGrant)
		}
		if row.CodeChallenge.Valid && !verifyPKCE(row.CodeChallengeMethod.String, row.CodeChallenge.String, verifier) {
			return asErrors.New(ErrInvalidGrant).WithDetail("reason", "PKCE verification failed")
		}
		return nil
	}

	consumed, err := h.codes.ConsumeAndIssueRefreshToken(c.Context(), code, validate, store.RefreshToken{
		TokenHash: hash,
		ClientID:  client.ID,
		TenantID:  client.TenantID,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	})
	if err != nil {
		if asErr, ok := err.(*errx.Error); ok && asErr.Code == ErrInvalidGrant.Code {
			return writeJSONError(c, 400, asErr)
		}
		return writeJSONError(c, 400, asErrors.New(ErrInvalidGrant))
	}

	access, expiresAt, err := h.issuer.IssueAccessToken(consumed.UserID, consumed.TenantID, client.ID, consumed.Scopes)
	if err != nil {
		return writeJSONError(c, 500, err)
	}
	return c.JSON(tokenResponse(access, rawCode, expiresAt, consumed.Scopes))
}

func (h *Handlers) grantRefreshToken(c *fiber.Ctx, client *store.OAuthClient) error {
	rawToken := c.FormValue("refresh_token")
	if rawToken == "" {
		return writeJSONError(c, 400, asErrors.New(ErrInvalidRequest).WithDetail("field", "refresh_token"))
	}
	oldHash := HashToken(rawToken)

	newRaw, newHash, err := NewOpaqueToken()
	if err != nil {
		return writeJSONError(c, 500, err)
	}

	rotated, err := h.refreshToks.Rotate(c.Context(), oldHash, store.RefreshToken{
		TokenHash: newHash,
		ClientID:  client.ID,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	})
	if err != nil {
		return writeJSONError(c, 400, asErrors.New(ErrInvalidGrant))
	}
	if rotated.ClientID != client.ID {
		return writeJSONError(c, 400, asErrors.New(ErrInvalidGrant))
	}

	access, expiresAt, err := h.issuer.IssueAccessToken(rotated.UserID, rotated.TenantID, client.ID, rotated.Scopes)
	if err != nil {
		return writeJSONError(c, 500, err)
	}
	return c.JSON(tokenResponse(access, newRaw, expiresAt, rotated.Scopes))
}

func (h *Handlers) grantClientCredentials(c *fiber.Ctx, client *store.OAuthClient) error {
	scopes := client.Scopes
	access, expiresAt, err := h.issuer.IssueAccessToken(kernel.UserID(""), client.TenantID, client.ID, scopes)
	if err != nil {
		return writeJSONError(c, 500, err)
	}
	return c.JSON(fiber.Map{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   int(time.Until(expiresAt).Seconds()),
		"scope":        joinSpace(scopes),
	})
}

func (h *Handlers) revoke(c *fiber.Ctx) error {
	token := c.FormValue("token")
	if token == "" {
		return writeJSONError(c, 400, asErrors.New(ErrInvalidRequest).WithDetail("field", "token"))
	}
	// Idempotent per RFC 7009: revoking an unknown/already-revoked
	// token still returns 200.
	_ = h.refreshToks.Revoke(c.Context(), HashToken(token))
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) metadata(c *fiber.Ctx) error {
	base := baseURL(c)
	return c.JSON(fiber.Map{
		"issuer":                               base,
		"authorization_endpoint":               base + "/oauth2/authorize",
		"token_endpoint":                       base + "/oauth2/token",
		"registration_endpoint":                base + "/oauth2/register",
		"revocation_endpoint":                  base + "/oauth2/revoke",
		"jwks_uri":                             base + "/.well-known/jwks.json",
		"response_types_supported":             []string{"code"},
		"grant_types_supported":                []string{"authorization_code", "refresh_token", "client_credentials"},
		"code_challenge_methods_supported":      []string{"S256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "none"},
	})
}

func (h *Handlers) jwks(c *fiber.Ctx) error {
	keys, err := h.keys.JWKS(c.Context())
	if err != nil {
		return writeJSONError(c, 500, err)
	}
	return c.JSON(fiber.Map{"keys": keys})
}

// --- helpers --------------------------------------------------------------

func tokenResponse(access, refresh string, expiresAt time.Time, scopes []string) fiber.Map {
	return fiber.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    int(time.Until(expiresAt).Seconds()),
		"scope":         joinSpace(scopes),
	}
}

func writeJSONError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"error":             rfc6749Code(err),
		"error_description": err.Error(),
	})
}

func writeHTMLError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).Type("html").SendString("<h1>Authorization error</h1><p>" + message + "</p>")
}

func redirectOrHTMLError(c *fiber.Ctx, redirectURI, state, code string) error {
	dest, err := url.Parse(redirectURI)
	if err != nil || dest.Scheme == "" {
		return writeHTMLError(c, code)
	}
	qs := dest.Query()
	qs.Set("error", code)
	if state != "" {
		qs.Set("state", state)
	}
	dest.RawQuery = qs.Encode()
	return c.Redirect(dest.String(), fiber.StatusFound)
}

func exactRedirectURIMatch(registered []string, presented string) bool {
	for _, r := range registered {
		if r == presented {
			return true
		}
	}
	return false
}

func scopesAllowed(requested, allowed []string) bool {
	allowedSet := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		allowedSet[s] = true
	}
	for _, s := range requested {
		if !allowedSet[s] {
			return false
		}
	}
	return true
}

func clientCredentialsFrom(c *fiber.Ctx) (id, secret string) {
	if id, secret, ok := basicAuth(c); ok {
		return id, secret
	}
	return c.FormValue("client_id"), c.FormValue("client_secret")
}

func basicAuth(c *fiber.Ctx) (id, secret string, ok bool) {
	header := c.Get("Authorization")
	const prefix = "Basic "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", "", false
	}
	decoded, err := decodeBase64(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	for i := 0; i < len(decoded); i++ {
		if decoded[i] == ':' {
			return decoded[:i], decoded[i+1:], true
		}
	}
	return "", "", false
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func decodeBase64(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func splitSpace(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func joinSpace(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

func baseURL(c *fiber.Ctx) string {
	return c.Protocol() + "://" + c.Hostname()
}
