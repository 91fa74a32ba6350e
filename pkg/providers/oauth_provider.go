package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pierre-platform/pierre/pkg/errx"
)

// oauthProvider is the shared implementation behind every real upstream
// (Strava, Garmin, Fitbit, WHOOP, COROS, Terra): a standard OAuth2
// authorization-code/refresh dance plus capability endpoints fetched
// with a bearer token. Per-provider quirks that don't fit this shape
// belong in a dedicated type; none of the currently supported
// providers need one.
type oauthProvider struct {
	descriptor Descriptor
	endpoints  map[Capability]string
	client     *http.Client
}

func newOAuthProvider(d Descriptor, endpoints map[Capability]string) *oauthProvider {
	return &oauthProvider{
		descriptor: d,
		endpoints:  endpoints,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *oauthProvider) Descriptor() Descriptor { return p.descriptor }

func (p *oauthProvider) AuthorizeURL(state, codeChallenge string) string {
	q := url.Values{}
	q.Set("client_id", p.descriptor.ID.String())
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("scope", p.descriptor.JoinScopes(p.descriptor.DefaultScopes))
	if p.descriptor.PKCERequired && codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "S256")
	}
	return p.descriptor.AuthURL + "?" + q.Encode()
}

func (p *oauthProvider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (TokenSet, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}
	return p.doTokenRequest(ctx, form)
}

func (p *oauthProvider) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return p.doTokenRequest(ctx, form)
}

// tokenResponse is the common shape of an OAuth2 token endpoint reply.
// Providers that nest the athlete/account id differently are expected
// to override ProviderAccountID via a follow-up profile call, which
// the capability layer (not this struct) is responsible for.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

func (p *oauthProvider) doTokenRequest(ctx context.Context, form url.Values) (TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.descriptor.TokenURL, nil)
	if err != nil {
		return TokenSet{}, errx.Wrap(err, "build token request", errx.TypeInternal)
	}
	req.URL.RawQuery = form.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return TokenSet{}, errx.Wrap(err, "upstream token request failed", errx.TypeExternal).
			WithDetail("provider_id", p.descriptor.ID.String())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenSet{}, errx.Wrap(err, "read upstream token response", errx.TypeExternal)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return TokenSet{}, providerAuthError(p.descriptor.ID.String(), resp.StatusCode, body)
	}
	if resp.StatusCode >= 500 {
		return TokenSet{}, providerUnavailableError(p.descriptor.ID.String(), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return TokenSet{}, errx.Wrap(fmt.Errorf("status %d", resp.StatusCode), "unexpected upstream status", errx.TypeExternal).
			WithDetail("provider_id", p.descriptor.ID.String())
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return TokenSet{}, errx.Wrap(err, "decode upstream token response", errx.TypeExternal)
	}

	return TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		Scopes:       splitScope(tr.Scope, p.descriptor.ScopeSeparator),
	}, nil
}

func (p *oauthProvider) FetchCapability(ctx context.Context, accessToken string, capability Capability, params map[string]string) (json.RawMessage, error) {
	if !capability.Has(p.descriptor.Capabilities) {
		return nil, providerErrors.New(ErrCapabilityMissing).
			WithDetail("provider_id", p.descriptor.ID.String())
	}
	endpoint, ok := p.endpoints[capability]
	if !ok {
		return nil, providerErrors.New(ErrCapabilityMissing).
			WithDetail("provider_id", p.descriptor.ID.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errx.Wrap(err, "build capability request", errx.TypeInternal)
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errx.Wrap(err, "upstream capability request failed", errx.TypeExternal).
			WithDetail("provider_id", p.descriptor.ID.String())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.Wrap(err, "read upstream capability response", errx.TypeExternal)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, providerAuthError(p.descriptor.ID.String(), resp.StatusCode, body)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errx.New("upstream rate limit exceeded", errx.TypeProviderRateLimited).
			WithDetail("provider_id", p.descriptor.ID.String())
	}
	if resp.StatusCode >= 500 {
		return nil, providerUnavailableError(p.descriptor.ID.String(), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errx.Wrap(fmt.Errorf("status %d", resp.StatusCode), "unexpected upstream status", errx.TypeExternal).
			WithDetail("provider_id", p.descriptor.ID.String())
	}
	return json.RawMessage(body), nil
}

func providerAuthError(providerID string, status int, body []byte) error {
	return errx.New("upstream rejected the credential", errx.TypeProviderAuthRequired).
		WithDetail("provider_id", providerID).
		WithDetail("status", strconv.Itoa(status)).
		WithDetail("body", string(body))
}

func providerUnavailableError(providerID string, status int) error {
	return errx.New("upstream is unavailable", errx.TypeProviderUnavailable).
		WithDetail("provider_id", providerID).
		WithDetail("status", strconv.Itoa(status))
}

func splitScope(scope string, sep ScopeSeparator) []string {
	if scope == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(scope); i++ {
		if string(scope[i]) == string(sep) {
			out = append(out, scope[start:i])
			start = i + 1
		}
	}
	out = append(out, scope[start:])
	return out
}
