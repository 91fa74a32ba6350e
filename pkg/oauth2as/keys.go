package oauth2as

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/store"
)

// KeyManager owns the RS256 signing keypair lifecycle: it keeps the
// active private key in memory for signing, and serves every
// still-verifiable public key for JWKS. Rotation generates a new kid
// and schedules the previous key's retirement no sooner than the
// longest access-token TTL, so tokens minted just before rotation
// still verify.
type KeyManager struct {
	repo    *store.SigningKeyRepository
	keyBits int

	mu     sync.RWMutex
	active struct {
		kid  string
		priv *rsa.PrivateKey
	}
}

func NewKeyManager(repo *store.SigningKeyRepository, cfg config.JWTConfig) *KeyManager {
	return &KeyManager{repo: repo, keyBits: cfg.KeyBits}
}

// Bootstrap loads the active key from the store, generating and
// persisting one if none exists yet (first boot).
func (m *KeyManager) Bootstrap(ctx context.Context) error {
	active, err := m.repo.ActiveKey(ctx)
	if err != nil {
		var storeErr *errx.Error
		if errx.As(err, &storeErr) && storeErr.Type == errx.TypeNotFound {
			return m.generateAndPersist(ctx)
		}
		return err
	}
	priv, parseErr := parsePrivatePEM(active.PrivatePEM)
	if parseErr != nil {
		return errx.Wrap(parseErr, "parse persisted signing key", errx.TypeInternal)
	}
	m.setActive(active.Kid, priv)
	return nil
}

// Rotate generates a fresh keypair, retires the current one no earlier
// than retireNotBefore, and switches signing to the new key.
func (m *KeyManager) Rotate(ctx context.Context, retireNotBefore time.Time) error {
	kid, priv, pubPEM, privPEM, err := generateKeyPair(m.keyBits)
	if err != nil {
		return err
	}
	if err := m.repo.Rotate(ctx, retireNotBefore, store.SigningKey{
		Kid:        kid,
		PrivatePEM: privPEM,
		PublicPEM:  pubPEM,
		Active:     true,
	}); err != nil {
		return errx.Wrap(err, "rotate signing key", errx.TypeInternal)
	}
	m.setActive(kid, priv)
	logx.WithFields(logx.Fields{"kid": kid}).Info("rotated OAuth2 signing key")
	return nil
}

func (m *KeyManager) generateAndPersist(ctx context.Context) error {
	kid, priv, pubPEM, privPEM, err := generateKeyPair(m.keyBits)
	if err != nil {
		return err
	}
	if err := m.repo.Create(ctx, store.SigningKey{
		Kid:        kid,
		PrivatePEM: privPEM,
		PublicPEM:  pubPEM,
		Active:     true,
	}); err != nil {
		return errx.Wrap(err, "persist initial signing key", errx.TypeInternal)
	}
	m.setActive(kid, priv)
	return nil
}

func (m *KeyManager) setActive(kid string, priv *rsa.PrivateKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active.kid = kid
	m.active.priv = priv
}

// SigningKey returns the current kid and private key used to mint
// new access tokens.
func (m *KeyManager) SigningKey() (string, *rsa.PrivateKey) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.kid, m.active.priv
}

// PublicKey resolves the public key for kid, consulting the store for
// keys not (or no longer) held as the in-memory active key — e.g. a
// retiring key still advertised in JWKS.
func (m *KeyManager) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, err := m.repo.Verifiable(ctx)
	if err != nil {
		return nil, errx.Wrap(err, "load verifiable signing keys", errx.TypeInternal)
	}
	for _, k := range keys {
		if k.Kid == kid {
			return parsePublicPEM(k.PublicPEM)
		}
	}
	return nil, asErrors.New(ErrInvalidClient).WithDetail("reason", "unknown kid").WithDetail("kid", kid)
}

// JWK is the minimal RFC 7517 key representation JWKS needs for an
// RS256 public key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS builds the document served at /.well-known/jwks.json: every
// currently verifiable key (active plus any still-retiring one).
func (m *KeyManager) JWKS(ctx context.Context) ([]JWK, error) {
	keys, err := m.repo.Verifiable(ctx)
	if err != nil {
		return nil, errx.Wrap(err, "load verifiable signing keys", errx.TypeInternal)
	}
	jwks := make([]JWK, 0, len(keys))
	for _, k := range keys {
		pub, err := parsePublicPEM(k.PublicPEM)
		if err != nil {
			return nil, errx.Wrap(err, "parse signing key", errx.TypeInternal).WithDetail("kid", k.Kid)
		}
		jwks = append(jwks, JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: k.Kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(bigEndianBytes(pub.E)),
		})
	}
	return jwks, nil
}

// Keyfunc adapts PublicKey to jwt.Keyfunc for token validation.
func (m *KeyManager) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errx.Validation("unexpected signing method").WithDetail("alg", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errx.Validation("token carries no kid")
		}
		return m.PublicKey(ctx, kid)
	}
}

func generateKeyPair(bits int) (kid string, priv *rsa.PrivateKey, pubPEM, privPEM []byte, err error) {
	priv, err = rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", nil, nil, nil, errx.Wrap(err, "generate RSA signing key", errx.TypeInternal)
	}
	kid = uuid.NewString()

	privDER := x509.MarshalPKCS1PrivateKey(priv)
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", nil, nil, nil, errx.Wrap(err, "marshal RSA public key", errx.TypeInternal)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return kid, priv, pubPEM, privPEM, nil
}

func parsePrivatePEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errx.Internal("invalid PEM block for private key")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func parsePublicPEM(raw []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errx.Internal("invalid PEM block for public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errx.Internal("signing key is not RSA")
	}
	return pub, nil
}

func bigEndianBytes(n int) []byte {
	if n == 0 {
		return []byte{0}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	return b
}
