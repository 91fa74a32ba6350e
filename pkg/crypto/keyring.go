// Package crypto implements Pierre's two-tier envelope encryption: a
// single master key (held only in process memory, sourced from the
// environment) wraps one randomly generated symmetric key per tenant,
// and each tenant's key encrypts that tenant's upstream provider
// credentials. Losing the master key makes every wrapped tenant key
// unrecoverable; compromising one tenant's unwrapped key exposes only
// that tenant's secrets.
//
// Sealing uses XChaCha20-Poly1305 (24-byte nonce, safe for random
// generation at this volume) with associated data binding each
// ciphertext to the (tenant, field) it was produced for, so a
// ciphertext copied into the wrong column or the wrong tenant's row
// fails to authenticate instead of decrypting to garbage silently.
package crypto

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

const masterKeyLen = chacha20poly1305.KeySize // 32

// TenantKeySource resolves a tenant's wrapped symmetric key from
// persistent storage. Implemented by the store package; kept as an
// interface here so crypto has no dependency on the persistence layer.
type TenantKeySource interface {
	WrappedTenantKey(ctx context.Context, tenantID kernel.TenantID) ([]byte, error)
}

// Keyring performs envelope encryption for tenant-scoped secrets.
type Keyring struct {
	masterAEAD cipherAEAD
	source     TenantKeySource

	mu    sync.RWMutex
	cache map[kernel.TenantID]cipherAEAD
}

// cipherAEAD is the subset of cipher.AEAD crypto depends on, aliased so
// call sites never import crypto/cipher directly.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// NewKeyring constructs a Keyring from a base64-standard-encoded
// 32-byte master key (PIERRE_MASTER_KEY). Returns an error rather than
// panicking; callers in cmd/ treat that error as fatal at boot.
func NewKeyring(masterKeyB64 string, source TenantKeySource) (*Keyring, error) {
	if masterKeyB64 == "" {
		return nil, cryptoErrors.New(ErrMasterKeyMissing)
	}
	raw, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, cryptoErrors.NewWithCause(ErrMasterKeyInvalid, err)
	}
	if len(raw) != masterKeyLen {
		return nil, cryptoErrors.New(ErrMasterKeyInvalid).
			WithDetail("want_bytes", masterKeyLen).
			WithDetail("got_bytes", len(raw))
	}
	aead, err := chacha20poly1305.New(raw)
	if err != nil {
		return nil, cryptoErrors.NewWithCause(ErrMasterKeyInvalid, err)
	}
	ZeroBytes(raw)

	return &Keyring{
		masterAEAD: aead,
		source:     source,
		cache:      make(map[kernel.TenantID]cipherAEAD),
	}, nil
}

// GenerateTenantKey returns a fresh random 32-byte symmetric key, ready
// to be wrapped with WrapTenantKey and persisted.
func GenerateTenantKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, cryptoErrors.NewWithCause(ErrCorruption, err)
	}
	return key, nil
}

// WrapTenantKey seals a tenant's raw symmetric key under the master
// key, binding the ciphertext to tenantID so it cannot be copied into
// another tenant's row and unwrapped there.
func (k *Keyring) WrapTenantKey(tenantID kernel.TenantID, rawKey []byte) ([]byte, error) {
	nonce := make([]byte, k.masterAEAD.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, cryptoErrors.NewWithCause(ErrCorruption, err)
	}
	ad := tenantAD(tenantID)
	sealed := k.masterAEAD.Seal(nil, nonce, rawKey, ad)
	return append(nonce, sealed...), nil
}

// UnwrapTenantKey opens a wrapped tenant key, verifying it was sealed
// for this exact tenantID.
func (k *Keyring) UnwrapTenantKey(tenantID kernel.TenantID, wrapped []byte) ([]byte, error) {
	nonceLen := k.masterAEAD.NonceSize()
	if len(wrapped) < nonceLen {
		return nil, cryptoErrors.New(ErrCorruption).WithDetail("reason", "wrapped key shorter than nonce")
	}
	nonce, sealed := wrapped[:nonceLen], wrapped[nonceLen:]
	raw, err := k.masterAEAD.Open(nil, nonce, sealed, tenantAD(tenantID))
	if err != nil {
		return nil, cryptoErrors.NewWithCause(ErrIntegrity, err).WithDetail("tenant_id", tenantID.String())
	}
	return raw, nil
}

// tenantAEAD returns the tenant's unwrapped cipher, populating the
// cache from source on a miss. The cache never stores raw key bytes
// longer than needed to construct the AEAD: once wrapped in a cipher,
// the plaintext key slice is zeroed.
func (k *Keyring) tenantAEAD(ctx context.Context, tenantID kernel.TenantID) (cipherAEAD, error) {
	k.mu.RLock()
	aead, ok := k.cache[tenantID]
	k.mu.RUnlock()
	if ok {
		return aead, nil
	}

	wrapped, err := k.source.WrappedTenantKey(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if wrapped == nil {
		return nil, cryptoErrors.New(ErrKeyMissing).WithDetail("tenant_id", tenantID.String())
	}

	raw, err := k.UnwrapTenantKey(tenantID, wrapped)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(raw)

	aead, err = chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, cryptoErrors.NewWithCause(ErrCorruption, err)
	}

	k.mu.Lock()
	k.cache[tenantID] = aead
	k.mu.Unlock()
	return aead, nil
}

// Invalidate evicts a tenant's cached cipher, forcing the next
// Encrypt/Decrypt to re-fetch and re-unwrap its key. Call this after
// rotating a tenant's key.
func (k *Keyring) Invalidate(tenantID kernel.TenantID) {
	k.mu.Lock()
	delete(k.cache, tenantID)
	k.mu.Unlock()
}

// Encrypt seals plaintext under tenantID's key, binding the ciphertext
// to (tenantID, field) via associated data.
func (k *Keyring) Encrypt(ctx context.Context, tenantID kernel.TenantID, field string, plaintext []byte) ([]byte, error) {
	aead, err := k.tenantAEAD(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, cryptoErrors.NewWithCause(ErrCorruption, err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, fieldAD(tenantID, field))
	return append(nonce, sealed...), nil
}

// Decrypt opens a ciphertext produced by Encrypt for the same
// (tenantID, field) pair.
func (k *Keyring) Decrypt(ctx context.Context, tenantID kernel.TenantID, field string, ciphertext []byte) ([]byte, error) {
	aead, err := k.tenantAEAD(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	nonceLen := aead.NonceSize()
	if len(ciphertext) < nonceLen {
		return nil, cryptoErrors.New(ErrCorruption).WithDetail("reason", "ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceLen], ciphertext[nonceLen:]
	plaintext, err := aead.Open(nil, nonce, sealed, fieldAD(tenantID, field))
	if err != nil {
		return nil, cryptoErrors.NewWithCause(ErrIntegrity, err).
			WithDetail("tenant_id", tenantID.String()).
			WithDetail("field", field)
	}
	return plaintext, nil
}

func tenantAD(tenantID kernel.TenantID) []byte {
	return []byte(tenantID.String())
}

func fieldAD(tenantID kernel.TenantID, field string) []byte {
	ad := make([]byte, 0, len(tenantID.String())+1+len(field))
	ad = append(ad, tenantID.String()...)
	ad = append(ad, 0x00)
	ad = append(ad, field...)
	return ad
}

// ZeroBytes overwrites b with zeros in place. Best-effort defense in
// depth; Go's GC may already have copied the backing array elsewhere.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
