package crypto

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

type fakeSource struct {
	wrapped map[kernel.TenantID][]byte
}

func (f *fakeSource) WrappedTenantKey(_ context.Context, tenantID kernel.TenantID) ([]byte, error) {
	return f.wrapped[tenantID], nil
}

func newTestKeyring(t *testing.T) (*Keyring, *fakeSource) {
	t.Helper()
	masterKey := make([]byte, masterKeyLen)
	for i := range masterKey {
		masterKey[i] = byte(i)
	}
	src := &fakeSource{wrapped: make(map[kernel.TenantID][]byte)}
	kr, err := NewKeyring(base64.StdEncoding.EncodeToString(masterKey), src)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	return kr, src
}

func provisionTenant(t *testing.T, kr *Keyring, src *fakeSource, tenantID kernel.TenantID) {
	t.Helper()
	raw, err := GenerateTenantKey()
	if err != nil {
		t.Fatalf("GenerateTenantKey: %v", err)
	}
	wrapped, err := kr.WrapTenantKey(tenantID, raw)
	if err != nil {
		t.Fatalf("WrapTenantKey: %v", err)
	}
	src.wrapped[tenantID] = wrapped
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kr, src := newTestKeyring(t)
	tenantID := kernel.NewTenantID("tenant-1")
	provisionTenant(t, kr, src, tenantID)

	ciphertext, err := kr.Encrypt(context.Background(), tenantID, "strava.refresh_token", []byte("secret-token"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plaintext, err := kr.Decrypt(context.Background(), tenantID, "strava.refresh_token", ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plaintext) != "secret-token" {
		t.Fatalf("got %q, want %q", plaintext, "secret-token")
	}
}

func TestDecryptWrongFieldFails(t *testing.T) {
	kr, src := newTestKeyring(t)
	tenantID := kernel.NewTenantID("tenant-1")
	provisionTenant(t, kr, src, tenantID)

	ciphertext, err := kr.Encrypt(context.Background(), tenantID, "strava.refresh_token", []byte("secret-token"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := kr.Decrypt(context.Background(), tenantID, "strava.access_token", ciphertext); err == nil {
		t.Fatal("expected decryption to fail for mismatched field AD")
	}
}

func TestDecryptWrongTenantFails(t *testing.T) {
	kr, src := newTestKeyring(t)
	tenantA := kernel.NewTenantID("tenant-a")
	tenantB := kernel.NewTenantID("tenant-b")
	provisionTenant(t, kr, src, tenantA)
	provisionTenant(t, kr, src, tenantB)

	ciphertext, err := kr.Encrypt(context.Background(), tenantA, "strava.refresh_token", []byte("secret-token"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := kr.Decrypt(context.Background(), tenantB, "strava.refresh_token", ciphertext); err == nil {
		t.Fatal("expected decryption to fail for mismatched tenant key")
	}
}

func TestUnwrapTenantKeyRejectsForeignTenant(t *testing.T) {
	kr, _ := newTestKeyring(t)
	tenantA := kernel.NewTenantID("tenant-a")
	tenantB := kernel.NewTenantID("tenant-b")

	raw, err := GenerateTenantKey()
	if err != nil {
		t.Fatalf("GenerateTenantKey: %v", err)
	}
	wrapped, err := kr.WrapTenantKey(tenantA, raw)
	if err != nil {
		t.Fatalf("WrapTenantKey: %v", err)
	}
	if _, err := kr.UnwrapTenantKey(tenantB, wrapped); err == nil {
		t.Fatal("expected unwrap to fail when tenant ID does not match")
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	kr, src := newTestKeyring(t)
	tenantID := kernel.NewTenantID("tenant-1")
	provisionTenant(t, kr, src, tenantID)

	ciphertext, err := kr.Encrypt(context.Background(), tenantID, "f", []byte("v1"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Rotate: replace the wrapped key with a freshly generated one.
	provisionTenant(t, kr, src, tenantID)
	kr.Invalidate(tenantID)

	if _, err := kr.Decrypt(context.Background(), tenantID, "f", ciphertext); err == nil {
		t.Fatal("expected decryption under the rotated key to fail")
	}
}

func TestNewKeyringRejectsMissingMasterKey(t *testing.T) {
	if _, err := NewKeyring("", &fakeSource{}); err == nil {
		t.Fatal("expected error for empty master key")
	}
}

func TestNewKeyringRejectsWrongLength(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, err := NewKeyring(short, &fakeSource{}); err == nil {
		t.Fatal("expected error for wrong-length master key")
	}
}
