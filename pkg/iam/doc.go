// Package iam groups Pierre's identity-adjacent packages: the tenant/user
// authentication surfaces that sit alongside, but outside, the OAuth2
// authorization server itself (pkg/oauth2as).
//
//   - iam/login  — dashboard session issuance (argon2id password
//     verification + an HS256 session cookie) and the
//     oauth2as.ResourceOwnerResolver implementation the
//     authorization server's login/consent pages use to identify
//     the signed-in user.
//   - iam/authmw — the tenant/auth middleware C8 describes: validates
//     bearer tokens (oauth2as-issued JWTs or opaque API keys),
//     populates kernel.AuthContext, and exposes
//     RequireAdmin/RequireTenant/RequireScope guards.
package iam
