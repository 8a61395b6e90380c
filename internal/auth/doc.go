// Package auth provides user accounts and bearer-token authentication
// for Lumina Core.
//
// It covers:
//   - User accounts persisted in SQLite with Argon2id password hashes
//   - JWT issuance and validation (HS256, symmetric secret, fixed TTL)
//   - First-boot seeding of the default admin account
//
// Token validation is deliberately coarse: expired, malformed, and
// badly-signed tokens all surface as ErrTokenInvalid. Sessions that hold
// a token re-validate it before every privileged action, so expiry mid-
// session demotes the caller rather than killing the connection.
package auth
