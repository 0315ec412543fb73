// Package session owns the authentication state of a tome process.
//
// # Overview
//
// The session store is the single writer of the access/refresh token pair.
// It drives the startup state machine
//
//	Uninitialized → Initializing → {Authenticated, Unauthenticated}
//
// where CheckAuth performs the one-time Initializing step: restoring a
// persisted session from the local cache and verifying it against the
// backend. IsInitializing flips to false exactly once per process.
//
// # Credential Flow
//
// The api client pulls the bearer token through the Token method. When the
// access token's exp claim is within 30 seconds of expiry, Token refreshes
// the pair first (one attempt, unverified claim inspection only; signature
// verification is the backend's job). A failed refresh forces logout; the
// refresh token is assumed expired and there is no retry.
//
// # Persistence
//
// Credential, user and authenticated flag are written to the durable cache
// on every transition. The cached value is a non-authoritative seed: it is
// always re-verified remotely before the session becomes authenticated.
package session
