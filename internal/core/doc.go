// Package core runs directory sessions for the web layer.
//
// It sits between the transport (internal/web) and the pure directory model
// (internal/directory). It can be used by handlers, the CLI, or tests
// without modification.
//
// # Sessions
//
// Every browser gets its own [Session], opened with [Service.Open]. Opening
// a session performs the one and only fetch of the country list for it; the
// records are loaded into a fresh directory.Store and never change again.
// Search text, region filter and paging are per-session state, and each
// Session serialises access to its store so concurrent requests from the
// same browser cannot interleave a mutation with a derivation.
//
// If the fetch fails, the session still opens. Its directory is empty, its
// controls keep working (every page is page 1 of 1), and [Session.LoadErr]
// carries the cause so the page can explain it.
//
// # Fetch Limiting
//
// Upstream fetches go through a [FetchLimiter]. When all slots are busy
// for longer than the configured wait, the fetch fails with
// [ErrTooManyFetches] and the session opens empty like any other failure.
//
// # Expiry
//
// Sessions idle longer than the TTL are removed by [Service.SweepExpired],
// which [Service.StartSessionSweeper] runs periodically.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - SRC001-SRC004: fetching the country list
//   - SES001: unknown or expired session
//   - REQ001-REQ004: malformed or cancelled requests
//   - RATE001: rate limiting
package core
