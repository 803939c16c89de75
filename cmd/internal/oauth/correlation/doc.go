// Package correlation tracks pending OAuth authorization requests.
//
// Each account has at most one pending session. Creating a new one completes
// any earlier pending session, so only the newest state embedded in a
// redirect URL can finish a link. Sessions move from pending to completed
// exactly once; expired sessions are completed by SweepExpired.
package correlation
