// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Firrel Software

// Package auth implements the account lifecycle: registration, email
// verification, login, sessions, password reset and profile updates.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates an unverified User with an outstanding verification token
//   - NewSession - creates a Session bound to a user snapshot
//
// Only token hashes are persisted. Plaintext tokens leave the package through
// the Notifier (verification and reset links) or as the session cookie value.
//
// # Services
//
//   - Service - register, verify email, login, logout, check session,
//     forgot password, reset password
//   - ProfileService - read and update the logged-in user's profile
//   - SessionManager - issue, resolve, regenerate and prune sessions
//
// Errors returned by services carry one of the Code* values and a message
// that is safe to show to clients. Internal failures are logged and replaced
// by an opaque CodeInternal error.
package auth
