package model

import "time"

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// may define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – role name (user, host or admin).
//  HostStatus   – approval state of a host account (pending,
//                 approved or rejected); meaningful only when
//                 Role is host.
//  IsActive     – whether the account is active.
//  ProfileInfo  – free-form blurb on a host's public profile.
//  HostCategoryID – the host category the host filed under; both
//                 profile fields are meaningful only when Role is host.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID             uint64    // users.id
	Name           string    // users.name
	Email          string    // users.email
	PasswordHash   string    // users.password_hash
	Role           string    // users.role
	HostStatus     string    // users.host_status
	IsActive       bool      // users.is_active
	ProfileInfo    *string   // users.profile_info (nullable)
	HostCategoryID *uint64   // users.host_category_id (nullable)
	CreatedAt      time.Time // users.created_at
	UpdatedAt      time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
