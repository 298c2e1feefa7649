// Package auth implements the credential store and the session gate.
//
// Credentials are one structured document in the application namespace,
// loaded and saved through the session registry like any other shared data:
//
//	usernames:
//	  alice:
//	    email: alice@example.com
//	    name: Alice
//	    password: ...
//	    created_at: "2025-01-01T08:00:00Z"
//
// Register persists a new identity before returning. Authenticate yields one
// of three results and only a success establishes the session identity.
// Logout clears it and evicts the user's cached data.
//
// Passwords are stored and compared as supplied unless the bcrypt scheme is
// configured. Stored bcrypt hashes are always verified as hashes, so a store
// can move from plain to bcrypt without breaking existing users.
package auth
