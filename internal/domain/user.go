package domain

// User is a logical account that any number of identities can sign in as.
// Online is derived: it is true iff at least one Identity bound to the user
// is online, and is recomputed by the presence service rather than toggled.
type User struct {
	ID       uint32 `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Identity is one connection credential. UserID is zero while the
// credential is not signed in as any user. Rows are never deleted, only
// rebound.
type Identity struct {
	Credential string `json:"identity"`
	UserID     uint32 `json:"user_id"`
	Online     bool   `json:"online"`
}

// Bound reports whether the identity is signed in as a user.
func (i *Identity) Bound() bool {
	return i.UserID != 0
}
