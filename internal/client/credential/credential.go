// Package credential holds the persisted {token, user} pair and the storage
// channels it is replicated across. The pair is the single source of truth
// for the session: everything else derives its view from here.
package credential

// User is the authenticated account attached to a credential.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WellFormed reports whether the record carries every field a session needs.
// Partially written or corrupted records must never surface as a user.
func (u *User) WellFormed() bool {
	return u != nil && u.ID != "" && u.Name != "" && u.Email != ""
}

// Credential is the persisted pair. Channels write and clear it atomically:
// a token must never be stored without its user or vice versa.
type Credential struct {
	Token string
	User  *User
}

// Usable reports whether the credential can authenticate a request.
func (c Credential) Usable() bool {
	return c.Token != "" && c.User.WellFormed()
}
