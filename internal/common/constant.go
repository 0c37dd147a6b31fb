package common

const (
	// AuthHeaderName is the header that carries the bearer token on
	// outbound requests.
	AuthHeaderName = "Authorization"

	// BearerPrefix prefixes the token value inside the auth header.
	BearerPrefix = "Bearer "

	// RequestIDHeaderName tags every outgoing call for server-side
	// correlation.
	RequestIDHeaderName = "X-Request-Id"

	// TokenStorageKey and UserStorageKey are the fixed keys both credential
	// channels write the pair under.
	TokenStorageKey = "auth_token"
	UserStorageKey  = "auth_user"
)
