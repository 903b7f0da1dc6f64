package rtsock

// Session is the authenticated identity a socket connects with. It is
// produced by the REST client; the socket only reads AuthToken.
type Session struct {
	AuthToken    string
	RefreshToken string
}

// NewSession wraps tokens issued by the authentication API.
func NewSession(authToken, refreshToken string) *Session {
	return &Session{AuthToken: authToken, RefreshToken: refreshToken}
}
