package netcore

import (
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuthCredentials maps a username to its bcrypt password hash.
type BasicAuthCredentials map[string][]byte

// HashPassword bcrypt-hashes password for storage in a
// BasicAuthCredentials map.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// BasicAuthGate wraps an HTTPHandler with HTTP Basic Authentication
// (spec §3 DOMAIN STACK): requests without a valid Authorization header
// are answered 401 with a WWW-Authenticate challenge instead of reaching
// Next.
type BasicAuthGate struct {
	Realm       string
	Credentials BasicAuthCredentials
	Next        HTTPHandler
}

func NewBasicAuthGate(realm string, creds BasicAuthCredentials, next HTTPHandler) *BasicAuthGate {
	return &BasicAuthGate{Realm: realm, Credentials: creds, Next: next}
}

// Handle is an HTTPHandler: install it as an HTTPServer's Handler (or
// call it from within a wrapping handler) to gate every request.
func (g *BasicAuthGate) Handle(session *HTTPSession, req *HTTPRequest) {
	user, pass, ok := g.credentials(req)
	if !ok || !g.verify(user, pass) {
		g.challenge(session)
		return
	}
	g.Next(session, req)
}

func (g *BasicAuthGate) credentials(req *HTTPRequest) (user, pass string, ok bool) {
	header, found := req.HeaderValue("Authorization")
	if !found || !strings.HasPrefix(header, "Basic ") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (g *BasicAuthGate) verify(user, pass string) bool {
	hash, ok := g.Credentials[user]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
}

func (g *BasicAuthGate) challenge(session *HTTPSession) {
	resp := NewHTTPResponse()
	resp.SetStartLine(401)
	resp.SetHeader("WWW-Authenticate", `Basic realm="`+g.Realm+`"`)
	resp.SetBodyText("Unauthorized")
	_, _ = session.SendResponse(resp)
}
