package auth

import (
	"net/http"

	"furniture-store/internal/models"

	"github.com/gorilla/sessions"
)

const (
	SessionName = "furniture-store-session"

	keyUserID = "userID"
	keyRole   = "role"

	sessionMaxAge = 7 * 24 * 60 * 60
)

// SessionProvider stores the signed-in identity in a cookie session
type SessionProvider struct {
	store sessions.Store
}

// NewSessionProvider creates a cookie-backed provider signed with secret
func NewSessionProvider(secret []byte, secure bool) *SessionProvider {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionProvider{store: store}
}

// Login writes the user's identity into the session cookie
func (p *SessionProvider) Login(w http.ResponseWriter, r *http.Request, user *models.User) error {
	session, _ := p.store.Get(r, SessionName)
	session.Values[keyUserID] = user.ID
	session.Values[keyRole] = string(user.Role)
	return session.Save(r, w)
}

// Logout expires the session cookie
func (p *SessionProvider) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := p.store.Get(r, SessionName)
	delete(session.Values, keyUserID)
	delete(session.Values, keyRole)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Resolve returns the actor stored in the request's session.
// ok is false for anonymous requests and tampered cookies.
func (p *SessionProvider) Resolve(r *http.Request) (models.Actor, bool) {
	session, err := p.store.Get(r, SessionName)
	if err != nil {
		return models.Actor{}, false
	}

	userID, ok := session.Values[keyUserID].(int64)
	if !ok || userID == 0 {
		return models.Actor{}, false
	}
	role, _ := session.Values[keyRole].(string)
	if !models.Role(role).Valid() {
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: models.Role(role)}, true
}
