package api

import (
	"time"

	"gatehouse/internal/session"
)

type createSessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse is the wire shape of a session. Field names follow the
// platform's REST conventions; _href is the canonical resource locator.
type sessionResponse struct {
	Identifier        string    `json:"identifier"`
	Name              string    `json:"name"`
	CSRFToken         string    `json:"csrfToken"`
	OwnerCredentialID string    `json:"ownerCredentialId"`
	CreatedAt         time.Time `json:"createdAt"`
	LastRefreshedAt   time.Time `json:"lastRefreshedAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	Href              string    `json:"_href"`
}

// currentSessionResponse wraps the session for GET /sessions/current.
type currentSessionResponse struct {
	Session sessionResponse `json:"Session"`
}

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		Identifier:        s.Identifier,
		Name:              s.Name,
		CSRFToken:         s.CSRFToken,
		OwnerCredentialID: s.OwnerCredentialID,
		CreatedAt:         s.CreatedAt,
		LastRefreshedAt:   s.LastRefreshedAt,
		ExpiresAt:         s.ExpiresAt,
		Href:              s.Href,
	}
}
