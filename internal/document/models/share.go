package models

import (
	"time"

	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
)

// ShareLink grants read access to one document through an unguessable token.
// Only the SHA-256 of the token is stored; the token itself is returned once,
// when the link is created.
type ShareLink struct {
	ID         id.ShareLinkID
	DocumentID id.DocumentID
	CreatedBy  id.UserID
	TokenHash  string
	ExpiresAt  *time.Time
	IsOneTime  bool
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// UsableAt reports whether the link can still be redeemed at now.
func (l *ShareLink) UsableAt(now time.Time) bool {
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return false
	}
	return !l.IsOneTime || l.UsedAt == nil
}

type CreateShareRequest struct {
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsOneTime bool       `json:"isOneTime,omitempty"`
}

func (r *CreateShareRequest) Validate(now time.Time) error {
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return dErrors.New(dErrors.CodeValidation, "expiresAt must be in the future")
	}
	return nil
}

// ShareGrant is a freshly minted link together with its plaintext token.
type ShareGrant struct {
	Link  *ShareLink
	Token string
	URL   string
}

type ShareView struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"documentId"`
	CreatedBy   string     `json:"createdBy"`
	AccessToken string     `json:"accessToken,omitempty"`
	ShareURL    string     `json:"shareUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsOneTime   bool       `json:"isOneTime"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (g ShareGrant) View() ShareView {
	return ShareView{
		ID:          g.Link.ID.String(),
		DocumentID:  g.Link.DocumentID.String(),
		CreatedBy:   g.Link.CreatedBy.String(),
		AccessToken: g.Token,
		ShareURL:    g.URL,
		ExpiresAt:   g.Link.ExpiresAt,
		IsOneTime:   g.Link.IsOneTime,
		CreatedAt:   g.Link.CreatedAt,
	}
}
