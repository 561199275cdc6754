// Package models holds organization key material and the certificates issued from it.
package models

import (
	"strings"
	"time"

	id "docsign/pkg/domain"
	dErrors "docsign/pkg/domain-errors"
)

const DefaultKeyPairName = "Default"

// KeyPolicy decides what happens to an organization's prior key pairs when a
// new one is generated.
type KeyPolicy string

const (
	// PolicySingleActive deactivates every prior active pair in the same
	// transaction. At most one pair per organization is active.
	PolicySingleActive KeyPolicy = "single_active"
	// PolicyMultiKey keeps priors active; the newest active pair is current.
	PolicyMultiKey KeyPolicy = "multi_key"
)

// ParseKeyPolicy accepts the configured policy name; empty means single_active.
func ParseKeyPolicy(raw string) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicySingleActive:
		return PolicySingleActive, nil
	case PolicyMultiKey:
		return PolicyMultiKey, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown key policy: "+raw)
}

// KeyPair is an RSA key pair owned by an organization. Pairs are never
// deleted; the only mutation is deactivation by the key policy.
type KeyPair struct {
	ID             id.KeyPairID
	OrganizationID id.OrganizationID
	Name           string
	Algorithm      string
	KeySize        int
	PublicKey      string
	PrivateKey     string // sealed
	IsActive       bool
	CreatedAt      time.Time
}

// Certificate binds a copy of a key pair to a validity window. Documents are
// signed against certificates, never against key pairs directly.
//
// Invariants:
//   - ValidFrom is strictly before ValidUntil
//   - RevokedAt is set iff IsRevoked
type Certificate struct {
	ID             id.CertificateID
	OrganizationID id.OrganizationID
	KeyPairID      id.KeyPairID
	PublicKey      string
	PrivateKey     string // sealed
	ValidFrom      time.Time
	ValidUntil     time.Time
	IsRevoked      bool
	RevokedAt      *time.Time
	RevokedReason  string
	CreatedAt      time.Time
}

// UsableAt reports whether the certificate can produce signatures at now.
// Both window bounds are inclusive.
func (c *Certificate) UsableAt(now time.Time) bool {
	if c.IsRevoked {
		return false
	}
	return !now.Before(c.ValidFrom) && !now.After(c.ValidUntil)
}

// CanRevoke rejects revoking twice.
func (c *Certificate) CanRevoke() error {
	if c.IsRevoked {
		return dErrors.New(dErrors.CodeConflict, "certificate is already revoked")
	}
	return nil
}

func (c *Certificate) ApplyRevocation(now time.Time, reason string) {
	c.IsRevoked = true
	c.RevokedAt = &now
	c.RevokedReason = reason
}

// IssueCertificateRequest carries the validity window for a new certificate.
// A nil ValidFrom means now; ValidUntil is required.
type IssueCertificateRequest struct {
	KeyPairID  string     `json:"keyPairId"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil"`
}

type RevokeCertificateRequest struct {
	Reason string `json:"reason"`
}

// KeyPairView is the public projection of a KeyPair.
type KeyPairView struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Algorithm      string    `json:"algorithm"`
	KeySize        int       `json:"keySize"`
	PublicKey      string    `json:"publicKey"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (k *KeyPair) View() KeyPairView {
	return KeyPairView{
		ID:             k.ID.String(),
		OrganizationID: k.OrganizationID.String(),
		Name:           k.Name,
		Algorithm:      k.Algorithm,
		KeySize:        k.KeySize,
		PublicKey:      k.PublicKey,
		IsActive:       k.IsActive,
		CreatedAt:      k.CreatedAt,
	}
}

// CertificateView is the public projection of a Certificate.
type CertificateView struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	KeyPairID      string     `json:"keyPairId"`
	PublicKey      string     `json:"publicKey"`
	ValidFrom      time.Time  `json:"validFrom"`
	ValidUntil     time.Time  `json:"validUntil"`
	IsRevoked      bool       `json:"isRevoked"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
	RevokedReason  string     `json:"revokedReason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (c *Certificate) View() CertificateView {
	return CertificateView{
		ID:             c.ID.String(),
		OrganizationID: c.OrganizationID.String(),
		KeyPairID:      c.KeyPairID.String(),
		PublicKey:      c.PublicKey,
		ValidFrom:      c.ValidFrom,
		ValidUntil:     c.ValidUntil,
		IsRevoked:      c.IsRevoked,
		RevokedAt:      c.RevokedAt,
		RevokedReason:  c.RevokedReason,
		CreatedAt:      c.CreatedAt,
	}
}
