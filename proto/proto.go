package proto

import (
	"encoding/json"
	"fmt"
)

// ClaimType selects whether a verification attempt registers a new user
// or proves an existing one.
type ClaimType uint8

const (
	ClaimType_Enrol ClaimType = iota
	ClaimType_Verify
)

var claimTypeNames = map[ClaimType]string{
	ClaimType_Enrol:  "enrol",
	ClaimType_Verify: "verify",
}

func (t ClaimType) String() string {
	return claimTypeNames[t]
}

func (t ClaimType) IsValid() bool {
	_, ok := claimTypeNames[t]
	return ok
}

func (t ClaimType) MarshalJSON() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid claim type: %d", t)
	}
	return json.Marshal(t.String())
}

func (t *ClaimType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for v, name := range claimTypeNames {
		if name == s {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("invalid claim type: %q", s)
}

// AssuranceType selects the level of the biometric check. Genuine
// presence is the default.
type AssuranceType uint8

const (
	AssuranceType_GenuinePresence AssuranceType = iota
	AssuranceType_Liveness
)

var assuranceTypeNames = map[AssuranceType]string{
	AssuranceType_GenuinePresence: "genuine_presence",
	AssuranceType_Liveness:        "liveness",
}

func (t AssuranceType) String() string {
	return assuranceTypeNames[t]
}

func (t AssuranceType) IsValid() bool {
	_, ok := assuranceTypeNames[t]
	return ok
}

func (t AssuranceType) MarshalJSON() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid assurance type: %d", t)
	}
	return json.Marshal(t.String())
}

func (t *AssuranceType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for v, name := range assuranceTypeNames {
		if name == s {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("invalid assurance type: %q", s)
}

// TokenRequest asks the broker for a one-time verification token.
type TokenRequest struct {
	UserID        string        `json:"userId"`
	ClaimType     ClaimType     `json:"claimType"`
	AssuranceType AssuranceType `json:"assuranceType"`
}

func (r *TokenRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("request is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if !r.ClaimType.IsValid() {
		return fmt.Errorf("invalid claimType: %d", r.ClaimType)
	}
	if !r.AssuranceType.IsValid() {
		return fmt.Errorf("invalid assuranceType: %d", r.AssuranceType)
	}
	return nil
}

// TokenGrant is the broker's answer to a TokenRequest. One grant backs
// exactly one session attempt.
type TokenGrant struct {
	Token            string  `json:"token"`
	Region           string  `json:"region"`
	PrivacyPolicyURL *string `json:"privacyPolicyUrl,omitempty"`
}

func (g *TokenGrant) Validate() error {
	if g.Token == "" {
		return fmt.Errorf("grant token is empty")
	}
	if g.Region == "" {
		return fmt.Errorf("grant region is empty")
	}
	return nil
}

// ValidateRequest forwards a completed verification token for a pass/fail
// judgement.
type ValidateRequest struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ClaimType ClaimType `json:"claimType"`
}

func (r *ValidateRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("request is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if r.Token == "" {
		return fmt.Errorf("token is required")
	}
	if !r.ClaimType.IsValid() {
		return fmt.Errorf("invalid claimType: %d", r.ClaimType)
	}
	return nil
}

// ValidationResult is the gateway's judgement on a completed session.
type ValidationResult struct {
	Passed bool `json:"passed"`
}

// Credential is the session credential minted after a passed validation.
type Credential struct {
	Credential string `json:"credential"`
}
