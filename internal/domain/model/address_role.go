package model

// AddressRole is what a label provider knows about one address, normalized
// into the closed RoleCategory set. Absence of a role is represented by a
// nil *AddressRole, not a zero value.
type AddressRole struct {
	Address    string            `json:"address"`
	Label      string            `json:"label"`
	Category   RoleCategory      `json:"role_category"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// EntityID returns the provider's entity/cluster identifier when present,
// used to detect transfers between addresses of the same owner.
func (r *AddressRole) EntityID() string {
	if r == nil {
		return ""
	}
	return r.Metadata["entity_id"]
}

// CategoryOrUnknown tolerates nil roles so rules can treat "no label" and
// "labeled unknown" the same way.
func (r *AddressRole) CategoryOrUnknown() RoleCategory {
	if r == nil || r.Category == "" {
		return RoleUnknown
	}
	return r.Category
}

func (r *AddressRole) ConfidenceOrZero() float64 {
	if r == nil {
		return 0
	}
	return ClampConfidence(r.Confidence)
}
