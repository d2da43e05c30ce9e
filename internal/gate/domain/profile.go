package domain

// Profile carries the directory attributes the gate cares about. Built once
// per directory lookup and cached; treat as immutable after construction.
type Profile struct {
	Identity Identity `json:"-"`

	// Phone is the first configured phone attribute found on the entry.
	Phone string `json:"phone,omitempty"`

	// SecondFactorIdentity is the optional override attribute value used as
	// the 2FA identity instead of the canonical name (e.g. a mail address).
	SecondFactorIdentity string `json:"second_factor_identity,omitempty"`

	// Attributes holds the raw attribute values that were requested.
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// SupportInfo is the administrator contact surfaced to unregistered users.
type SupportInfo struct {
	AdminName  string `json:"AdminName"`
	AdminEmail string `json:"AdminEmail"`
	AdminPhone string `json:"AdminPhone"`
}

func (s SupportInfo) IsZero() bool {
	return s.AdminName == "" && s.AdminEmail == "" && s.AdminPhone == ""
}
