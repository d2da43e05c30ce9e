package backend

// AccessRequest is the input for creating a challenge page.
type AccessRequest struct {
	// Identity is the name the user verifies under, after any configured
	// identity-attribute override.
	Identity string

	// RawUserName is the name the request arrived with, echoed back by the
	// API inside the signed assertion.
	RawUserName string

	// PostbackURL is where the challenge page sends the signed assertion.
	PostbackURL string

	// Phone optionally pre-fills the user's phone for enrollment.
	Phone string
}

// Field names below follow the MultiFactor API contract, casing included.

type accessRequestBody struct {
	Identity  string            `json:"Identity"`
	UserPhone string            `json:"userPhone,omitempty"`
	Callback  callbackBody      `json:"Callback"`
	Claims    map[string]string `json:"claims,omitempty"`
}

type callbackBody struct {
	Action string `json:"Action"`
	Target string `json:"Target"`
}

type webResponse struct {
	Success bool           `json:"Success"`
	Message string         `json:"Message"`
	Model   accessPageBody `json:"Model"`
}

type accessPageBody struct {
	URL string `json:"Url"`
}

type supportInfoBody struct {
	AdminName  string `json:"AdminName"`
	AdminEmail string `json:"AdminEmail"`
	AdminPhone string `json:"AdminPhone"`
}
