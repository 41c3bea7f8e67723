package domain

// TokenPurpose scopes a verification token to the state transition its
// successful verification triggers.
type TokenPurpose string

const (
	PurposeActivation TokenPurpose = "activation"
	PurposeReset      TokenPurpose = "reset"
)
