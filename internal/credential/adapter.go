package credential

import (
	authmw "chequeverify/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *Claims) *authmw.CallerClaims {
	return &authmw.CallerClaims{
		Subject: claims.Subject,
		Purpose: claims.Purpose,
		JTI:     claims.ID,
	}
}

// VerifierAdapter lets the auth middleware use a Verifier without importing
// the jwt library.
type VerifierAdapter struct {
	verifier *Verifier
}

func NewVerifierAdapter(verifier *Verifier) *VerifierAdapter {
	return &VerifierAdapter{verifier: verifier}
}

func (a *VerifierAdapter) VerifyToken(tokenString string) (*authmw.CallerClaims, error) {
	claims, err := a.verifier.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}

func (a *VerifierAdapter) RejectionReason(err error) string {
	return RejectionReason(err)
}
