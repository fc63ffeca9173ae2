package utils

// Principal and account id helpers shared by connectors and the CLI.

import (
	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"
)

func DecodePrincipal(principalString string) (principal.Principal, error) {
	decPrincipal, err := principal.Decode(principalString)
	if err != nil {
		return principal.Principal{}, errors.WithMessage(err, "error decoding Principal String")
	}
	return decPrincipal, nil
}

// PrincipalToAccountID returns the hex ledger account id of the default
// subaccount of p.
func PrincipalToAccountID(p principal.Principal) string {
	return p.AccountIdentifier(principal.DefaultSubAccount).String()
}

// AccountIDOf decodes a textual principal and returns its account id.
func AccountIDOf(principalString string) (string, error) {
	p, err := DecodePrincipal(principalString)
	if err != nil {
		return "", err
	}
	return PrincipalToAccountID(p), nil
}
