// Package imauth builds the multi-clause Authorization header expected by
// the Infrastructure Manager.
//
// The header holds one clause for the IM itself and one for the target cloud
// provider. Clauses are joined by the two characters '\' 'n', not by a line
// break. Values are inserted verbatim: a value that itself contains the
// separator or a ';' will be split by the backend's parser. Use Ambiguous to
// detect such input.
package imauth

import (
	"fmt"
	"strings"
)

// Separator joins the header clauses.
const Separator = `\n`

// Credentials are the inputs of the composed header. All fields are expected
// to be non-empty; validation happens before composition.
type Credentials struct {
	IMToken          string
	IaaSToken        string
	ProviderName     string
	ProviderType     string
	ProviderEndpoint string
}

// Header returns the Authorization header value for c.
func Header(c Credentials) string {
	return strings.Join([]string{
		"type = InfrastructureManager; token = " + c.IMToken,
		fmt.Sprintf("id = %s; type = '%s'; host = %s; token = %s",
			c.ProviderName, c.ProviderType, c.ProviderEndpoint, c.IaaSToken),
	}, Separator)
}

// Ambiguous reports whether any value contains a clause separator (literal
// or a real line break), which the backend cannot tell apart from a clause
// boundary.
func (c Credentials) Ambiguous() bool {
	for _, v := range []string{c.IMToken, c.IaaSToken, c.ProviderName, c.ProviderType, c.ProviderEndpoint} {
		if strings.Contains(v, Separator) || strings.ContainsAny(v, "\r\n") {
			return true
		}
	}
	return false
}
