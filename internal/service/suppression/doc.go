// Package suppression decides whether an address may receive tracked mail.
//
// An address is blocked when it has a qualifying bounce or complaint history
// and the matching policy switch is on. Counts can optionally be scoped to a
// single provider. The Validator depends only on the Repository interface
// defined in repository.go.
package suppression
