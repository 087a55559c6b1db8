package dintero

import "strings"

const (
	// TestAccountPrefix marks accounts in the provider's test environment.
	TestAccountPrefix = "T"
	// ProductionAccountPrefix marks live accounts.
	ProductionAccountPrefix = "P"
)

func hasAllowedPrefix(value string, prefixes ...string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}

	return false
}

// IsPrefixedAccount reports whether the account id already carries an
// environment prefix.
func IsPrefixedAccount(accountID string) bool {
	return hasAllowedPrefix(strings.ToUpper(accountID), TestAccountPrefix, ProductionAccountPrefix)
}

// AccountPath returns the account segment used in API paths, e.g. "T12345678"
// for account 12345678 in test mode. An existing prefix is replaced so the
// configured mode always wins.
func AccountPath(accountID string, testMode bool) string {
	id := strings.TrimSpace(accountID)
	if IsPrefixedAccount(id) {
		id = id[1:]
	}
	if testMode {
		return TestAccountPrefix + id
	}
	return ProductionAccountPrefix + id
}
