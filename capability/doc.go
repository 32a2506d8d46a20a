// Package capability resolves the optional command-execution surface once and shares
// it read-only across requests. An absent capability is a normal outcome, not an error.
package capability
