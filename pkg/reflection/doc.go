// Package reflection is the read-only class and property database the binary
// codec consults for declared value types, canonical names and defaults.
//
// A Database is loaded once and never mutated. Default returns the table
// embedded in this package; Load reads either a YAML table written by
// WriteYAML or a Roblox JSON API dump.
//
// Property lookups follow the superclass chain, so a property declared on
// Instance is visible from every class. Alias names resolve to the same
// descriptor as the canonical name.
package reflection
