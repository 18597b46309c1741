package models

// CategoryEntry is one controlled-vocabulary entry supplied by the
// external dictionary service. The engine never writes entries; it only
// resolves caller tokens against the dictionary's current state.
type CategoryEntry struct {
	// Dictionary category the entry belongs to, e.g. "LEVEL2"
	Category string `json:"category"`

	// Short token selected by the caller, e.g. "gj"
	Token string `json:"token"`

	// Label inserted into generated codes
	Label string `json:"label"`
}
