// Package steps defines the fixed, ordered catalog of report retrieval steps.
package steps

// Definition describes one step of the report retrieval sequence.
// IDs are stable, start at 1, and increase without gaps.
type Definition struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// catalog is the canonical step sequence. Loaded once, never mutated.
var catalog = []Definition{
	{ID: 1, Label: "Validating input"},
	{ID: 2, Label: "Launching browser"},
	{ID: 3, Label: "Opening login page"},
	{ID: 4, Label: "Logging in"},
	{ID: 5, Label: "Opening Analytics"},
	{ID: 6, Label: "Opening Reports"},
	{ID: 7, Label: "Selecting Physician Productivity Report"},
	{ID: 8, Label: "Selecting Radiologist Report"},
	{ID: 9, Label: "Setting date parameters"},
	{ID: 10, Label: "Setting radiologist = Current User"},
	{ID: 11, Label: "Creating report"},
	{ID: 12, Label: "Waiting for generated report link"},
	{ID: 13, Label: "Downloading .xls"},
	{ID: 14, Label: "Saving file"},
	{ID: 15, Label: "Done"},
}

// Catalog returns a copy of the step catalog so callers cannot mutate the
// shared sequence.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Count returns the number of steps in the catalog.
func Count() int {
	return len(catalog)
}

// ValidID reports whether id refers to a catalog step.
func ValidID(id int) bool {
	return id >= 1 && id <= len(catalog)
}
