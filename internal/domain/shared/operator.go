package shared

// Operator is the authenticated user acting on the ledger
type Operator struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin"`
}

// DisplayName returns the name, falling back to the id
func (o Operator) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	if o.ID != "" {
		return o.ID
	}
	return "anonymous"
}
