package request

// PortfolioRequest is the body of portfolio create and update requests.
// An empty accountType means taxable.
type PortfolioRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	AccountType string            `json:"accountType"`
	IsArchived  bool              `json:"isArchived"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
