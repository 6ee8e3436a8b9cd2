package request

import "github.com/ndewijer/Investment-Ledger-Backend/internal/model"

// TransactionRequest is the body of transaction create and update requests.
// Quantities and amounts are signed the way the ledger stores them: sells
// carry a negative quantity and a positive amount, buys the reverse.
type TransactionRequest struct {
	Type     string   `json:"type"`
	Ticker   string   `json:"ticker"`
	Date     string   `json:"date"`
	Quantity float64  `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
	Amount   float64  `json:"amount"`
	Notes    string   `json:"notes,omitempty"`
}

// Input converts the request into the ledger constructor's input.
func (r TransactionRequest) Input() model.TransactionInput {
	return model.TransactionInput{
		Type:     r.Type,
		Ticker:   r.Ticker,
		Date:     r.Date,
		Quantity: r.Quantity,
		Price:    r.Price,
		Amount:   r.Amount,
		Notes:    r.Notes,
	}
}

// ImportTransactionsRequest is the body of a bulk import. The batch is
// appended in order and either fully stored or rejected.
type ImportTransactionsRequest struct {
	Transactions []TransactionRequest `json:"transactions"`
}

// Inputs converts every entry of the batch.
func (r ImportTransactionsRequest) Inputs() []model.TransactionInput {
	inputs := make([]model.TransactionInput, len(r.Transactions))
	for i, tx := range r.Transactions {
		inputs[i] = tx.Input()
	}
	return inputs
}
