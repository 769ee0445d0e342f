package public

// newTx is the request model for submitting a transaction. The sender is
// the hex encoded public key of the paying account, or "network" for a
// mint.
type newTx struct {
	Sender    string  `json:"sender" validate:"required"`
	Receiver  string  `json:"receiver" validate:"required"`
	Amount    float64 `json:"amount" validate:"gte=0"`
	Signature string  `json:"signature"`
}

// signedTx is the request model for submitting a pre-signed transaction.
type signedTx struct {
	Sender    string  `json:"sender" validate:"required"`
	Receiver  string  `json:"receiver" validate:"required"`
	Amount    float64 `json:"amount" validate:"gte=0"`
	Signature string  `json:"signature" validate:"required"`
}

// balance is the response model for a balance query.
type balance struct {
	Account string  `json:"account"`
	Balance float64 `json:"balance"`
}
