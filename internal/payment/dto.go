package payment

import "time"

type PaymentResponse struct {
	ID                    int64         `json:"id"`
	BorrowID              int64         `json:"borrow_id"`
	Amount                string        `json:"amount"`
	Currency              string        `json:"currency"`
	ExternalTransactionID string        `json:"transaction_id"`
	Status                PaymentStatus `json:"status"`
	CreatedAt             time.Time     `json:"created_at"`
}

type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

func toResponse(p Payment) PaymentResponse {
	return PaymentResponse{
		ID:                    p.ID,
		BorrowID:              p.BorrowID,
		Amount:                p.Amount.StringFixed(2),
		Currency:              p.Currency,
		ExternalTransactionID: p.ExternalTransactionID,
		Status:                p.Status,
		CreatedAt:             p.CreatedAt,
	}
}

func toResponses(ps []Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toResponse(p))
	}
	return out
}
