/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Money and dates
  reuse the domain marshaling (decimal-string amounts, ISO-8601 dates) so the
  persisted and served representations stay identical.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
*/
package api

import (
	"github.com/openfun/payplan/payment"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// MoneyRequest is the wire shape of an amount in requests.
type MoneyRequest struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// CreateOrderRequest creates a draft order.
type CreateOrderRequest struct {
	ID          string       `json:"id"`
	OwnerEmail  string       `json:"owner_email,omitempty"`
	Total       MoneyRequest `json:"total"`
	ProductType string       `json:"product_type"`
}

// SubmitOrderRequest submits a draft order for payment. The caller is the
// orchestration layer that knows which course run the order targets; it
// supplies the resolved date triple. Missing dates mean no eligible course
// run exists.
type SubmitOrderRequest struct {
	SignedOn    string `json:"signed_on"`
	CourseStart string `json:"course_start"`
	CourseEnd   string `json:"course_end"`
}

// PaymentNotification is the gateway webhook payload for one installment.
type PaymentNotification struct {
	OrderID       string `json:"order_id"`
	InstallmentID string `json:"installment_id"`
	Event         string `json:"event"` // "paid" or "refused"
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// OrderDTO is the full order representation.
type OrderDTO struct {
	ID               string                  `json:"id"`
	OwnerEmail       string                  `json:"owner_email,omitempty"`
	Total            payment.Money           `json:"total"`
	State            payment.OrderState      `json:"state"`
	ProductType      payment.ProductType     `json:"product_type"`
	PaymentSchedule  payment.PaymentSchedule `json:"payment_schedule"`
	ContractSignedOn *payment.Date           `json:"contract_signed_on,omitempty"`
}

func toOrderDTO(o *payment.Order) OrderDTO {
	return OrderDTO{
		ID:               o.ID,
		OwnerEmail:       o.OwnerEmail,
		Total:            o.Total,
		State:            o.State,
		ProductType:      o.ProductType,
		PaymentSchedule:  o.Schedule,
		ContractSignedOn: o.ContractSignedOn,
	}
}

// ScheduleDTO is the schedule plus the facts derived from it.
type ScheduleDTO struct {
	Installments     payment.PaymentSchedule `json:"installments"`
	NextDueDate      *payment.Date           `json:"next_due_date,omitempty"`
	RemainingBalance payment.Money           `json:"remaining_balance"`
	RefundedTotal    payment.Money           `json:"refunded_total"`
	FirstRefused     *payment.Installment    `json:"first_refused,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
