/*
handlers.go - HTTP API handlers for the payment engine

PURPOSE:
  Exposes the payment schedule engine via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Orders:
    POST   /api/orders                         Create draft order
    GET    /api/orders/{id}                    Get order
    GET    /api/orders/{id}/schedule           Get schedule + derived facts
    GET    /api/orders/{id}/events             Payment activity log
    POST   /api/orders/{id}/submit             Submit: assemble the schedule
    POST   /api/orders/{id}/cancel             Unconditional cancel
    POST   /api/orders/{id}/withdraw           Cancellation by legal withdrawal
    POST   /api/orders/{id}/refund             Begin refunding a canceled order

  Payments (gateway webhook):
    POST   /api/payments/notifications         Installment paid/refused
    POST   /api/orders/{id}/installments/{installmentID}/refund

  Config:
    GET    /api/config/schedule-limits         Percentage table introspection

ERROR HANDLING:
  Domain errors map onto HTTP status codes:
  - 400: invalid input, guard violations, illegal refunds, bad transitions
  - 404: unknown order or installment
  - 409: optimistic-concurrency conflict after retries
  - 500: internal or conversion errors
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/openfun/payplan/payment"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Storage is what the handlers need from persistence.
type Storage interface {
	payment.Repository
	ListOrders(ctx context.Context) ([]*payment.Order, error)
}

// EventLog is implemented by stores that keep the payment activity log.
type EventLog interface {
	EventsForOrder(ctx context.Context, orderID string) ([]payment.Event, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Storage
	Ledger *payment.Ledger
	Table  *payment.PercentageTable

	// Withdrawal configuration used when assembling schedules and judging
	// withdrawal requests.
	Withdrawal payment.WithdrawalCalculator

	// Today is injected for determinism; nil means the current UTC date.
	Today func() payment.Date

	Logger *logrus.Logger
}

// NewHandler creates a handler wired to the given store.
func NewHandler(store Storage, ledger *payment.Ledger, table *payment.PercentageTable, withdrawal payment.WithdrawalCalculator, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		Store:      store,
		Ledger:     ledger,
		Table:      table,
		Withdrawal: withdrawal,
		Logger:     logger,
	}
}

func (h *Handler) today() payment.Date {
	if h.Today != nil {
		return h.Today()
	}
	return payment.DateOf(timeNow())
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// CreateOrder stores a new draft order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		h.writeError(w, http.StatusBadRequest, "order id is required")
		return
	}
	total, err := payment.NewMoney(req.Total.Value, req.Total.Currency)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid total amount")
		return
	}

	order := &payment.Order{
		ID:          req.ID,
		OwnerEmail:  req.OwnerEmail,
		Total:       total,
		State:       payment.OrderDraft,
		ProductType: payment.ProductType(req.ProductType),
		Schedule:    payment.PaymentSchedule{},
	}
	if err := h.Store.SaveOrder(r.Context(), order); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

// GetOrder returns one order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// GetSchedule returns the schedule and its derived facts.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := ScheduleDTO{
		Installments:     order.Schedule,
		RemainingBalance: order.Schedule.RemainingBalance(),
		RefundedTotal:    order.Schedule.RefundedTotal(),
	}
	if due, ok := order.Schedule.NextDueDate(); ok {
		dto.NextDueDate = &due
	}
	if refused, ok := order.Schedule.FirstRefused(); ok {
		dto.FirstRefused = &refused
	}
	h.writeJSON(w, http.StatusOK, dto)
}

// GetEvents returns the order's payment activity log.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	log, ok := h.Store.(EventLog)
	if !ok {
		h.writeError(w, http.StatusNotFound, "activity log not available")
		return
	}
	if _, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	events, err := log.EventsForOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []payment.Event{}
	}
	h.writeJSON(w, http.StatusOK, events)
}

// SubmitOrder assembles the schedule and moves the order to pending. A zero
// total requires no payment and validates the order instead.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := order.Submit(); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if order.Total.IsZero() {
		if err := order.Validate(); err != nil {
			h.writeDomainError(w, err)
			return
		}
		if err := h.Store.SaveOrder(r.Context(), order); err != nil {
			h.writeDomainError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toOrderDTO(order))
		return
	}

	assembler := &payment.Assembler{
		Table:      h.Table,
		Withdrawal: h.Withdrawal,
		Resolver:   submittedDates{req: req},
	}
	schedule, err := assembler.Assemble(r.Context(), order)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	order.Schedule = schedule
	if signed, err := payment.ParseDate(req.SignedOn); err == nil {
		order.ContractSignedOn = &signed
	}
	if err := order.MarkPending(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveOrder(r.Context(), order); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// submittedDates resolves schedule dates from the submission payload. An
// incomplete triple means no eligible course run exists for the order.
type submittedDates struct {
	req SubmitOrderRequest
}

func (s submittedDates) ResolveScheduleDates(_ context.Context, order *payment.Order) (payment.ScheduleDates, error) {
	if s.req.SignedOn == "" || s.req.CourseStart == "" || s.req.CourseEnd == "" {
		return payment.ScheduleDates{}, &payment.ScheduleDateResolutionError{OrderID: order.ID}
	}
	signed, err := payment.ParseDate(s.req.SignedOn)
	if err != nil {
		return payment.ScheduleDates{}, &payment.ScheduleDateResolutionError{OrderID: order.ID}
	}
	start, err := payment.ParseDate(s.req.CourseStart)
	if err != nil {
		return payment.ScheduleDates{}, &payment.ScheduleDateResolutionError{OrderID: order.ID}
	}
	end, err := payment.ParseDate(s.req.CourseEnd)
	if err != nil {
		return payment.ScheduleDates{}, &payment.ScheduleDateResolutionError{OrderID: order.ID}
	}
	return payment.ScheduleDates{SignedOn: signed, CourseStart: start, CourseEnd: end}, nil
}

// CancelOrder cancels unconditionally.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	order.Cancel()
	if err := h.Store.SaveOrder(r.Context(), order); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// WithdrawOrder cancels through the legal withdrawal guard.
func (h *Handler) WithdrawOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := order.Withdraw(h.today()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveOrder(r.Context(), order); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// BeginRefund moves a canceled order with paid installments into refunding.
func (h *Handler) BeginRefund(w http.ResponseWriter, r *http.Request) {
	order, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := order.BeginRefund(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveOrder(r.Context(), order); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// HandlePaymentNotification applies a gateway paid/refused event through the
// ledger. Replays are no-ops and still answer 200.
func (h *Handler) HandlePaymentNotification(w http.ResponseWriter, r *http.Request) {
	var req PaymentNotification
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		order *payment.Order
		err   error
	)
	switch req.Event {
	case "paid":
		order, err = h.Ledger.SetPaid(r.Context(), req.OrderID, req.InstallmentID)
	case "refused":
		order, err = h.Ledger.SetRefused(r.Context(), req.OrderID, req.InstallmentID)
	default:
		h.writeError(w, http.StatusBadRequest, "unknown event "+req.Event)
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"order":       order.ID,
		"installment": req.InstallmentID,
		"event":       req.Event,
		"order_state": order.State,
	}).Info("payment notification processed")
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// RefundInstallment marks one paid installment refunded.
func (h *Handler) RefundInstallment(w http.ResponseWriter, r *http.Request) {
	order, err := h.Ledger.SetRefunded(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "installmentID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

// GetScheduleLimits exposes the percentage table for introspection.
func (h *Handler) GetScheduleLimits(w http.ResponseWriter, r *http.Request) {
	type bucketDTO struct {
		Ceiling     string `json:"ceiling"`
		Percentages []int  `json:"percentages"`
	}
	buckets := h.Table.Buckets()
	out := make([]bucketDTO, len(buckets))
	for i, b := range buckets {
		out[i] = bucketDTO{Ceiling: b.Ceiling.String(), Percentages: b.Percentages}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Errorf("failed to encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case payment.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error())
	case payment.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrConcurrentModification):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.Errorf("internal error: %v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
