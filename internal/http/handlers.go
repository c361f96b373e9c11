package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/flightapp/booking-service/internal/booking"
	"github.com/flightapp/booking-service/internal/domain"
	"github.com/flightapp/booking-service/internal/idempotency"
	"github.com/flightapp/booking-service/internal/observability"
	"github.com/go-chi/chi/v5"
)

var errInvalidToken = errors.New("invalid token")

type Handlers struct {
	svc    *booking.Service
	idemp  *idempotency.Idempotency
	logger observability.Logger
}

func NewHandlers(svc *booking.Service, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{svc: svc, idemp: idemp, logger: logger}
}

type bookingRequestBody struct {
	ReturnFlightID string                   `json:"returnFlightId"`
	TripType       domain.TripType          `json:"tripType"`
	Passengers     []booking.PassengerInput `json:"passengers"`
}

func (h *Handlers) BookTicket(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var body bookingRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	pnr, err := h.svc.Book(r.Context(), booking.BookRequest{
		DepartureFlightID: chi.URLParam(r, "departureFlightId"),
		ReturnFlightID:    body.ReturnFlightID,
		TripType:          body.TripType,
		Passengers:        body.Passengers,
		UserEmail:         userEmail(r),
		Token:             authToken(r),
	})
	if err != nil {
		// Anything the saga did not classify surfaces as a bad request with
		// the original message kept for diagnostics.
		h.writeDomainError(w, r, err, http.StatusBadRequest)
		return
	}

	data, _ := json.Marshal(map[string]string{"pnr": pnr})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetTicket(r.Context(), chi.URLParam(r, "pnr"))
	if err != nil {
		h.writeDomainError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.History(r.Context(), userEmail(r), authToken(r))
	if err != nil {
		h.writeDomainError(w, r, err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []booking.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "pnr"), authToken(r))
	if err != nil {
		h.writeDomainError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// writeDomainError maps the error taxonomy onto HTTP statuses. fallback
// covers errors outside the taxonomy: 400 on the booking path, 500
// elsewhere so internals never leak as booking diagnostics do.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPolicyViolation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrExternalService):
		if fallback == http.StatusBadRequest {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusBadGateway, err.Error())
		}
	case fallback == http.StatusBadRequest:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithField("path", r.URL.Path).WithError(err).Error("unexpected error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  status,
		"message": message,
	})
}
