package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tutoring-platform/internal/middleware"
	"tutoring-platform/internal/models"
	"tutoring-platform/internal/repository"
	"tutoring-platform/internal/service"
	"tutoring-platform/internal/statemachine"
	"tutoring-platform/pkg/confirmtoken"
	"tutoring-platform/pkg/pagination"
	"tutoring-platform/pkg/response"
)

// resolveDisputeAction scopes confirmation tokens issued for dispute
// resolution so a token minted for one action can't authorize another.
const resolveDisputeAction = "resolve_dispute"

// BookingHandler exposes the booking lifecycle as HTTP commands, one route
// per statemachine.Command the Orchestrator accepts.
type BookingHandler struct {
	orch     *service.Orchestrator
	bookings *repository.BookingRepository
	tokens   *confirmtoken.Signer
}

func NewBookingHandler(orch *service.Orchestrator, bookings *repository.BookingRepository, tokens *confirmtoken.Signer) *BookingHandler {
	return &BookingHandler{orch: orch, bookings: bookings, tokens: tokens}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid request body")
		return
	}

	if actor.Role == models.CancelledByStudent {
		req.StudentID = actor.ID
	} else if !actor.IsAdmin() {
		response.Forbidden(w, "only students or admins can create bookings")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	booking, checkout, err := h.orch.CreateBooking(r.Context(), &req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Created(w, map[string]interface{}{
		"booking":      booking,
		"checkout_url": checkout.CheckoutURL,
	})
}

// GetBooking handles GET /api/v1/bookings/{id}.
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	booking, err := h.bookings.GetByID(r.Context(), bookingID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	if !canView(actor, booking) {
		response.Forbidden(w, "unauthorized access to booking")
		return
	}

	response.OK(w, map[string]interface{}{"booking": booking})
}

// ListBookings handles GET /api/v1/bookings.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	filter := &models.ListBookingsFilter{}
	switch actor.Role {
	case models.CancelledByStudent:
		filter.StudentID = &actor.ID
	case models.CancelledByTutor:
		filter.TutorID = &actor.ID
	default:
		if studentIDStr := r.URL.Query().Get("student_id"); studentIDStr != "" {
			if studentID, err := uuid.Parse(studentIDStr); err == nil {
				filter.StudentID = &studentID
			}
		}
		if tutorIDStr := r.URL.Query().Get("tutor_id"); tutorIDStr != "" {
			if tutorID, err := uuid.Parse(tutorIDStr); err == nil {
				filter.TutorID = &tutorID
			}
		}
	}

	if stateStr := r.URL.Query().Get("session_state"); stateStr != "" {
		state := models.SessionState(stateStr)
		filter.State = &state
	}

	params := pagination.ParseParams(r)
	bookings, total, err := h.bookings.List(r.Context(), filter, params.Limit, params.Offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list bookings")
		response.InternalError(w, "failed to retrieve bookings")
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}

	response.OK(w, pagination.NewResponse(map[string]interface{}{"bookings": bookings}, params.Page, params.PerPage, total))
}

// ApproveBooking handles POST /api/v1/bookings/{id}/approve.
func (h *BookingHandler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}
	if actor.Role != models.CancelledByTutor && !actor.IsAdmin() {
		response.Forbidden(w, "only the tutor or an admin can approve a booking")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	result, err := h.orch.ApproveBooking(r.Context(), bookingID)
	h.respondCommand(w, result, err)
}

// DeclineBooking handles POST /api/v1/bookings/{id}/decline.
func (h *BookingHandler) DeclineBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}
	if actor.Role != models.CancelledByTutor && !actor.IsAdmin() {
		response.Forbidden(w, "only the tutor or an admin can decline a booking")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	result, err := h.orch.DeclineBooking(r.Context(), bookingID, body.Reason)
	h.respondCommand(w, result, err)
}

// CancelBooking handles POST /api/v1/bookings/{id}/cancel.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	req := &models.CancelBookingRequest{
		BookingID: bookingID,
		ByRole:    actor.Role,
		ActorID:   actor.ID,
		Reason:    body.Reason,
	}

	result, err := h.orch.CancelBooking(r.Context(), req)
	h.respondCommand(w, result, err)
}

// RescheduleBooking handles POST /api/v1/bookings/{id}/reschedule.
func (h *BookingHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	var body struct {
		NewStart time.Time `json:"new_start"`
		NewEnd   time.Time `json:"new_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid request body")
		return
	}

	req := &models.RescheduleBookingRequest{
		BookingID: bookingID,
		NewStart:  body.NewStart,
		NewEnd:    body.NewEnd,
		ActorID:   actor.ID,
	}

	result, err := h.orch.RescheduleBooking(r.Context(), req)
	h.respondCommand(w, result, err)
}

// MarkNoShow handles POST /api/v1/bookings/{id}/no-show.
func (h *BookingHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	var body struct {
		Which models.NoShowParty `json:"which_party"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid request body")
		return
	}

	req := &models.MarkNoShowRequest{BookingID: bookingID, Which: body.Which, ActorID: actor.ID}
	result, err := h.orch.MarkNoShow(r.Context(), req)
	h.respondCommand(w, result, err)
}

// OpenDispute handles POST /api/v1/bookings/{id}/disputes.
func (h *BookingHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid request body")
		return
	}

	req := &models.OpenDisputeRequest{BookingID: bookingID, ActorID: actor.ID, Reason: body.Reason}
	result, err := h.orch.OpenDispute(r.Context(), req)
	h.respondCommand(w, result, err)
}

// ResolveDispute handles POST /api/v1/bookings/{id}/disputes/resolve. Only an
// admin holding a fresh confirm token scoped to this booking may call it.
func (h *BookingHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		response.Unauthorized(w, "authentication required")
		return
	}
	if !actor.IsAdmin() {
		response.Forbidden(w, "only an admin can resolve a dispute")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid booking id")
		return
	}

	var body struct {
		Resolution     models.DisputeResolution `json:"resolution"`
		ConfirmToken   string                   `json:"confirm_token"`
		ExplicitAmount *int64                   `json:"explicit_amount_cents,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, response.ErrCodeInvalidInput, "invalid request body")
		return
	}

	if _, err := h.tokens.Verify(body.ConfirmToken, resolveDisputeAction, bookingID); err != nil {
		response.Error(w, http.StatusUnauthorized, response.ErrCodeInvalidSignature, "confirm token invalid or expired")
		return
	}

	req := &models.ResolveDisputeRequest{
		BookingID:      bookingID,
		Resolution:     body.Resolution,
		AdminID:        actor.ID,
		ConfirmToken:   body.ConfirmToken,
		ExplicitAmount: body.ExplicitAmount,
	}

	result, err := h.orch.ResolveDispute(r.Context(), req)
	h.respondCommand(w, result, err)
}

// respondCommand renders a CommandResult: a Rejection maps to 409/422, an
// error maps through handleError, success echoes the new booking state.
func (h *BookingHandler) respondCommand(w http.ResponseWriter, result *service.CommandResult, err error) {
	if err != nil {
		h.handleError(w, err)
		return
	}
	if result.Rejection != nil {
		h.handleRejection(w, result.Rejection)
		return
	}
	response.OK(w, map[string]interface{}{"booking": result.Booking})
}

func (h *BookingHandler) handleRejection(w http.ResponseWriter, rejection *statemachine.Rejection) {
	switch rejection.Reason {
	case statemachine.RejectionTerminalState:
		response.Conflict(w, response.ErrCodeConflict, rejection.Message)
	case statemachine.RejectionPreconditionFailed:
		response.Error(w, http.StatusUnprocessableEntity, response.ErrCodeValidationFailed, rejection.Message)
	default:
		response.Error(w, http.StatusUnprocessableEntity, response.ErrCodeInvalidInput, rejection.Message)
	}
}

func (h *BookingHandler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		response.NotFound(w, "booking not found")
	case errors.Is(err, repository.ErrTimeConflict):
		response.Conflict(w, response.ErrCodeScheduleConflict, "tutor has an overlapping booking in this window")
	case errors.Is(err, repository.ErrOptimisticLockConflict):
		response.Conflict(w, response.ErrCodeConflict, "booking was modified concurrently, retry")
	case errors.Is(err, models.ErrInvalidStudentID), errors.Is(err, models.ErrInvalidTutorID),
		errors.Is(err, models.ErrInvalidBookingWindow), errors.Is(err, models.ErrBookingTooShort),
		errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrInvalidCurrency),
		errors.Is(err, models.ErrMissingIdempotencyKey), errors.Is(err, models.ErrInvalidBookingID),
		errors.Is(err, models.ErrInvalidCancelledByRole), errors.Is(err, models.ErrInvalidNoShowParty),
		errors.Is(err, models.ErrInvalidReason), errors.Is(err, models.ErrInvalidDisputeResolution),
		errors.Is(err, models.ErrMissingConfirmToken), errors.Is(err, models.ErrInvalidAdminID):
		response.BadRequest(w, response.ErrCodeInvalidInput, err.Error())
	default:
		log.Error().Err(err).Str("error_type", fmt.Sprintf("%T", err)).Msg("unhandled booking error")
		response.InternalError(w, "operation failed")
	}
}

func canView(actor middleware.Actor, b *models.Booking) bool {
	switch actor.Role {
	case models.CancelledByStudent:
		return b.StudentID == actor.ID
	case models.CancelledByTutor:
		return b.TutorID == actor.ID
	default:
		return actor.IsAdmin()
	}
}
