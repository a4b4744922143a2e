package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/appointly/internal/actor"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"github.com/smallbiznis/appointly/internal/observability/logger"
	"github.com/smallbiznis/appointly/pkg/db/pagination"
	"go.uber.org/zap"
)

type createBookingRequest struct {
	TechProfileID    string     `json:"tech_profile_id"`
	ServiceID        string     `json:"service_id"`
	DesignID         string     `json:"design_id"`
	AppointmentStart time.Time  `json:"appointment_start"`
	Notes            *string    `json:"notes"`
	Guest            *guestBody `json:"guest"`
}

type guestBody struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type bookingActionRequest struct {
	Action string  `json:"action"`
	Reason *string `json:"reason"`
}

type bookingActionResponse struct {
	Booking        bookingdomain.Booking `json:"booking"`
	FeeChargeError string                `json:"fee_charge_error,omitempty"`
}

type availabilityResponse struct {
	Available     bool                       `json:"available"`
	Reservation   *bookingdomain.Reservation `json:"reservation,omitempty"`
	ConflictCount int                        `json:"conflicting_bookings"`
}

func (s *Server) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	techProfileID, err := parseRequiredSnowflakeID(req.TechProfileID, "tech_profile_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	serviceID, err := parseRequiredSnowflakeID(req.ServiceID, "service_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	designID, err := parseOptionalSnowflakeID(req.DesignID, "design_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	input := bookingdomain.CreateBookingRequest{
		Actor:            actor.FromContext(c.Request.Context()),
		TechProfileID:    techProfileID,
		ServiceID:        serviceID,
		DesignID:         designID,
		AppointmentStart: req.AppointmentStart,
		Notes:            req.Notes,
	}
	if req.Guest != nil {
		input.Guest = &bookingdomain.GuestDetails{
			Email: req.Guest.Email,
			Phone: req.Guest.Phone,
			Name:  req.Guest.Name,
		}
	}

	booking, err := s.bookingSvc.Create(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": booking})
}

func (s *Server) GetBooking(c *gin.Context) {
	id, err := parseRequiredSnowflakeID(c.Param("id"), "id")
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	booking, err := s.bookingSvc.Get(c.Request.Context(), actor.FromContext(c.Request.Context()), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": booking})
}

// BookingAction applies a lifecycle action. A no-show fee that could not be
// collected is reported in the body; the status change itself has committed.
func (s *Server) BookingAction(c *gin.Context) {
	id, err := parseRequiredSnowflakeID(c.Param("id"), "id")
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req bookingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	action := bookingdomain.Action(strings.ToLower(strings.TrimSpace(req.Action)))
	if action == "" || action == bookingdomain.ActionCreate {
		AbortWithError(c, newValidationError("action", "invalid_action", "unsupported action"))
		return
	}

	ctx := c.Request.Context()
	result, err := s.bookingSvc.Transition(ctx, action, bookingdomain.TransitionRequest{
		Actor:     actor.FromContext(ctx),
		BookingID: id,
		Reason:    req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := bookingActionResponse{Booking: result.Booking}
	if result.FeeChargeError != nil {
		logger.FromContext(ctx).Warn("no-show fee not collected",
			zap.String("booking_id", id.String()),
			zap.Error(result.FeeChargeError),
		)
		resp.FeeChargeError = result.FeeChargeError.Error()
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetTechAvailability answers whether a slot is free without holding it.
func (s *Server) GetTechAvailability(c *gin.Context) {
	techProfileID, err := parseRequiredSnowflakeID(c.Param("id"), "id")
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	start, err := parseOptionalTime(c.Query("start"), "start", false)
	if err != nil || start == nil {
		AbortWithError(c, newValidationError("start", "invalid_start", "start must be an RFC3339 timestamp"))
		return
	}
	duration, err := strconv.Atoi(strings.TrimSpace(c.Query("duration_minutes")))
	if err != nil || duration <= 0 {
		AbortWithError(c, newValidationError("duration_minutes", "invalid_duration", "duration_minutes must be positive"))
		return
	}

	reservation, err := s.bookingSvc.TryReserve(c.Request.Context(), techProfileID, *start, duration)
	if err != nil {
		if conflict := asConflictError(err); conflict != nil {
			c.JSON(http.StatusOK, gin.H{"data": availabilityResponse{
				Available:     false,
				ConflictCount: conflict.Count(),
			}})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": availabilityResponse{
		Available:   true,
		Reservation: &reservation,
	}})
}

func (s *Server) ListTechBookings(c *gin.Context) {
	techProfileID, err := parseRequiredSnowflakeID(c.Param("id"), "id")
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	from, err := parseOptionalTime(c.Query("from"), "from", false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := parseOptionalTime(c.Query("to"), "to", true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	resp, err := s.bookingSvc.ListForTech(ctx, bookingdomain.ListForTechRequest{
		Pagination:    page,
		Actor:         actor.FromContext(ctx),
		TechProfileID: techProfileID,
		Statuses:      parseStatuses(c.QueryArray("status")),
		From:          from,
		To:            to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// parseStatuses accepts repeated and comma separated status params.
func parseStatuses(values []string) []bookingdomain.Status {
	var out []bookingdomain.Status
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, bookingdomain.Status(part))
			}
		}
	}
	return out
}
