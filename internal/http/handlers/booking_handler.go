// README: Booking handlers for create, get, list and cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
	reports  *report.Service
}

func NewBookingHandler(bookings *booking.Service, reports *report.Service) *BookingHandler {
	return &BookingHandler{bookings: bookings, reports: reports}
}

type createBookingReq struct {
	// CustomerID is only honoured for admin callers.
	CustomerID  types.ID   `json:"customer_id"`
	Pickup      string     `json:"pickup"`
	Dropoff     string     `json:"dropoff"`
	DistanceKm  float64    `json:"distance_km"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		Caller:      caller(c),
		CustomerID:  req.CustomerID,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		DistanceKm:  req.DistanceKm,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, bookingJSON(b))
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), caller(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingJSON(b))
}

// List returns the caller's bookings, newest first. Admins pass ?customer_id=.
func (h *BookingHandler) List(c *gin.Context) {
	customerID, ok := queryID(c, "customer_id")
	if !ok {
		return
	}
	bs, err := h.bookings.ListForCustomer(c.Request.Context(), caller(c), customerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": bookingsJSON(bs)})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: id, Caller: caller(c), Reason: req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingJSON(b))
}

// Summary is the customer dashboard counter block.
func (h *BookingHandler) Summary(c *gin.Context) {
	customerID, ok := queryID(c, "customer_id")
	if !ok {
		return
	}
	s, err := h.reports.CustomerSummary(c.Request.Context(), caller(c), customerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, partyJSON(s))
}
