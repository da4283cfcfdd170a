// README: Driver handlers for active trips, history, start and complete.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
)

type DriverHandler struct {
	bookings *booking.Service
	fleet    *fleet.Service
	reports  *report.Service
}

func NewDriverHandler(bookings *booking.Service, fleetSvc *fleet.Service, reports *report.Service) *DriverHandler {
	return &DriverHandler{bookings: bookings, fleet: fleetSvc, reports: reports}
}

// Profile returns the calling driver's own profile, including the staffed cab.
func (h *DriverHandler) Profile(c *gin.Context) {
	d, err := h.fleet.DriverForUser(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, driversJSON([]*fleet.Driver{d})[0])
}

func (h *DriverHandler) Trips(c *gin.Context) {
	bs, err := h.bookings.ListActiveForDriver(c.Request.Context(), caller(c), 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": bookingsJSON(bs)})
}

func (h *DriverHandler) History(c *gin.Context) {
	bs, err := h.bookings.ListHistoryForDriver(c.Request.Context(), caller(c), 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": bookingsJSON(bs)})
}

func (h *DriverHandler) Start(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Start(c.Request.Context(), booking.StartCommand{BookingID: id, Caller: caller(c)})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingJSON(b))
}

func (h *DriverHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Complete(c.Request.Context(), booking.CompleteCommand{BookingID: id, Caller: caller(c)})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingJSON(b))
}

func (h *DriverHandler) Summary(c *gin.Context) {
	s, err := h.reports.DriverSummary(c.Request.Context(), caller(c), 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, partyJSON(s))
}
