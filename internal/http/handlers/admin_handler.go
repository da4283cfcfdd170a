// README: Admin handlers: booking oversight, assignment, fleet and user management, reports.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

type AdminHandler struct {
	accounts *account.Service
	fleet    *fleet.Service
	bookings *booking.Service
	reports  *report.Service
}

func NewAdminHandler(accounts *account.Service, fleetSvc *fleet.Service, bookings *booking.Service, reports *report.Service) *AdminHandler {
	return &AdminHandler{accounts: accounts, fleet: fleetSvc, bookings: bookings, reports: reports}
}

// Bookings lists all bookings; ?status= takes a comma separated list.
func (h *AdminHandler) Bookings(c *gin.Context) {
	f := booking.Filter{Limit: queryLimit(c)}
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.Statuses = append(f.Statuses, booking.Status(s))
		}
	}
	bs, err := h.bookings.List(c.Request.Context(), caller(c), f)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": bookingsJSON(bs)})
}

func (h *AdminHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	es, err := h.bookings.Events(c.Request.Context(), caller(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": eventsJSON(es)})
}

type assignReq struct {
	DriverID types.ID `json:"driver_id"`
	CabID    types.ID `json:"cab_id"`
}

func (h *AdminHandler) Assign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.bookings.Assign(c.Request.Context(), booking.AssignCommand{
		BookingID: id, DriverID: req.DriverID, CabID: req.CabID, Caller: caller(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingJSON(b))
}

func (h *AdminHandler) AutoAssign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.AutoAssign(c.Request.Context(), booking.AutoAssignCommand{BookingID: id, Caller: caller(c)})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingJSON(b))
}

func (h *AdminHandler) Drivers(c *gin.Context) {
	ds, err := h.fleet.ListDrivers(c.Request.Context(), caller(c), fleet.DriverFilter{
		Status: fleet.Status(c.Query("status")),
		Limit:  queryLimit(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": driversJSON(ds)})
}

type createDriverReq struct {
	registerReq
	LicenseNo string  `json:"license_no"`
	Rating    float64 `json:"rating"`
}

func (h *AdminHandler) CreateDriver(c *gin.Context) {
	var req createDriverReq
	if !bindJSON(c, &req) {
		return
	}
	acc, err := h.accounts.CreateDriverAccount(c.Request.Context(), account.CreateDriverCommand{
		Caller:          caller(c),
		RegisterCommand: req.command(),
		LicenseNo:       req.LicenseNo,
		Rating:          req.Rating,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"user": userJSON(acc.User), "driver_id": acc.DriverID})
}

type rateReq struct {
	Rating float64 `json:"rating"`
}

func (h *AdminHandler) RateDriver(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req rateReq
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.fleet.RateDriver(c.Request.Context(), caller(c), id, req.Rating)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, driversJSON([]*fleet.Driver{d})[0])
}

func (h *AdminHandler) Cabs(c *gin.Context) {
	cs, err := h.fleet.ListCabs(c.Request.Context(), caller(c), fleet.CabFilter{
		Status: fleet.Status(c.Query("status")),
		Limit:  queryLimit(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]cabView, len(cs))
	for i, cb := range cs {
		out[i] = cabJSON(cb)
	}
	writeJSON(c, http.StatusOK, gin.H{"cabs": out})
}

type createCabReq struct {
	RegistrationNo string    `json:"registration_no"`
	Model          string    `json:"model"`
	Capacity       int       `json:"capacity"`
	DriverID       *types.ID `json:"driver_id"`
}

func (h *AdminHandler) CreateCab(c *gin.Context) {
	var req createCabReq
	if !bindJSON(c, &req) {
		return
	}
	cb, err := h.fleet.CreateCab(c.Request.Context(), fleet.CreateCabCommand{
		Caller:         caller(c),
		RegistrationNo: req.RegistrationNo,
		Model:          req.Model,
		Capacity:       req.Capacity,
		DriverID:       req.DriverID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cabJSON(cb))
}

type linkCabReq struct {
	// A null driver_id unlinks the cab.
	DriverID *types.ID `json:"driver_id"`
}

func (h *AdminHandler) LinkCab(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req linkCabReq
	if !bindJSON(c, &req) {
		return
	}
	cb, err := h.fleet.LinkCab(c.Request.Context(), caller(c), id, req.DriverID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cabJSON(cb))
}

func (h *AdminHandler) Users(c *gin.Context) {
	us, err := h.accounts.List(c.Request.Context(), caller(c), account.UserFilter{
		Role:  types.Role(c.Query("role")),
		Limit: queryLimit(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]userView, len(us))
	for i, u := range us {
		out[i] = userJSON(u)
	}
	writeJSON(c, http.StatusOK, gin.H{"users": out})
}

func (h *AdminHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *AdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *AdminHandler) setActive(c *gin.Context, active bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var (
		u   *account.User
		err error
	)
	if active {
		u, err = h.accounts.Activate(c.Request.Context(), caller(c), id)
	} else {
		u, err = h.accounts.Deactivate(c.Request.Context(), caller(c), id)
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, userJSON(u))
}

func (h *AdminHandler) Summary(c *gin.Context) {
	s, err := h.reports.Summary(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, summaryJSON(s))
}

// DriverSummary reports on any driver: /api/admin/drivers/:id/summary.
func (h *AdminHandler) DriverSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.reports.DriverSummary(c.Request.Context(), caller(c), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, partyJSON(s))
}
