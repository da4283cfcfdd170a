// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cabdispatch/internal/http/handlers"
	"cabdispatch/internal/http/middleware"
	"cabdispatch/internal/infra"
	"cabdispatch/internal/modules/account"
	"cabdispatch/internal/modules/booking"
	"cabdispatch/internal/modules/fleet"
	"cabdispatch/internal/modules/report"
	"cabdispatch/internal/types"
)

type RouterDeps struct {
	Accounts *account.Service
	Fleet    *fleet.Service
	Bookings *booking.Service
	Reports  *report.Service
	Verifier infra.TokenVerifier
	Logger   *slog.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(log), middleware.Recovery(log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	authHandler := handlers.NewAuthHandler(d.Accounts)
	bookingHandler := handlers.NewBookingHandler(d.Bookings, d.Reports)
	driverHandler := handlers.NewDriverHandler(d.Bookings, d.Fleet, d.Reports)
	adminHandler := handlers.NewAdminHandler(d.Accounts, d.Fleet, d.Bookings, d.Reports)

	api := r.Group("/api")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(d.Verifier, d.Accounts))
	protected.GET("/auth/me", authHandler.Me)

	bookings := protected.Group("/bookings")
	bookings.POST("", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), bookingHandler.Create)
	bookings.GET("", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), bookingHandler.List)
	bookings.GET("/:id", bookingHandler.Get)
	bookings.POST("/:id/cancel", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), bookingHandler.Cancel)

	protected.GET("/customer/summary", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), bookingHandler.Summary)

	driver := protected.Group("/driver", middleware.RequireRole(types.RoleDriver))
	driver.GET("/profile", driverHandler.Profile)
	driver.GET("/trips", driverHandler.Trips)
	driver.GET("/history", driverHandler.History)
	driver.POST("/trips/:id/start", driverHandler.Start)
	driver.POST("/trips/:id/complete", driverHandler.Complete)
	driver.GET("/summary", driverHandler.Summary)

	admin := protected.Group("/admin", middleware.RequireRole(types.RoleAdmin))
	admin.GET("/bookings", adminHandler.Bookings)
	admin.GET("/bookings/:id/events", adminHandler.Events)
	admin.POST("/bookings/:id/assign", adminHandler.Assign)
	admin.POST("/bookings/:id/auto-assign", adminHandler.AutoAssign)
	admin.GET("/drivers", adminHandler.Drivers)
	admin.POST("/drivers", adminHandler.CreateDriver)
	admin.POST("/drivers/:id/rating", adminHandler.RateDriver)
	admin.GET("/drivers/:id/summary", adminHandler.DriverSummary)
	admin.GET("/cabs", adminHandler.Cabs)
	admin.POST("/cabs", adminHandler.CreateCab)
	admin.POST("/cabs/:id/driver", adminHandler.LinkCab)
	admin.GET("/users", adminHandler.Users)
	admin.POST("/users/:id/deactivate", adminHandler.Deactivate)
	admin.POST("/users/:id/activate", adminHandler.Activate)
	admin.GET("/reports/summary", adminHandler.Summary)

	return r
}
