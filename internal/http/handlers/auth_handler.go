// README: Registration and login.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cabdispatch/internal/modules/account"
)

type AuthHandler struct {
	accounts *account.Service
}

func NewAuthHandler(accounts *account.Service) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type registerReq struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (r registerReq) command() account.RegisterCommand {
	return account.RegisterCommand{
		Username: r.Username, Email: r.Email, Password: r.Password,
		FirstName: r.FirstName, LastName: r.LastName, Phone: r.Phone,
	}
}

// Register creates a customer account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), req.command())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, userJSON(u))
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"token":      res.Token,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
		"user":       userJSON(res.User),
	})
}

// Me returns the caller's own account.
func (h *AuthHandler) Me(c *gin.Context) {
	cl := caller(c)
	u, err := h.accounts.Get(c.Request.Context(), cl, cl.UserID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, userJSON(u))
}
