package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projecttracker/internal/util"
	"projecttracker/pkg/config"
	"projecttracker/pkg/rbac"
)

// Keys under which the auth middleware stores the caller in the gin context.
const (
	ContextSubject = "subject"
	ContextRole    = "role"
)

type AuthHandler struct {
	admin     config.AdminConfig
	jwtSecret string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(admin config.AdminConfig, jwt config.JWTConfig, logger *zap.Logger) *AuthHandler {
	ttl := time.Duration(jwt.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthHandler{admin: admin, jwtSecret: jwt.Secret, ttl: ttl, logger: logger}
}

// Login exchanges the operator credentials for an admin token.
// POST /api/admin/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if h.admin.Username == "" || req.Username != h.admin.Username ||
		!util.CheckPassword(req.Password, h.admin.PasswordHash) {
		h.logger.Warn("Admin login rejected", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := util.GenerateJWT(req.Username, rbac.RoleAdmin, h.jwtSecret, h.ttl)
	if err != nil {
		respondError(c, h.logger, err, "failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"role":       rbac.RoleAdmin,
		"expires_in": int(h.ttl.Seconds()),
	})
}
