package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/middleware"
	"github.com/medidesk/practice-api/internal/model"
	jwtauth "github.com/medidesk/practice-api/pkg/auth"
	"github.com/medidesk/practice-api/pkg/httputil"
)

type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest, meta model.Actor) (*model.AuthResponse, error)
	Login(ctx context.Context, req *model.LoginRequest, meta model.Actor) (*model.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	Logout(ctx context.Context, access *jwtauth.Claims, refreshToken string, meta model.Actor) error
	Me(ctx context.Context, userID uuid.UUID) (*model.AuthResponse, error)
	ChangePassword(ctx context.Context, actor model.Actor, req *model.ChangePasswordRequest) error
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the unauthenticated endpoints on public and the
// session endpoints on protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
	}

	session := protected.Group("/auth")
	{
		session.POST("/logout", h.Logout)
		session.GET("/me", h.Me)
		session.PUT("/password", h.ChangePassword)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), &req, middleware.CurrentActor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), &req, middleware.CurrentActor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req model.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	tokens, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tokens)
}

// Logout revokes the presented access token and, when supplied, the
// refresh token.
func (h *Handler) Logout(c *gin.Context) {
	var req model.LogoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithBindingError(c, err)
			return
		}
	}

	err := h.svc.Logout(c.Request.Context(), middleware.CurrentClaims(c), req.RefreshToken, middleware.CurrentActor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "logged out")
}

func (h *Handler) Me(c *gin.Context) {
	resp, err := h.svc.Me(c.Request.Context(), middleware.CurrentActor(c).UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindingError(c, err)
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), middleware.CurrentActor(c), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, http.StatusOK, "password changed")
}
