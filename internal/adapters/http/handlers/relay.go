package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/callrelay/internal/adapters/http/dto"
	"github.com/jsamuelsen/callrelay/internal/app"
)

// Relayer dispatches one engine message.
type Relayer interface {
	Relay(ctx context.Context, in app.InboundMessage) (*app.DispatchResult, error)
}

// RelayHandler is the engine's ingress: every subscribed message is posted here.
type RelayHandler struct {
	relayer Relayer
}

// NewRelayHandler creates a relay handler.
func NewRelayHandler(relayer Relayer) *RelayHandler {
	return &RelayHandler{relayer: relayer}
}

// Relay handles POST /api/v1/relay/:hook.
// An unhandled message is still a 200; the engine reads handled from the body.
func (h *RelayHandler) Relay(c *gin.Context) {
	var path dto.RelayPath
	if err := dto.BindURIAndValidate(c, &path); err != nil {
		respondBindError(c, err)
		return
	}

	var req dto.RelayRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.relayer.Relay(c.Request.Context(), app.InboundMessage{
		Name:       path.Hook,
		RetValue:   req.RetValue,
		Params:     req.Params,
		ResourceID: req.ResourceID,
	})
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RelayResponse{
		Handled:  res.Handled,
		RetValue: res.RetValue,
		Params:   res.Params,
	})
}

// RegisterRoutes registers the relay ingress on rg.
func (h *RelayHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/relay/:hook", h.Relay)
}

func respondBindError(c *gin.Context, err error) {
	if dto.IsValidationError(err) {
		dto.HandleValidationErrors(c, dto.ValidationErrors(err))
		return
	}

	dto.HandleErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
}
