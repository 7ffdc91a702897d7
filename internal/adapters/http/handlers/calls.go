package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/callrelay/internal/adapters/http/dto"
	"github.com/jsamuelsen/callrelay/internal/app"
	"github.com/jsamuelsen/callrelay/internal/app/callstate"
	"github.com/jsamuelsen/callrelay/internal/app/relay"
)

// CallInspector exposes the relay's call state.
type CallInspector interface {
	Calls(ctx context.Context) []app.ModuleCalls
	Module(ctx context.Context, name string) (*app.ModuleCalls, error)
	Limits(ctx context.Context) map[string]map[string]int
	Hooks(ctx context.Context) []relay.HookInfo
}

// CallsHandler serves the read-only admin endpoints.
type CallsHandler struct {
	inspector CallInspector
}

// NewCallsHandler creates a calls handler.
func NewCallsHandler(inspector CallInspector) *CallsHandler {
	return &CallsHandler{inspector: inspector}
}

// List handles GET /api/v1/calls.
func (h *CallsHandler) List(c *gin.Context) {
	modules := h.inspector.Calls(c.Request.Context())

	out := make([]dto.ModuleCallsResponse, 0, len(modules))
	for _, mc := range modules {
		out = append(out, toModuleCallsResponse(mc))
	}

	c.JSON(http.StatusOK, out)
}

// ListModule handles GET /api/v1/calls/:module, paginated by call id.
func (h *CallsHandler) ListModule(c *gin.Context) {
	var path dto.ModulePath
	if err := dto.BindURIAndValidate(c, &path); err != nil {
		respondBindError(c, err)
		return
	}

	var page dto.PaginationRequest
	if err := dto.BindQueryAndValidate(c, &page); err != nil {
		respondBindError(c, err)
		return
	}

	mc, err := h.inspector.Module(c.Request.Context(), path.Module)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	resp, err := dto.Paginate(toCallResponses(mc.Calls), page, func(r dto.CallResponse) string { return r.ID })
	if err != nil {
		dto.HandleErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Limits handles GET /api/v1/limits.
func (h *CallsHandler) Limits(c *gin.Context) {
	c.JSON(http.StatusOK, h.inspector.Limits(c.Request.Context()))
}

// Hooks handles GET /api/v1/hooks.
func (h *CallsHandler) Hooks(c *gin.Context) {
	hooks := h.inspector.Hooks(c.Request.Context())

	out := make([]dto.HookResponse, 0, len(hooks))
	for _, hi := range hooks {
		out = append(out, dto.HookResponse{Hook: hi.Hook, Owner: hi.Owner, Priority: hi.Priority})
	}

	c.JSON(http.StatusOK, out)
}

// RegisterRoutes registers the admin endpoints on rg.
func (h *CallsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/calls", h.List)
	rg.GET("/calls/:module", h.ListModule)
	rg.GET("/limits", h.Limits)
	rg.GET("/hooks", h.Hooks)
}

func toModuleCallsResponse(mc app.ModuleCalls) dto.ModuleCallsResponse {
	limits := mc.Limits
	if limits == nil {
		limits = map[string]int{}
	}

	return dto.ModuleCallsResponse{Module: mc.Module, Calls: toCallResponses(mc.Calls), Limits: limits}
}

func toCallResponses(views []callstate.CallView) []dto.CallResponse {
	out := make([]dto.CallResponse, 0, len(views))
	for _, v := range views {
		out = append(out, dto.CallResponse{
			ID:             v.ID,
			Kind:           string(v.Kind),
			DestinationKey: v.DestinationKey,
			Limited:        v.Limited,
			ResourceID:     v.ResourceID,
			CreatedAt:      v.CreatedAt,
		})
	}

	return out
}
