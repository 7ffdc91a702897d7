package dto

import "time"

// RelayPath is the path of a relay request.
type RelayPath struct {
	Hook string `uri:"hook" validate:"required,hookname"`
}

// RelayRequest is one engine message posted to the relay ingress.
type RelayRequest struct {
	// RetValue is the message's return value as set by earlier handlers.
	RetValue string `json:"retValue"`

	Params map[string]string `json:"params" validate:"omitempty,dive,keys,notempty,endkeys"`

	// ResourceID names the call-leg handle attached by the engine, if any.
	ResourceID string `json:"resourceId,omitempty"`
}

// RelayResponse tells the engine whether the message was handled and returns
// the possibly modified return value and parameters.
type RelayResponse struct {
	Handled  bool              `json:"handled"`
	RetValue string            `json:"retValue"`
	Params   map[string]string `json:"params"`
}

// CallResponse describes one registered call.
type CallResponse struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	DestinationKey string    `json:"destinationKey"`
	Limited        bool      `json:"limited"`
	ResourceID     string    `json:"resourceId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ModuleCallsResponse is the call state of one module.
type ModuleCallsResponse struct {
	Module string         `json:"module"`
	Calls  []CallResponse `json:"calls"`
	Limits map[string]int `json:"limits"`
}

// ModulePath is the path of a per-module request.
type ModulePath struct {
	Module string `uri:"module" validate:"required,notempty"`
}

// HookResponse describes one installed relay handler.
type HookResponse struct {
	Hook     string `json:"hook"`
	Owner    string `json:"owner"`
	Priority int    `json:"priority"`
}
