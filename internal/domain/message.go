package domain

// Relay hook names delivered by the engine bus.
const (
	HookCallRoute        = "call.route"
	HookCallExecute      = "call.execute"
	HookCallAnswered     = "call.answered"
	HookChanDisconnected = "chan.disconnected"
	HookChanHangup       = "chan.hangup"
)

// Message parameter names shared by the procedures and the engine adapters.
const (
	ParamID             = "id"
	ParamTargetID       = "targetid"
	ParamLastPeerID     = "lastpeerid"
	ParamCaller         = "caller"
	ParamCallerName     = "callername"
	ParamCalled         = "called"
	ParamCallTo         = "callto"
	ParamStatus         = "status"
	ParamReason         = "reason"
	ParamError          = "error"
	ParamMaxCall        = "maxcall"
	ParamAddress        = "address"
	ParamFaxPages       = "faxpages"
	ParamFaxType        = "faxtype"
	ParamFaxECM         = "faxecm"
	ParamFaxCaller      = "faxcaller"
	ParamFaxIdentRemote = "faxident_remote"
)

// Return values with special meaning to the engine.
const (
	// RetValueReject is the "-" sentinel: the message was handled and refused.
	RetValueReject = "-"

	// RetValueError marks a failed routing attempt.
	RetValueError = "error"
)

// Message is one engine bus message: a name, a return value and string parameters.
type Message struct {
	Name     string
	RetValue string
	Params   map[string]string

	// Resource is the call-leg handle attached to the message, if any.
	Resource Resource
}

// NewMessage creates an empty message with the given name.
func NewMessage(name string) *Message {
	return &Message{Name: name, Params: make(map[string]string)}
}

// Get returns a parameter value, or "" if absent.
func (m *Message) Get(key string) string {
	return m.Params[key]
}

// Lookup returns a parameter value and whether it was present.
func (m *Message) Lookup(key string) (string, bool) {
	v, ok := m.Params[key]
	return v, ok
}

// GetDefault returns a parameter value, or def when absent or empty.
func (m *Message) GetDefault(key, def string) string {
	if v := m.Params[key]; v != "" {
		return v
	}

	return def
}

// Set stores a parameter value.
func (m *Message) Set(key, value string) {
	if m.Params == nil {
		m.Params = make(map[string]string)
	}

	m.Params[key] = value
}

// Clear removes a parameter.
func (m *Message) Clear(key string) {
	delete(m.Params, key)
}

// Rejected reports whether the return value is one of the refusal sentinels.
func (m *Message) Rejected() bool {
	return m.RetValue == RetValueReject || m.RetValue == RetValueError
}
