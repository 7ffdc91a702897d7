package domain

import (
	"sync"
	"time"
)

// Resource is an externally owned call-leg handle passed through from the
// triggering event and threaded into any derived events.
//
// Retain takes one counted reference and returns the function that drops it.
// The returned function must be called exactly once.
type Resource interface {
	ID() string
	Retain() (release func())
}

// PayloadKind tags the variant held by a CallContext.
type PayloadKind string

const (
	// KindFax marks a context created by the fax routing procedure.
	KindFax PayloadKind = "fax"

	// KindForward marks a context created by the forwarding procedure.
	KindForward PayloadKind = "forward"
)

// Payload is the per-procedure part of a CallContext.
type Payload interface {
	Kind() PayloadKind
}

// FaxContext is the payload of an inbound fax call awaiting hangup.
type FaxContext struct {
	// DeliveryAddress is the mailbox the received fax is sent to.
	DeliveryAddress string

	// OriginCaller is the caller number of the inbound fax.
	OriginCaller string

	// CapturePath is the staging file the call leg writes the image to.
	CapturePath string
}

// Kind implements Payload.
func (*FaxContext) Kind() PayloadKind { return KindFax }

// ForwardContext is the payload of a call that may be forwarded on no answer.
type ForwardContext struct {
	// ForwardTarget is the number the call is redirected to.
	ForwardTarget string

	// AnswerDelay is the answer wait, in seconds, before the engine gives up.
	AnswerDelay int
}

// Kind implements Payload.
func (*ForwardContext) Kind() PayloadKind { return KindForward }

// CallContext is the correlation record of one in-flight call.
// It is immutable after creation; the only mutation is the one-shot
// release of the attached resource reference.
type CallContext struct {
	ID             string
	DestinationKey string
	Payload        Payload
	CreatedAt      time.Time

	resource Resource
	release  func()
	once     sync.Once
}

// NewCallContext builds a context and takes its own reference on res.
// res may be nil when the event carried no call-leg handle.
func NewCallContext(id, destinationKey string, payload Payload, res Resource) *CallContext {
	c := &CallContext{
		ID:             id,
		DestinationKey: destinationKey,
		Payload:        payload,
		CreatedAt:      time.Now(),
		resource:       res,
	}

	if res != nil {
		c.release = res.Retain()
	}

	return c
}

// Resource returns the attached call-leg handle, or nil.
func (c *CallContext) Resource() Resource {
	return c.resource
}

// Close drops the context's resource reference. Only the first call has an effect.
func (c *CallContext) Close() {
	c.once.Do(func() {
		if c.release != nil {
			c.release()
		}
	})
}

// Fax returns the fax payload if this is a fax context.
func (c *CallContext) Fax() (*FaxContext, bool) {
	p, ok := c.Payload.(*FaxContext)
	return p, ok
}

// Forward returns the forward payload if this is a forward context.
func (c *CallContext) Forward() (*ForwardContext, bool) {
	p, ok := c.Payload.(*ForwardContext)
	return p, ok
}

// Kind reports the payload variant, or "" when there is no payload.
func (c *CallContext) Kind() PayloadKind {
	if c.Payload == nil {
		return ""
	}

	return c.Payload.Kind()
}
