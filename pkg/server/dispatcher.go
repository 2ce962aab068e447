package server

import (
	"errors"
	"fmt"

	"github.com/WindOfMind/discussions-tcp-server/pkg/auth"
	"github.com/WindOfMind/discussions-tcp-server/pkg/discussion"
	"github.com/WindOfMind/discussions-tcp-server/pkg/notify"
	"github.com/WindOfMind/discussions-tcp-server/pkg/protocol"
)

// failureLine is the uniform wire response for any decode, validation or
// domain error. The protocol carries no structured error code.
const failureLine = "Error processing message\n"

// handlerFunc processes one decoded request and returns the serialized
// response line. Domain errors are returned, never written directly.
type handlerFunc func(req *protocol.Request) (string, error)

// Dispatcher validates decoded requests and routes them to the handler for
// their kind. It is the single synchronization point between the protocol
// layer and the domain services; it holds no per-request state.
type Dispatcher struct {
	registry *auth.Registry
	store    *discussion.Store
	hub      *notify.Hub
	handlers map[protocol.Kind]handlerFunc
	metrics  *Metrics
}

// NewDispatcher builds the fixed handler table. The kind set is closed and
// checked at decode time, so every decodable kind must have an entry here; a
// miss at dispatch time is a configuration error, not a protocol error.
func NewDispatcher(registry *auth.Registry, store *discussion.Store, hub *notify.Hub) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		store:    store,
		hub:      hub,
	}
	d.handlers = map[protocol.Kind]handlerFunc{
		protocol.KindSignIn:           d.handleSignIn,
		protocol.KindWhoAmI:           d.handleWhoAmI,
		protocol.KindSignOut:          d.handleSignOut,
		protocol.KindCreateDiscussion: d.handleCreateDiscussion,
		protocol.KindCreateReply:      d.handleCreateReply,
		protocol.KindGetDiscussion:    d.handleGetDiscussion,
		protocol.KindListDiscussions:  d.handleListDiscussions,
	}
	return d
}

// SetMetrics attaches request metrics to the dispatcher.
func (d *Dispatcher) SetMetrics(m *Metrics) {
	d.metrics = m
}

// Dispatch decodes one request line and runs its handler. It always returns
// a complete wire line: decode failures and handler errors become the
// uniform failure line, and the connection stays open either way.
func (d *Dispatcher) Dispatch(line, clientID string) string {
	req, err := protocol.ParseRequest(line, clientID)
	if err != nil {
		debugLog.Printf("Client %s decode failure: %v", clientID, err)
		if d.metrics != nil {
			d.metrics.RecordDecodeFailure()
		}
		return failureLine
	}

	if name, ok := d.registry.WhoAmI(clientID); ok {
		req.UserName = name
	}

	if d.metrics != nil {
		d.metrics.RecordRequest(string(req.Kind))
	}

	handler, ok := d.handlers[req.Kind]
	if !ok {
		// The decoder only admits kinds from the closed set, so this can
		// only happen if the table above is incomplete.
		errorLog.Printf("No handler registered for kind %s", req.Kind)
		return failureLine
	}

	response, err := handler(req)
	if err != nil {
		debugLog.Printf("Client %s %s error: %v", clientID, req.Kind, err)
		if d.metrics != nil {
			d.metrics.RecordHandlerError(string(req.Kind))
		}
		return failureLine
	}

	return response
}

var (
	errNotSignedIn    = errors.New("not signed in")
	errMissingPayload = errors.New("missing required payload field")
)

// requireUser returns the request's resolved display name or a domain error
// for actions that need an identity.
func requireUser(req *protocol.Request) (string, error) {
	if req.UserName == "" {
		return "", errNotSignedIn
	}
	return req.UserName, nil
}

// requireFields destructures the first n payload fields, failing if any is
// missing or empty.
func requireFields(req *protocol.Request, n int) ([]string, error) {
	fields := make([]string, n)
	for i := 0; i < n; i++ {
		f := req.Field(i)
		if f == "" {
			return nil, fmt.Errorf("%w: field %d", errMissingPayload, i)
		}
		fields[i] = f
	}
	return fields, nil
}
