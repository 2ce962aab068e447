package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrMalformedRequest = errors.New("malformed request: expected requestId|KIND|...")
	ErrInvalidRequestID = errors.New("invalid request id: must be 7 lowercase letters")
	ErrUnknownKind      = errors.New("unknown message kind")
)

// Kind identifies a request message on the wire. The set is closed: anything
// outside it fails decoding before a handler is ever looked up.
type Kind string

const (
	KindSignIn           Kind = "SIGN_IN"
	KindWhoAmI           Kind = "WHOAMI"
	KindSignOut          Kind = "SIGN_OUT"
	KindCreateDiscussion Kind = "CREATE_DISCUSSION"
	KindCreateReply      Kind = "CREATE_REPLY"
	KindGetDiscussion    Kind = "GET_DISCUSSION"
	KindListDiscussions  Kind = "LIST_DISCUSSIONS"
)

// PushDiscussionUpdated prefixes asynchronous notification lines. It is never
// a valid request kind.
const PushDiscussionUpdated = "DISCUSSION_UPDATED"

// Kinds lists every valid request kind, in wire-table order.
var Kinds = []Kind{
	KindSignIn,
	KindWhoAmI,
	KindSignOut,
	KindCreateDiscussion,
	KindCreateReply,
	KindGetDiscussion,
	KindListDiscussions,
}

var requestIDRegex = regexp.MustCompile(`^[a-z]{7}$`)

// Request is a decoded wire request. It is immutable once decoded, except for
// UserName which the dispatcher resolves and attaches before handling.
type Request struct {
	ID       string
	Kind     Kind
	ClientID string
	UserName string   // resolved display name, empty when not signed in
	Payload  []string // ordered fields after the kind, no count validation here
}

// ParseRequest decodes a single request line (without the trailing newline)
// into a Request. Field-count checks are left to the handlers; only the
// framing, the request id shape and the kind are validated here.
func ParseRequest(line, clientID string) (*Request, error) {
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return nil, ErrMalformedRequest
	}

	requestID := parts[0]
	if !requestIDRegex.MatchString(requestID) {
		return nil, ErrInvalidRequestID
	}

	kind := Kind(parts[1])
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, parts[1])
	}

	return &Request{
		ID:       requestID,
		Kind:     kind,
		ClientID: clientID,
		Payload:  parts[2:],
	}, nil
}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindSignIn, KindWhoAmI, KindSignOut,
		KindCreateDiscussion, KindCreateReply,
		KindGetDiscussion, KindListDiscussions:
		return true
	}
	return false
}

// Field returns the payload field at index i, or "" when absent. Mirrors the
// positional destructuring each handler does on its expected fields.
func (r *Request) Field(i int) string {
	if i < 0 || i >= len(r.Payload) {
		return ""
	}
	return r.Payload[i]
}
