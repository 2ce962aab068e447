package server

import (
	"errors"
	"fmt"

	"github.com/WindOfMind/discussions-tcp-server/pkg/discussion"
	"github.com/WindOfMind/discussions-tcp-server/pkg/protocol"
)

// handleSignIn handles SIGN_IN: binds a display name to the connection and
// registers it with the notification hub. Re-signing-in under a new name
// moves only this connection.
func (d *Dispatcher) handleSignIn(req *protocol.Request) (string, error) {
	fields, err := requireFields(req, 1)
	if err != nil {
		return "", err
	}
	name := fields[0]

	if err := d.registry.SignIn(req.ClientID, name); err != nil {
		return "", err
	}

	if req.UserName != "" && req.UserName != name {
		d.hub.UnregisterUser(req.UserName, req.ClientID)
	}
	d.hub.RegisterUser(req.ClientID, name)

	debugLog.Printf("Client %s signed in as %s", req.ClientID, name)

	return protocol.NewResponse().Add(req.ID).String(), nil
}

// handleWhoAmI handles WHOAMI: returns the bound name, or just the request
// id when the connection is anonymous.
func (d *Dispatcher) handleWhoAmI(req *protocol.Request) (string, error) {
	if req.UserName == "" {
		return protocol.NewResponse().Add(req.ID).String(), nil
	}
	return protocol.NewResponse().Add(req.ID).Add(req.UserName).String(), nil
}

// handleSignOut handles SIGN_OUT. Signing out an anonymous connection is a
// no-op, not an error.
func (d *Dispatcher) handleSignOut(req *protocol.Request) (string, error) {
	if req.UserName != "" {
		d.registry.SignOut(req.ClientID)
		d.hub.UnregisterUser(req.UserName, req.ClientID)
		debugLog.Printf("Client %s signed out from %s", req.ClientID, req.UserName)
	}
	return protocol.NewResponse().Add(req.ID).String(), nil
}

// handleCreateDiscussion handles CREATE_DISCUSSION with payload
// [reference, comment]. Requires a signed-in user and a valid two-segment
// reference.
func (d *Dispatcher) handleCreateDiscussion(req *protocol.Request) (string, error) {
	user, err := requireUser(req)
	if err != nil {
		return "", err
	}
	fields, err := requireFields(req, 2)
	if err != nil {
		return "", err
	}
	reference, comment := fields[0], fields[1]

	if !discussion.ValidReference(reference) {
		return "", fmt.Errorf("%w: %q", discussion.ErrInvalidReference, reference)
	}

	discussionID, err := d.store.Create(user, reference, comment)
	if err != nil {
		return "", err
	}

	return protocol.NewResponse().Add(req.ID).Add(discussionID).String(), nil
}

// handleCreateReply handles CREATE_REPLY with payload [discussionId, comment].
func (d *Dispatcher) handleCreateReply(req *protocol.Request) (string, error) {
	user, err := requireUser(req)
	if err != nil {
		return "", err
	}
	fields, err := requireFields(req, 2)
	if err != nil {
		return "", err
	}
	discussionID, comment := fields[0], fields[1]

	if _, err := d.store.ReplyTo(discussionID, user, comment); err != nil {
		return "", err
	}

	return protocol.NewResponse().Add(req.ID).String(), nil
}

// handleGetDiscussion handles GET_DISCUSSION. An unknown id yields an empty
// result field, not an error.
func (d *Dispatcher) handleGetDiscussion(req *protocol.Request) (string, error) {
	disc, err := d.store.Get(req.Field(0))
	if err != nil && !errors.Is(err, discussion.ErrNotFound) {
		return "", err
	}

	return protocol.NewResponse().
		Add(req.ID).
		Add(discussionResponse(disc)).
		String(), nil
}

// handleListDiscussions handles LIST_DISCUSSIONS with payload
// [referencePrefix]. Unknown prefixes yield an empty list.
func (d *Dispatcher) handleListDiscussions(req *protocol.Request) (string, error) {
	discussions := d.store.List(req.Field(0))

	items := make([]string, 0, len(discussions))
	for _, disc := range discussions {
		items = append(items, discussionResponse(disc))
	}

	return protocol.NewResponse().
		Add(req.ID).
		AddList(items).
		String(), nil
}

// discussionResponse renders a discussion as a nested response field:
// discussionId|reference|(authorName|content,...), comments in creation
// order with escaped content. A nil discussion renders empty.
func discussionResponse(disc *discussion.Discussion) string {
	if disc == nil {
		return ""
	}

	comments := make([]string, 0, len(disc.Comments))
	for _, c := range disc.Comments {
		comments = append(comments, protocol.Nested().
			Add(c.Author).
			AddEscaped(c.Content).
			String())
	}

	return protocol.Nested().
		Add(disc.ID).
		Add(disc.Reference).
		AddList(comments).
		String()
}
