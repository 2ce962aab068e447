package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WindOfMind/discussions-tcp-server/pkg/auth"
	"github.com/WindOfMind/discussions-tcp-server/pkg/discussion"
	"github.com/WindOfMind/discussions-tcp-server/pkg/notify"
)

func newTestDispatcher() (*Dispatcher, *notify.Hub) {
	registry := auth.NewRegistry()
	hub := notify.NewHub(0)
	store := discussion.NewStore(registry, hub)
	return NewDispatcher(registry, store, hub), hub
}

// secondField pulls the payload field out of a "reqId|value\n" response.
func secondField(t *testing.T, response string) string {
	t.Helper()
	parts := strings.SplitN(strings.TrimSuffix(response, "\n"), "|", 2)
	require.Len(t, parts, 2, "expected two fields in %q", response)
	return parts[1]
}

func TestDispatchSignInEchoesRequestID(t *testing.T) {
	d, _ := newTestDispatcher()

	assert.Equal(t, "abcdefg\n", d.Dispatch("abcdefg|SIGN_IN|janedoe", "client-1"))
}

func TestDispatchFailureLine(t *testing.T) {
	d, _ := newTestDispatcher()

	tests := []struct {
		name string
		line string
	}{
		{"no separator", "garbage"},
		{"empty line", ""},
		{"request id too short", "abc|SIGN_IN|janedoe"},
		{"request id uppercase", "ABCDEFG|SIGN_IN|janedoe"},
		{"unknown kind", "abcdefg|DELETE_EVERYTHING"},
		{"sign in without a name", "abcdefg|SIGN_IN"},
		{"sign in with invalid name", "abcdefg|SIGN_IN|not a name"},
		{"create requires sign in", "abcdefg|CREATE_DISCUSSION|video1.0s|hello"},
		{"reply requires sign in", "abcdefg|CREATE_REPLY|some-id|hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, failureLine, d.Dispatch(tt.line, "client-1"))
		})
	}
}

func TestDispatchWhoAmI(t *testing.T) {
	d, _ := newTestDispatcher()

	assert.Equal(t, "abcdefg\n", d.Dispatch("abcdefg|WHOAMI", "client-1"),
		"anonymous connection gets the bare request id")

	require.Equal(t, "bcdefgh\n", d.Dispatch("bcdefgh|SIGN_IN|janedoe", "client-1"))
	assert.Equal(t, "cdefghi|janedoe\n", d.Dispatch("cdefghi|WHOAMI", "client-1"))

	// Identity is per connection.
	assert.Equal(t, "defghij\n", d.Dispatch("defghij|WHOAMI", "client-2"))
}

func TestDispatchSignOut(t *testing.T) {
	d, _ := newTestDispatcher()

	assert.Equal(t, "abcdefg\n", d.Dispatch("abcdefg|SIGN_OUT", "client-1"),
		"signing out while anonymous is a no-op, not an error")

	require.Equal(t, "bcdefgh\n", d.Dispatch("bcdefgh|SIGN_IN|janedoe", "client-1"))
	assert.Equal(t, "cdefghi\n", d.Dispatch("cdefghi|SIGN_OUT", "client-1"))
	assert.Equal(t, "defghij\n", d.Dispatch("defghij|WHOAMI", "client-1"))
}

func TestDispatchCreateDiscussion(t *testing.T) {
	d, _ := newTestDispatcher()
	require.Equal(t, "aaaaaaa\n", d.Dispatch("aaaaaaa|SIGN_IN|janedoe", "client-1"))

	response := d.Dispatch("bcdefgh|CREATE_DISCUSSION|video1.0s|First!", "client-1")
	id := secondField(t, response)
	assert.NotEmpty(t, id)

	assert.Equal(t, failureLine,
		d.Dispatch("cdefghi|CREATE_DISCUSSION|notareference|First!", "client-1"))
	assert.Equal(t, failureLine,
		d.Dispatch("defghij|CREATE_DISCUSSION|video1.0s", "client-1"),
		"comment payload is required")
}

func TestDispatchGetDiscussion(t *testing.T) {
	d, _ := newTestDispatcher()
	require.Equal(t, "aaaaaaa\n", d.Dispatch("aaaaaaa|SIGN_IN|janedoe", "client-1"))

	assert.Equal(t, "bcdefgh|\n", d.Dispatch("bcdefgh|GET_DISCUSSION|no-such-id", "client-1"),
		"unknown id yields an empty field, not a failure")

	id := secondField(t, d.Dispatch("cdefghi|CREATE_DISCUSSION|ref1.0s|Hi \"there\", folks", "client-1"))

	got := d.Dispatch("defghij|GET_DISCUSSION|"+id, "client-1")
	want := "defghij|" + id + "|ref1.0s|(janedoe|\"Hi \"\"there\"\", folks\")\n"
	assert.Equal(t, want, got)
}

func TestDispatchCreateReply(t *testing.T) {
	d, _ := newTestDispatcher()
	require.Equal(t, "aaaaaaa\n", d.Dispatch("aaaaaaa|SIGN_IN|janedoe", "client-1"))
	id := secondField(t, d.Dispatch("bbbbbbb|CREATE_DISCUSSION|video1.0s|First!", "client-1"))

	assert.Equal(t, failureLine, d.Dispatch("ccccccc|CREATE_REPLY|no-such-id|hello", "client-1"))

	assert.Equal(t, "ddddddd\n", d.Dispatch("ddddddd|CREATE_REPLY|"+id+"|Second!", "client-1"))

	got := d.Dispatch("eeeeeee|GET_DISCUSSION|"+id, "client-1")
	want := "eeeeeee|" + id + "|video1.0s|(janedoe|First!,janedoe|Second!)\n"
	assert.Equal(t, want, got)
}

func TestDispatchListDiscussions(t *testing.T) {
	d, _ := newTestDispatcher()
	require.Equal(t, "aaaaaaa\n", d.Dispatch("aaaaaaa|SIGN_IN|janedoe", "client-1"))

	assert.Equal(t, "bbbbbbb\n", d.Dispatch("bbbbbbb|LIST_DISCUSSIONS|nothing", "client-1"),
		"an empty listing contributes no field at all")

	first := secondField(t, d.Dispatch("ccccccc|CREATE_DISCUSSION|videoX.2|on part two", "client-1"))
	second := secondField(t, d.Dispatch("ddddddd|CREATE_DISCUSSION|videoX.1|on part one", "client-1"))

	got := d.Dispatch("eeeeeee|LIST_DISCUSSIONS|videoX", "client-1")
	want := "eeeeeee|(" +
		first + "|videoX.2|(janedoe|on part two)," +
		second + "|videoX.1|(janedoe|on part one))\n"
	assert.Equal(t, want, got, "listing keeps creation order, not reference order")
}

func TestDispatchMentionQueuesNotification(t *testing.T) {
	d, hub := newTestDispatcher()

	// johndoe signs in once so the name is known, then goes away.
	require.Equal(t, "aaaaaaa\n", d.Dispatch("aaaaaaa|SIGN_IN|johndoe", "client-2"))
	require.Equal(t, "bbbbbbb\n", d.Dispatch("bbbbbbb|SIGN_OUT", "client-2"))

	require.Equal(t, "ccccccc\n", d.Dispatch("ccccccc|SIGN_IN|janedoe", "client-1"))
	d.Dispatch("ddddddd|CREATE_DISCUSSION|video1.0s|What do you think @johndoe?", "client-1")

	assert.Equal(t, 1, hub.Pending("johndoe"), "mentioned user gets one queued notification")
	assert.Zero(t, hub.Pending("janedoe"), "the author is not notified about their own discussion")
}

func TestDispatchReplyNotifiesParticipants(t *testing.T) {
	d, hub := newTestDispatcher()

	require.Equal(t, "aaaaaaa\n", d.Dispatch("aaaaaaa|SIGN_IN|janedoe", "client-1"))
	require.Equal(t, "bbbbbbb\n", d.Dispatch("bbbbbbb|SIGN_IN|johndoe", "client-2"))

	id := secondField(t, d.Dispatch("ccccccc|CREATE_DISCUSSION|video1.0s|First!", "client-1"))
	d.Dispatch("ddddddd|CREATE_REPLY|"+id+"|Second!", "client-2")

	assert.Equal(t, 1, hub.Pending("janedoe"))
	assert.Equal(t, 1, hub.Pending("johndoe"), "the replier is a participant and gets notified too")
}
