// Package discussion owns the threaded-comment model: append-only
// discussions indexed for prefix lookup, with mention-driven participant
// tracking. Everything lives in memory and is reset on process restart.
package discussion

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("discussion not found")
	ErrInvalidReference = errors.New("invalid reference format")
)

// referenceRegex validates the two-segment dotted form, e.g. "video1.30s".
var referenceRegex = regexp.MustCompile(`^[a-zA-Z0-9]+\.[a-zA-Z0-9]+$`)

// ValidReference reports whether reference matches the dotted two-segment
// alphanumeric form.
func ValidReference(reference string) bool {
	return referenceRegex.MatchString(reference)
}

// Comment is a single immutable entry in a discussion thread.
type Comment struct {
	ID           string
	DiscussionID string
	Content      string
	Author       string
	CreatedAt    int64 // unix milliseconds
}

// discussion is the stored record. Comment ids are append-only and never
// reordered; participants only grow.
type discussion struct {
	id           string
	reference    string
	commentIDs   []string
	participants map[string]bool
	createdAt    int64
}

// Discussion is a read snapshot of a discussion with its comments resolved,
// in creation order. Safe to hold across store mutations.
type Discussion struct {
	ID           string
	Reference    string
	Comments     []Comment
	Participants []string
	CreatedAt    int64
}

// UserDirectory filters mention candidates down to names that exist.
type UserDirectory interface {
	IsKnownUser(name string) bool
}

// Notifier receives fan-out requests after a discussion changes. The store
// calls it outside its own lock; implementations must not block.
type Notifier interface {
	NotifyDiscussionUpdated(users []string, discussionID string)
}

// Store is the in-memory discussion/comment store. All mutations take the
// write lock so that a comment append and its participant additions are
// observed as a single atomic unit.
type Store struct {
	mu          sync.RWMutex
	discussions map[string]*discussion
	comments    map[string]*Comment
	index       map[string][]string // reference or group prefix -> discussion ids, creation order

	users    UserDirectory
	notifier Notifier
}

// NewStore creates an empty store. users filters mention candidates;
// notifier receives update fan-outs and may be nil in tests.
func NewStore(users UserDirectory, notifier Notifier) *Store {
	return &Store{
		discussions: make(map[string]*discussion),
		comments:    make(map[string]*Comment),
		index:       make(map[string][]string),
		users:       users,
		notifier:    notifier,
	}
}

// Create allocates a new discussion under reference with one initial comment
// by author. The author and every mentioned known user become participants.
// Everyone except the author is notified of the new discussion.
func (s *Store) Create(author, reference, content string) (string, error) {
	if strings.TrimSpace(reference) == "" || !ValidReference(reference) {
		return "", ErrInvalidReference
	}

	mentioned := s.knownMentions(content)

	s.mu.Lock()
	discussionID := uuid.NewString()
	now := time.Now().UnixMilli()

	comment := &Comment{
		ID:           uuid.NewString(),
		DiscussionID: discussionID,
		Content:      content,
		Author:       author,
		CreatedAt:    now,
	}
	s.comments[comment.ID] = comment

	d := &discussion{
		id:           discussionID,
		reference:    reference,
		commentIDs:   []string{comment.ID},
		participants: make(map[string]bool),
		createdAt:    now,
	}
	s.discussions[discussionID] = d

	d.participants[author] = true
	for _, user := range mentioned {
		d.participants[user] = true
	}

	// Indexed under the full reference and the group prefix, appended in
	// creation order. Existing entries are never re-sorted.
	groupPrefix := strings.SplitN(reference, ".", 2)[0]
	s.index[reference] = append(s.index[reference], discussionID)
	s.index[groupPrefix] = append(s.index[groupPrefix], discussionID)

	recipients := participantsExcept(d, author)
	s.mu.Unlock()

	s.notify(recipients, discussionID)

	return discussionID, nil
}

// ReplyTo appends a comment to an existing discussion. The author and newly
// mentioned known users join the participant set (idempotently), and every
// participant, including the replier, is notified.
func (s *Store) ReplyTo(discussionID, author, content string) (string, error) {
	mentioned := s.knownMentions(content)

	s.mu.Lock()
	d, ok := s.discussions[discussionID]
	if !ok {
		s.mu.Unlock()
		return "", ErrNotFound
	}

	comment := &Comment{
		ID:           uuid.NewString(),
		DiscussionID: discussionID,
		Content:      content,
		Author:       author,
		CreatedAt:    time.Now().UnixMilli(),
	}
	s.comments[comment.ID] = comment
	d.commentIDs = append(d.commentIDs, comment.ID)

	d.participants[author] = true
	for _, user := range mentioned {
		d.participants[user] = true
	}

	recipients := participantsExcept(d, "")
	s.mu.Unlock()

	s.notify(recipients, discussionID)

	return comment.ID, nil
}

// Get returns a snapshot of the discussion with its comments, or ErrNotFound.
func (s *Store) Get(discussionID string) (*Discussion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.discussions[discussionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.snapshotLocked(d), nil
}

// List returns the discussions indexed under referencePrefix (a full
// reference or a group prefix), strictly in creation order. Unknown prefixes
// yield an empty slice.
func (s *Store) List(referencePrefix string) []*Discussion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.index[referencePrefix]
	out := make([]*Discussion, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.discussions[id]; ok {
			out = append(out, s.snapshotLocked(d))
		}
	}
	return out
}

func (s *Store) snapshotLocked(d *discussion) *Discussion {
	comments := make([]Comment, 0, len(d.commentIDs))
	for _, id := range d.commentIDs {
		if c, ok := s.comments[id]; ok {
			comments = append(comments, *c)
		}
	}
	return &Discussion{
		ID:           d.id,
		Reference:    d.reference,
		Comments:     comments,
		Participants: participantsExcept(d, ""),
		CreatedAt:    d.createdAt,
	}
}

// knownMentions extracts @mentions from content and keeps only names the
// user directory recognizes. Unknown names are silently dropped.
func (s *Store) knownMentions(content string) []string {
	mentions := ExtractMentions(content)
	if len(mentions) == 0 || s.users == nil {
		return nil
	}

	known := mentions[:0]
	for _, name := range mentions {
		if s.users.IsKnownUser(name) {
			known = append(known, name)
		}
	}
	return known
}

func (s *Store) notify(users []string, discussionID string) {
	if s.notifier == nil || len(users) == 0 {
		return
	}
	s.notifier.NotifyDiscussionUpdated(users, discussionID)
}

func participantsExcept(d *discussion, skip string) []string {
	out := make([]string, 0, len(d.participants))
	for user := range d.participants {
		if user == skip {
			continue
		}
		out = append(out, user)
	}
	return out
}
