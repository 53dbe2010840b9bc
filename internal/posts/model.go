package posts

import (
	"fmt"
	"strings"
	"time"

	"github.com/framelab/dailyframe/internal/users"
)

// VoteType is a user's judgment on a post.
type VoteType string

const (
	// VoteTypeUp is an upvote.
	VoteTypeUp VoteType = "UPVOTE"
	// VoteTypeDown is a downvote.
	VoteTypeDown VoteType = "DOWNVOTE"
)

// ParseVoteType validates raw input against the vote enum.
func ParseVoteType(raw string) (VoteType, error) {
	switch VoteType(strings.ToUpper(strings.TrimSpace(raw))) {
	case VoteTypeUp:
		return VoteTypeUp, nil
	case VoteTypeDown:
		return VoteTypeDown, nil
	default:
		return "", fmt.Errorf("invalid vote type %q", raw)
	}
}

// VoteAction describes what ApplyVote did to the ledger.
type VoteAction string

const (
	// VoteActionCreated means a new vote row was written.
	VoteActionCreated VoteAction = "created"
	// VoteActionUpdated means the existing row switched type in place.
	VoteActionUpdated VoteAction = "updated"
	// VoteActionRemoved means the existing row was deleted (retraction).
	VoteActionRemoved VoteAction = "removed"
)

// Post is a user's single submission against one topic. The composite unique
// index is the arbiter of the one-post-per-topic rule.
type Post struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_posts_user_topic,priority:1"`
	TopicID   string    `gorm:"column:topic_id;size:190;not null;uniqueIndex:idx_posts_user_topic,priority:2;index"`
	ImageURL  string    `gorm:"column:image_url;size:512;not null"`
	ImageKey  string    `gorm:"column:image_key;size:512;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing posts.
func (Post) TableName() string {
	return "posts"
}

// Vote is one user's judgment on one post. The composite primary key is the
// sole arbiter of vote uniqueness; tallies are always derived from these rows.
type Vote struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	PostID    string    `gorm:"column:post_id;primaryKey;size:190;not null;index"`
	Type      VoteType  `gorm:"column:type;size:16;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing the vote ledger.
func (Vote) TableName() string {
	return "votes"
}

// Comment is an immutable remark on a post, listed newest first.
type Comment struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	PostID    string    `gorm:"column:post_id;size:190;not null;index"`
	UserID    string    `gorm:"column:user_id;size:190;not null"`
	Content   string    `gorm:"column:content;size:500;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName exposes the table backing comments.
func (Comment) TableName() string {
	return "comments"
}

// TopicSummary is the slice of a topic attached to post views.
type TopicSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PostView is a post with its author, topic, and ledger-derived tallies.
type PostView struct {
	ID           string        `json:"id"`
	Author       users.Profile `json:"author"`
	Topic        TopicSummary  `json:"topic"`
	ImageURL     string        `json:"image_url"`
	Upvotes      int64         `json:"upvotes"`
	Downvotes    int64         `json:"downvotes"`
	CommentCount int64         `json:"comment_count"`
	CreatedAt    time.Time     `json:"created_at"`
}

// CommentView is a comment with its author's display attributes.
type CommentView struct {
	ID        string        `json:"id"`
	PostID    string        `json:"post_id"`
	Author    users.Profile `json:"author"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}

// CommentPage is one cursor page of a post's comment stream.
type CommentPage struct {
	Comments   []CommentView `json:"comments"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// PostPage is one cursor page of posts.
type PostPage struct {
	Posts      []PostView `json:"posts"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// VoteOutcome reports the transition ApplyVote performed and the tallies
// derived from the ledger afterwards.
type VoteOutcome struct {
	Action    VoteAction `json:"action"`
	Type      VoteType   `json:"type,omitempty"`
	Upvotes   int64      `json:"upvotes"`
	Downvotes int64      `json:"downvotes"`
}

// CreatePostInput carries a new submission.
type CreatePostInput struct {
	TopicID   string
	ImageData []byte
	ImageType string
	FileName  string
}
