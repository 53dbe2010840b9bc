package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/framelab/dailyframe/internal/posts"
	"github.com/framelab/dailyframe/internal/users"
	"go.uber.org/zap"
)

// temporaryIDPrefix marks provisional comment identifiers so they can never
// be confused with server-assigned ones.
const temporaryIDPrefix = "temp-"

var (
	// ErrVoteInFlight reports a vote attempted on a post whose previous vote
	// mutation has not settled yet. Overlapping optimistic votes on one post
	// would leave a permanently wrong rollback snapshot, so the second
	// action is rejected rather than queued.
	ErrVoteInFlight = errors.New("client: vote already in flight for this post")

	errMissingAPI  = errors.New("client: post api required")
	errMissingUser = errors.New("client: session user required")
)

// PostAPI is the server boundary the client mutates and reads through. Every
// call is a single round-trip scoped to the signed-in user.
type PostAPI interface {
	GetPost(ctx context.Context, postID string) (posts.PostView, error)
	TodaysFeed(ctx context.Context) ([]posts.PostView, error)
	UserVote(ctx context.Context, postID string) (posts.VoteType, error)
	ApplyVote(ctx context.Context, postID string, voteType posts.VoteType) (posts.VoteOutcome, error)
	ListComments(ctx context.Context, postID string, limit int, cursor string) (posts.CommentPage, error)
	CreateComment(ctx context.Context, postID, content string) (posts.CommentView, error)
}

// Config describes one signed-in session's client.
type Config struct {
	API          PostAPI
	User         users.Profile
	CommentLimit int
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Client presents vote and comment actions optimistically: local views update
// before the server answers, then either re-synchronize (invalidate) on
// success or roll back to the captured snapshot on failure.
type Client struct {
	api          PostAPI
	user         users.Profile
	commentLimit int
	clock        func() time.Time
	logger       *zap.Logger
	cache        *ViewCache

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New constructs a client for one session.
func New(cfg Config) (*Client, error) {
	if cfg.API == nil {
		return nil, errMissingAPI
	}
	if cfg.User.ID == "" {
		return nil, errMissingUser
	}
	limit := cfg.CommentLimit
	if limit <= 0 {
		limit = 20
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:          cfg.API,
		user:         cfg.User,
		commentLimit: limit,
		clock:        clock,
		logger:       logger,
		cache:        NewViewCache(),
		inFlight:     make(map[string]struct{}),
	}, nil
}

// Cache exposes the session's view cache.
func (c *Client) Cache() *ViewCache {
	return c.cache
}

func detailKey(postID string) EntryKey   { return EntryKey{Kind: ResourcePostDetail, ID: postID} }
func feedKey() EntryKey                  { return EntryKey{Kind: ResourceFeed} }
func voteKey(postID string) EntryKey     { return EntryKey{Kind: ResourceUserVote, ID: postID} }
func commentsKey(postID string) EntryKey { return EntryKey{Kind: ResourceComments, ID: postID} }

// Post returns the post detail view, fetching it on a cache miss.
func (c *Client) Post(ctx context.Context, postID string) (posts.PostView, error) {
	if cached, ok := c.cache.Get(detailKey(postID)); ok {
		if view, ok := cached.(posts.PostView); ok {
			return view, nil
		}
	}
	view, err := c.api.GetPost(ctx, postID)
	if err != nil {
		return posts.PostView{}, err
	}
	c.cache.Set(detailKey(postID), view)
	return view, nil
}

// Feed returns the today's-posts feed, fetching it on a cache miss.
func (c *Client) Feed(ctx context.Context) ([]posts.PostView, error) {
	if cached, ok := c.cache.Get(feedKey()); ok {
		if views, ok := cached.([]posts.PostView); ok {
			return views, nil
		}
	}
	views, err := c.api.TodaysFeed(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(feedKey(), views)
	return views, nil
}

// UserVote returns the session user's vote on the post, fetching on a miss.
// An empty type means no vote.
func (c *Client) UserVote(ctx context.Context, postID string) (posts.VoteType, error) {
	if cached, ok := c.cache.Get(voteKey(postID)); ok {
		if voteType, ok := cached.(posts.VoteType); ok {
			return voteType, nil
		}
	}
	voteType, err := c.api.UserVote(ctx, postID)
	if err != nil {
		return "", err
	}
	c.cache.Set(voteKey(postID), voteType)
	return voteType, nil
}

// Vote applies the vote state machine optimistically. The detail view, the
// feed entry, and the cached user vote all move together before the request
// is sent; on failure every touched view is restored to the snapshot taken
// up front, and on success the views are invalidated so the next read is
// server-authoritative.
func (c *Client) Vote(ctx context.Context, postID string, requested posts.VoteType) (posts.VoteOutcome, error) {
	if _, err := posts.ParseVoteType(string(requested)); err != nil {
		return posts.VoteOutcome{}, err
	}
	if !c.acquireVoteSlot(postID) {
		return posts.VoteOutcome{}, fmt.Errorf("%w: %s", ErrVoteInFlight, postID)
	}
	defer c.releaseVoteSlot(postID)

	// The transition needs the observed prior vote; fetch it if this post
	// has not been looked at yet.
	previous, err := c.UserVote(ctx, postID)
	if err != nil {
		return posts.VoteOutcome{}, err
	}

	keys := []EntryKey{detailKey(postID), feedKey(), voteKey(postID)}
	snapshot := c.cache.Snapshot(keys...)

	// Same transition table as the server: repeating the current type
	// retracts, anything else lands on the requested type.
	projected := requested
	if previous == requested {
		projected = ""
	}

	c.cache.Set(voteKey(postID), projected)
	if cached, ok := c.cache.Get(detailKey(postID)); ok {
		if view, ok := cached.(posts.PostView); ok {
			c.cache.Set(detailKey(postID), projectVote(view, previous, projected))
		}
	}
	if cached, ok := c.cache.Get(feedKey()); ok {
		if views, ok := cached.([]posts.PostView); ok {
			c.cache.Set(feedKey(), projectFeedVote(views, postID, previous, projected))
		}
	}

	outcome, err := c.api.ApplyVote(ctx, postID, requested)
	if err != nil {
		c.cache.Restore(snapshot)
		c.logger.Debug("vote rolled back", zap.String("post_id", postID), zap.Error(err))
		return posts.VoteOutcome{}, err
	}

	// Optimistic values are provisional: drop them so the next read
	// re-synchronizes with the server-derived tallies.
	c.cache.Invalidate(keys...)
	return outcome, nil
}

// Comments returns every fetched comment of the post, newest first,
// flattened across pages. The first page is fetched on a cache miss.
func (c *Client) Comments(ctx context.Context, postID string) ([]posts.CommentView, error) {
	pages, err := c.commentPages(ctx, postID)
	if err != nil {
		return nil, err
	}
	flattened := make([]posts.CommentView, 0)
	for _, page := range pages {
		flattened = append(flattened, page.Comments...)
	}
	return flattened, nil
}

// LoadMoreComments fetches the next comment page if one remains, reporting
// whether more pages may follow.
func (c *Client) LoadMoreComments(ctx context.Context, postID string) (bool, error) {
	pages, err := c.commentPages(ctx, postID)
	if err != nil {
		return false, err
	}
	last := pages[len(pages)-1]
	if last.NextCursor == "" {
		return false, nil
	}
	next, err := c.api.ListComments(ctx, postID, c.commentLimit, last.NextCursor)
	if err != nil {
		return false, err
	}
	updated := make([]posts.CommentPage, 0, len(pages)+1)
	updated = append(updated, pages...)
	updated = append(updated, next)
	c.cache.Set(commentsKey(postID), updated)
	return next.NextCursor != "", nil
}

// CreateComment prepends a provisional comment to the first cached page,
// sends the create, and either invalidates (so the server-assigned record
// replaces the provisional one) or restores the snapshot.
func (c *Client) CreateComment(ctx context.Context, postID, content string) (posts.CommentView, error) {
	pages, err := c.commentPages(ctx, postID)
	if err != nil {
		return posts.CommentView{}, err
	}

	keys := []EntryKey{commentsKey(postID), detailKey(postID)}
	snapshot := c.cache.Snapshot(keys...)

	provisional := posts.CommentView{
		ID:        fmt.Sprintf("%s%d", temporaryIDPrefix, c.clock().UnixNano()),
		PostID:    postID,
		Author:    c.user,
		Content:   content,
		CreatedAt: c.clock(),
	}
	c.cache.Set(commentsKey(postID), prependComment(pages, provisional))
	if cached, ok := c.cache.Get(detailKey(postID)); ok {
		if view, ok := cached.(posts.PostView); ok {
			view.CommentCount++
			c.cache.Set(detailKey(postID), view)
		}
	}

	created, err := c.api.CreateComment(ctx, postID, content)
	if err != nil {
		c.cache.Restore(snapshot)
		c.logger.Debug("comment rolled back", zap.String("post_id", postID), zap.Error(err))
		return posts.CommentView{}, err
	}

	c.cache.Invalidate(keys...)
	return created, nil
}

func (c *Client) commentPages(ctx context.Context, postID string) ([]posts.CommentPage, error) {
	if cached, ok := c.cache.Get(commentsKey(postID)); ok {
		if pages, ok := cached.([]posts.CommentPage); ok && len(pages) > 0 {
			return pages, nil
		}
	}
	first, err := c.api.ListComments(ctx, postID, c.commentLimit, "")
	if err != nil {
		return nil, err
	}
	pages := []posts.CommentPage{first}
	c.cache.Set(commentsKey(postID), pages)
	return pages, nil
}

func (c *Client) acquireVoteSlot(postID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[postID]; busy {
		return false
	}
	c.inFlight[postID] = struct{}{}
	return true
}

func (c *Client) releaseVoteSlot(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, postID)
}

// projectVote moves a view's tallies from the previous vote to the projected
// one. Counters never go below zero even if the cached view was stale.
func projectVote(view posts.PostView, previous, projected posts.VoteType) posts.PostView {
	switch previous {
	case posts.VoteTypeUp:
		if view.Upvotes > 0 {
			view.Upvotes--
		}
	case posts.VoteTypeDown:
		if view.Downvotes > 0 {
			view.Downvotes--
		}
	}
	switch projected {
	case posts.VoteTypeUp:
		view.Upvotes++
	case posts.VoteTypeDown:
		view.Downvotes++
	}
	return view
}

// projectFeedVote rebuilds the feed with the target entry's tallies moved the
// same way as the detail view, so both views agree while the mutation is in
// flight.
func projectFeedVote(views []posts.PostView, postID string, previous, projected posts.VoteType) []posts.PostView {
	updated := make([]posts.PostView, len(views))
	for i, view := range views {
		if view.ID == postID {
			view = projectVote(view, previous, projected)
		}
		updated[i] = view
	}
	return updated
}

// prependComment rebuilds the page list with the provisional comment at the
// head of the first page only.
func prependComment(pages []posts.CommentPage, comment posts.CommentView) []posts.CommentPage {
	if len(pages) == 0 {
		return []posts.CommentPage{{Comments: []posts.CommentView{comment}}}
	}
	updated := make([]posts.CommentPage, len(pages))
	copy(updated, pages)
	first := updated[0]
	merged := make([]posts.CommentView, 0, len(first.Comments)+1)
	merged = append(merged, comment)
	merged = append(merged, first.Comments...)
	updated[0] = posts.CommentPage{Comments: merged, NextCursor: first.NextCursor}
	return updated
}
