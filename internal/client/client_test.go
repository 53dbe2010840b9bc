package client

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/framelab/dailyframe/internal/posts"
	"github.com/framelab/dailyframe/internal/users"
)

var errServerDown = errors.New("server unavailable")

// fakeAPI scripts server responses and records mutation calls.
type fakeAPI struct {
	mu sync.Mutex

	post     posts.PostView
	feed     []posts.PostView
	userVote posts.VoteType
	pages    map[string]posts.CommentPage

	voteErr    error
	commentErr error

	voteCalls    int
	commentCalls int

	voteEntered chan struct{}
	voteRelease chan struct{}
}

func (f *fakeAPI) GetPost(_ context.Context, _ string) (posts.PostView, error) {
	return f.post, nil
}

func (f *fakeAPI) TodaysFeed(_ context.Context) ([]posts.PostView, error) {
	return f.feed, nil
}

func (f *fakeAPI) UserVote(_ context.Context, _ string) (posts.VoteType, error) {
	return f.userVote, nil
}

func (f *fakeAPI) ApplyVote(_ context.Context, _ string, voteType posts.VoteType) (posts.VoteOutcome, error) {
	if f.voteEntered != nil {
		f.voteEntered <- struct{}{}
		<-f.voteRelease
	}
	f.mu.Lock()
	f.voteCalls++
	f.mu.Unlock()
	if f.voteErr != nil {
		return posts.VoteOutcome{}, f.voteErr
	}
	return posts.VoteOutcome{Action: posts.VoteActionCreated, Type: voteType, Upvotes: 1}, nil
}

func (f *fakeAPI) ListComments(_ context.Context, _ string, _ int, cursor string) (posts.CommentPage, error) {
	page, ok := f.pages[cursor]
	if !ok {
		return posts.CommentPage{}, nil
	}
	return page, nil
}

func (f *fakeAPI) CreateComment(_ context.Context, postID, content string) (posts.CommentView, error) {
	f.mu.Lock()
	f.commentCalls++
	f.mu.Unlock()
	if f.commentErr != nil {
		return posts.CommentView{}, f.commentErr
	}
	return posts.CommentView{ID: "server-comment", PostID: postID, Content: content}, nil
}

func sessionProfile() users.Profile {
	return users.Profile{ID: "viewer", Username: "viewer_handle", DisplayName: "Viewer"}
}

func newTestClient(t *testing.T, api PostAPI) *Client {
	t.Helper()
	c, err := New(Config{
		API:   api,
		User:  sessionProfile(),
		Clock: func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}
	return c
}

func detailFixture() posts.PostView {
	return posts.PostView{
		ID:        "post-1",
		Author:    users.Profile{ID: "author"},
		Upvotes:   3,
		Downvotes: 1,
	}
}

func feedFixture() []posts.PostView {
	return []posts.PostView{
		{ID: "post-1", Upvotes: 3, Downvotes: 1},
		{ID: "post-2", Upvotes: 7},
	}
}

func TestVoteProjectsDetailAndFeedTogether(t *testing.T) {
	api := &fakeAPI{post: detailFixture(), feed: feedFixture()}
	c := newTestClient(t, api)

	blockEntered := make(chan struct{})
	release := make(chan struct{})
	api.voteEntered = blockEntered
	api.voteRelease = release

	// Warm the caches so the projection has views to move.
	if _, err := c.Post(context.Background(), "post-1"); err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}
	if _, err := c.Feed(context.Background()); err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Vote(context.Background(), "post-1", posts.VoteTypeUp)
		done <- err
	}()
	<-blockEntered

	// While the request is in flight both views show the projected counters.
	cached, ok := c.Cache().Get(EntryKey{Kind: ResourcePostDetail, ID: "post-1"})
	if !ok {
		t.Fatalf("expected cached detail view")
	}
	if view := cached.(posts.PostView); view.Upvotes != 4 || view.Downvotes != 1 {
		t.Fatalf("unexpected projected detail counters: %d up, %d down", view.Upvotes, view.Downvotes)
	}
	cachedFeed, ok := c.Cache().Get(EntryKey{Kind: ResourceFeed})
	if !ok {
		t.Fatalf("expected cached feed")
	}
	views := cachedFeed.([]posts.PostView)
	if views[0].Upvotes != 4 {
		t.Fatalf("expected feed entry to carry the same projection, got %d upvotes", views[0].Upvotes)
	}
	if views[1].Upvotes != 7 {
		t.Fatalf("expected untouched feed entry to keep its counters")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected vote error: %v", err)
	}

	// Success invalidates so the next read is server-authoritative.
	if _, ok := c.Cache().Get(EntryKey{Kind: ResourcePostDetail, ID: "post-1"}); ok {
		t.Fatalf("expected detail view to be invalidated after success")
	}
	if _, ok := c.Cache().Get(EntryKey{Kind: ResourceFeed}); ok {
		t.Fatalf("expected feed to be invalidated after success")
	}
	if _, ok := c.Cache().Get(EntryKey{Kind: ResourceUserVote, ID: "post-1"}); ok {
		t.Fatalf("expected user vote to be invalidated after success")
	}
}

func TestVoteRestoresExactSnapshotOnFailure(t *testing.T) {
	api := &fakeAPI{post: detailFixture(), feed: feedFixture(), voteErr: errServerDown}
	c := newTestClient(t, api)

	originalDetail, err := c.Post(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}
	originalFeed, err := c.Feed(context.Background())
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	originalVote, err := c.UserVote(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected user vote error: %v", err)
	}

	if _, err := c.Vote(context.Background(), "post-1", posts.VoteTypeDown); !errors.Is(err, errServerDown) {
		t.Fatalf("expected server error to surface, got %v", err)
	}

	restoredDetail, ok := c.Cache().Get(EntryKey{Kind: ResourcePostDetail, ID: "post-1"})
	if !ok || !reflect.DeepEqual(restoredDetail.(posts.PostView), originalDetail) {
		t.Fatalf("detail view not restored exactly: %+v", restoredDetail)
	}
	restoredFeed, ok := c.Cache().Get(EntryKey{Kind: ResourceFeed})
	if !ok || !reflect.DeepEqual(restoredFeed.([]posts.PostView), originalFeed) {
		t.Fatalf("feed not restored exactly: %+v", restoredFeed)
	}
	restoredVote, ok := c.Cache().Get(EntryKey{Kind: ResourceUserVote, ID: "post-1"})
	if !ok || restoredVote.(posts.VoteType) != originalVote {
		t.Fatalf("user vote not restored exactly: %v", restoredVote)
	}
}

func TestVoteRepeatingCurrentTypeProjectsRetraction(t *testing.T) {
	api := &fakeAPI{post: detailFixture(), userVote: posts.VoteTypeUp}
	api.voteEntered = make(chan struct{}, 1)
	api.voteRelease = make(chan struct{})
	c := newTestClient(t, api)

	if _, err := c.Post(context.Background(), "post-1"); err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Vote(context.Background(), "post-1", posts.VoteTypeUp)
		done <- err
	}()
	<-api.voteEntered

	cached, _ := c.Cache().Get(EntryKey{Kind: ResourcePostDetail, ID: "post-1"})
	if view := cached.(posts.PostView); view.Upvotes != 2 {
		t.Fatalf("expected retraction to drop the upvote, got %d", view.Upvotes)
	}
	projected, _ := c.Cache().Get(EntryKey{Kind: ResourceUserVote, ID: "post-1"})
	if projected.(posts.VoteType) != "" {
		t.Fatalf("expected projected vote to be none, got %v", projected)
	}

	close(api.voteRelease)
	if err := <-done; err != nil {
		t.Fatalf("unexpected vote error: %v", err)
	}
}

func TestVoteRejectsOverlappingMutationOnSamePost(t *testing.T) {
	api := &fakeAPI{post: detailFixture()}
	api.voteEntered = make(chan struct{})
	api.voteRelease = make(chan struct{})
	c := newTestClient(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := c.Vote(context.Background(), "post-1", posts.VoteTypeUp)
		done <- err
	}()
	<-api.voteEntered

	if _, err := c.Vote(context.Background(), "post-1", posts.VoteTypeDown); !errors.Is(err, ErrVoteInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}

	close(api.voteRelease)
	if err := <-done; err != nil {
		t.Fatalf("unexpected vote error: %v", err)
	}

	// The slot frees once the first mutation settles.
	api.voteEntered = nil
	if _, err := c.Vote(context.Background(), "post-1", posts.VoteTypeDown); err != nil {
		t.Fatalf("expected subsequent vote to proceed, got %v", err)
	}
}

func TestVoteRejectsInvalidType(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	if _, err := c.Vote(context.Background(), "post-1", posts.VoteType("SIDEWAYS")); err == nil {
		t.Fatalf("expected invalid type rejection")
	}
}

func TestCreateCommentPrependsProvisionalThenInvalidates(t *testing.T) {
	firstPage := posts.CommentPage{
		Comments:   []posts.CommentView{{ID: "existing", Content: "older"}},
		NextCursor: "",
	}
	api := &fakeAPI{
		post:  detailFixture(),
		pages: map[string]posts.CommentPage{"": firstPage},
	}
	c := newTestClient(t, api)

	if _, err := c.Comments(context.Background(), "post-1"); err != nil {
		t.Fatalf("unexpected comments error: %v", err)
	}

	created, err := c.CreateComment(context.Background(), "post-1", "fresh take")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if created.ID != "server-comment" {
		t.Fatalf("expected the server-assigned comment, got %s", created.ID)
	}

	// Success dropped the cached pages so the next read refetches.
	if _, ok := c.Cache().Get(EntryKey{Kind: ResourceComments, ID: "post-1"}); ok {
		t.Fatalf("expected comment pages to be invalidated after success")
	}
}

func TestCreateCommentRollsBackProvisionalOnFailure(t *testing.T) {
	firstPage := posts.CommentPage{
		Comments: []posts.CommentView{{ID: "existing", Content: "older"}},
	}
	api := &fakeAPI{
		post:       detailFixture(),
		pages:      map[string]posts.CommentPage{"": firstPage},
		commentErr: errServerDown,
	}
	c := newTestClient(t, api)

	original, err := c.Comments(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected comments error: %v", err)
	}
	if _, err := c.Post(context.Background(), "post-1"); err != nil {
		t.Fatalf("unexpected post error: %v", err)
	}

	if _, err := c.CreateComment(context.Background(), "post-1", "doomed"); !errors.Is(err, errServerDown) {
		t.Fatalf("expected server error to surface, got %v", err)
	}

	restored, err := c.Comments(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected comments error: %v", err)
	}
	if !reflect.DeepEqual(restored, original) {
		t.Fatalf("expected comment stream restored exactly, got %+v", restored)
	}
	cachedDetail, _ := c.Cache().Get(EntryKey{Kind: ResourcePostDetail, ID: "post-1"})
	if view := cachedDetail.(posts.PostView); view.CommentCount != 0 {
		t.Fatalf("expected comment count rolled back, got %d", view.CommentCount)
	}
}

func TestLoadMoreCommentsFollowsCursor(t *testing.T) {
	api := &fakeAPI{
		pages: map[string]posts.CommentPage{
			"": {
				Comments:   []posts.CommentView{{ID: "comment-3"}, {ID: "comment-2"}},
				NextCursor: "comment-1",
			},
			"comment-1": {
				Comments: []posts.CommentView{{ID: "comment-1"}},
			},
		},
	}
	c := newTestClient(t, api)

	flattened, err := c.Comments(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected comments error: %v", err)
	}
	if len(flattened) != 2 {
		t.Fatalf("expected first page only, got %d comments", len(flattened))
	}

	more, err := c.LoadMoreComments(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected load more error: %v", err)
	}
	if more {
		t.Fatalf("expected no further pages")
	}

	flattened, err = c.Comments(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected comments error: %v", err)
	}
	if len(flattened) != 3 || flattened[2].ID != "comment-1" {
		t.Fatalf("unexpected flattened stream %+v", flattened)
	}

	// The stream is exhausted; another load is a no-op.
	more, err = c.LoadMoreComments(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected load more error: %v", err)
	}
	if more {
		t.Fatalf("expected exhausted stream to stay exhausted")
	}
}
