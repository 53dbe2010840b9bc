package client

import (
	"context"

	"github.com/framelab/dailyframe/internal/posts"
)

// ServiceAPI adapts the posts service to PostAPI for one fixed user, the same
// shape an HTTP-backed implementation would have in a remote process.
type ServiceAPI struct {
	service *posts.Service
	userID  string
}

// NewServiceAPI binds a posts service to a session user.
func NewServiceAPI(service *posts.Service, userID string) *ServiceAPI {
	return &ServiceAPI{service: service, userID: userID}
}

func (a *ServiceAPI) GetPost(ctx context.Context, postID string) (posts.PostView, error) {
	return a.service.GetPost(ctx, postID)
}

func (a *ServiceAPI) TodaysFeed(ctx context.Context) ([]posts.PostView, error) {
	return a.service.TodaysFeed(ctx)
}

func (a *ServiceAPI) UserVote(ctx context.Context, postID string) (posts.VoteType, error) {
	return a.service.UserVote(ctx, a.userID, postID)
}

func (a *ServiceAPI) ApplyVote(ctx context.Context, postID string, voteType posts.VoteType) (posts.VoteOutcome, error) {
	return a.service.ApplyVote(ctx, a.userID, postID, voteType)
}

func (a *ServiceAPI) ListComments(ctx context.Context, postID string, limit int, cursor string) (posts.CommentPage, error) {
	return a.service.ListComments(ctx, postID, limit, cursor)
}

func (a *ServiceAPI) CreateComment(ctx context.Context, postID, content string) (posts.CommentView, error) {
	return a.service.CreateComment(ctx, a.userID, postID, content)
}
