package posts

import (
	"context"
	"errors"
	"time"

	"github.com/framelab/dailyframe/internal/fault"
	"github.com/framelab/dailyframe/internal/ids"
	"github.com/framelab/dailyframe/internal/images"
	"github.com/framelab/dailyframe/internal/topics"
	"github.com/framelab/dailyframe/internal/users"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreatePost    = "posts.create"
	opGetPost       = "posts.get"
	opTodaysFeed    = "posts.todays_feed"
	opListUser      = "posts.list_user"
	opListTopic     = "posts.list_topic"
	opApplyVote     = "posts.vote"
	opUserVote      = "posts.user_vote"
	opCreateComment = "posts.comment_create"
	opListComments  = "posts.comments_list"

	defaultPageLimit = 20
	maxPageLimit     = 50
	feedLimit        = 50
)

var (
	errMissingDatabase   = errors.New("posts: database connection required")
	errMissingIDProvider = errors.New("posts: id provider required")
	errMissingImageStore = errors.New("posts: image store required")
)

// ServiceConfig describes the dependencies of the post service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	ImageStore images.Store
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns posts, the vote ledger, and the comment stream. All writers go
// through its operations; nothing bypasses the uniqueness constraints.
type Service struct {
	db         *gorm.DB
	idProvider ids.Provider
	imageStore images.Store
	clock      func() time.Time
	logger     *zap.Logger
	sanitizer  *bluemonday.Policy
}

// NewService constructs the post service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.ImageStore == nil {
		return nil, errMissingImageStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		imageStore: cfg.ImageStore,
		clock:      clock,
		logger:     logger,
		sanitizer:  bluemonday.StrictPolicy(),
	}, nil
}

// CreatePost submits the caller's photo for a topic. One post per
// (user, topic) pair: the check-then-act lookup reports CONFLICT early, and
// the unique index converts the create race into CONFLICT as well.
func (s *Service) CreatePost(ctx context.Context, userID string, input CreatePostInput) (PostView, error) {
	if input.TopicID == "" {
		return PostView{}, fault.Errorf(fault.KindBadRequest, opCreatePost, "topic id is required")
	}
	if input.FileName == "" {
		return PostView{}, fault.Errorf(fault.KindBadRequest, opCreatePost, "file name is required")
	}

	var existing Post
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND topic_id = ?", userID, input.TopicID).
		First(&existing).Error
	if err == nil {
		return PostView{}, fault.Errorf(fault.KindConflict, opCreatePost, "already posted for this topic")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return PostView{}, fault.New(fault.KindInternal, opCreatePost, err)
	}

	var topic topics.Topic
	err = s.db.WithContext(ctx).Where("id = ?", input.TopicID).First(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostView{}, fault.Errorf(fault.KindNotFound, opCreatePost, "topic not found")
	}
	if err != nil {
		return PostView{}, fault.New(fault.KindInternal, opCreatePost, err)
	}
	if !topic.IsActive {
		return PostView{}, fault.Errorf(fault.KindBadRequest, opCreatePost, "topic is not currently active")
	}

	stored, err := s.imageStore.Save(ctx, userID, input.FileName, input.ImageType, input.ImageData)
	if err != nil {
		return PostView{}, fault.New(fault.KindBadRequest, opCreatePost, err)
	}

	postID, err := s.idProvider.NewID()
	if err != nil {
		return PostView{}, fault.New(fault.KindInternal, opCreatePost, err)
	}
	post := Post{
		ID:        postID,
		UserID:    userID,
		TopicID:   input.TopicID,
		ImageURL:  stored.URL,
		ImageKey:  stored.Key,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return PostView{}, fault.Errorf(fault.KindConflict, opCreatePost, "already posted for this topic")
		}
		return PostView{}, fault.New(fault.KindInternal, opCreatePost, err)
	}

	s.logger.Info("post created",
		zap.String("post_id", post.ID),
		zap.String("topic_id", post.TopicID))

	return s.GetPost(ctx, post.ID)
}

// GetPost returns the post with author, topic, comment count, and tallies
// computed from the vote ledger at read time.
func (s *Service) GetPost(ctx context.Context, postID string) (PostView, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostView{}, fault.Errorf(fault.KindNotFound, opGetPost, "post not found")
	}
	if err != nil {
		return PostView{}, fault.New(fault.KindInternal, opGetPost, err)
	}

	views, err := s.assembleViews(ctx, []Post{post})
	if err != nil {
		return PostView{}, fault.New(fault.KindInternal, opGetPost, err)
	}
	return views[0], nil
}

// TodaysFeed returns the newest posts for the active topic. An inactive day
// (no topic) yields an empty feed, not an error.
func (s *Service) TodaysFeed(ctx context.Context) ([]PostView, error) {
	var topic topics.Topic
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		First(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []PostView{}, nil
	}
	if err != nil {
		return nil, fault.New(fault.KindInternal, opTodaysFeed, err)
	}

	var rows []Post
	if err := s.db.WithContext(ctx).
		Where("topic_id = ?", topic.ID).
		Order("created_at DESC, id DESC").
		Limit(feedLimit).
		Find(&rows).Error; err != nil {
		return nil, fault.New(fault.KindInternal, opTodaysFeed, err)
	}

	views, err := s.assembleViews(ctx, rows)
	if err != nil {
		return nil, fault.New(fault.KindInternal, opTodaysFeed, err)
	}
	return views, nil
}

// ListUserPosts returns the user's submissions newest first, cursor-paginated.
func (s *Service) ListUserPosts(ctx context.Context, userID string, limit int, cursor string) (PostPage, error) {
	scope := s.db.WithContext(ctx).Where("user_id = ?", userID)
	return s.pagePosts(ctx, opListUser, scope, limit, cursor)
}

// ListTopicPosts returns a topic's submissions newest first, cursor-paginated.
// Unlike the feed this works for inactive topics too, so past challenges stay
// browsable.
func (s *Service) ListTopicPosts(ctx context.Context, topicID string, limit int, cursor string) (PostPage, error) {
	var topic topics.Topic
	err := s.db.WithContext(ctx).Where("id = ?", topicID).First(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostPage{}, fault.Errorf(fault.KindNotFound, opListTopic, "topic %s not found", topicID)
	}
	if err != nil {
		return PostPage{}, fault.New(fault.KindInternal, opListTopic, err)
	}

	scope := s.db.WithContext(ctx).Where("topic_id = ?", topicID)
	return s.pagePosts(ctx, opListTopic, scope, limit, cursor)
}

// pagePosts runs the shared keyset pagination over a scoped post query. The
// cursor row is included in its page; the extra row fetched beyond the limit
// becomes the next cursor.
func (s *Service) pagePosts(ctx context.Context, op string, scope *gorm.DB, limit int, cursor string) (PostPage, error) {
	limit = normalizeLimit(limit)

	query := scope
	if cursor != "" {
		var anchor Post
		err := s.db.WithContext(ctx).Where("id = ?", cursor).First(&anchor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PostPage{}, fault.Errorf(fault.KindBadRequest, op, "unknown cursor")
		}
		if err != nil {
			return PostPage{}, fault.New(fault.KindInternal, op, err)
		}
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id <= ?)",
			anchor.CreatedAt, anchor.CreatedAt, anchor.ID,
		)
	}

	var rows []Post
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return PostPage{}, fault.New(fault.KindInternal, op, err)
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = rows[limit].ID
		rows = rows[:limit]
	}

	views, err := s.assembleViews(ctx, rows)
	if err != nil {
		return PostPage{}, fault.New(fault.KindInternal, op, err)
	}
	return PostPage{Posts: views, NextCursor: nextCursor}, nil
}

// assembleViews joins posts with author profiles, topic summaries, comment
// counts, and ledger-derived tallies.
func (s *Service) assembleViews(ctx context.Context, rows []Post) ([]PostView, error) {
	views := make([]PostView, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}

	postIDs := make([]string, 0, len(rows))
	userIDs := make([]string, 0, len(rows))
	topicIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		postIDs = append(postIDs, row.ID)
		userIDs = append(userIDs, row.UserID)
		topicIDs = append(topicIDs, row.TopicID)
	}

	profiles, err := s.profilesByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	var topicRows []topics.Topic
	if err := s.db.WithContext(ctx).Where("id IN ?", topicIDs).Find(&topicRows).Error; err != nil {
		return nil, err
	}
	topicsByID := make(map[string]topics.Topic, len(topicRows))
	for _, topic := range topicRows {
		topicsByID[topic.ID] = topic
	}

	tallies, err := s.talliesFor(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	commentCounts, err := s.commentCountsFor(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		topic := topicsByID[row.TopicID]
		tally := tallies[row.ID]
		views = append(views, PostView{
			ID:     row.ID,
			Author: profiles[row.UserID],
			Topic: TopicSummary{
				ID:          topic.ID,
				Title:       topic.Title,
				Description: topic.Description,
			},
			ImageURL:     row.ImageURL,
			Upvotes:      tally.upvotes,
			Downvotes:    tally.downvotes,
			CommentCount: commentCounts[row.ID],
			CreatedAt:    row.CreatedAt,
		})
	}
	return views, nil
}

type voteTally struct {
	upvotes   int64
	downvotes int64
}

// talliesFor derives vote counts from the ledger for the given posts.
func (s *Service) talliesFor(ctx context.Context, postIDs []string) (map[string]voteTally, error) {
	type talliesRow struct {
		PostID string
		Type   VoteType
		Total  int64
	}
	var grouped []talliesRow
	if err := s.db.WithContext(ctx).Model(&Vote{}).
		Select("post_id, type, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").Group("type").
		Scan(&grouped).Error; err != nil {
		return nil, err
	}

	tallies := make(map[string]voteTally, len(postIDs))
	for _, row := range grouped {
		tally := tallies[row.PostID]
		switch row.Type {
		case VoteTypeUp:
			tally.upvotes = row.Total
		case VoteTypeDown:
			tally.downvotes = row.Total
		}
		tallies[row.PostID] = tally
	}
	return tallies, nil
}

func (s *Service) commentCountsFor(ctx context.Context, postIDs []string) (map[string]int64, error) {
	type countRow struct {
		PostID string
		Total  int64
	}
	var grouped []countRow
	if err := s.db.WithContext(ctx).Model(&Comment{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&grouped).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(grouped))
	for _, row := range grouped {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

func (s *Service) profilesByID(ctx context.Context, userIDs []string) (map[string]users.Profile, error) {
	var rows []users.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	profiles := make(map[string]users.Profile, len(rows))
	for _, row := range rows {
		profiles[row.ID] = row.Profile()
	}
	return profiles, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
