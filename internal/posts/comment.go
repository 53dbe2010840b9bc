package posts

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/framelab/dailyframe/internal/fault"
	"gorm.io/gorm"
)

const maxCommentLength = 500

// CreateComment appends an immutable comment to the post's stream.
func (s *Service) CreateComment(ctx context.Context, userID, postID, content string) (CommentView, error) {
	content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	if content == "" {
		return CommentView{}, fault.Errorf(fault.KindBadRequest, opCreateComment, "comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return CommentView{}, fault.Errorf(fault.KindBadRequest, opCreateComment, "comment too long")
	}

	var post Post
	err := s.db.WithContext(ctx).Select("id").Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CommentView{}, fault.Errorf(fault.KindNotFound, opCreateComment, "post not found")
	}
	if err != nil {
		return CommentView{}, fault.New(fault.KindInternal, opCreateComment, err)
	}

	commentID, err := s.idProvider.NewID()
	if err != nil {
		return CommentView{}, fault.New(fault.KindInternal, opCreateComment, err)
	}
	comment := Comment{
		ID:        commentID,
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return CommentView{}, fault.New(fault.KindInternal, opCreateComment, err)
	}

	profiles, err := s.profilesByID(ctx, []string{userID})
	if err != nil {
		return CommentView{}, fault.New(fault.KindInternal, opCreateComment, err)
	}
	return CommentView{
		ID:        comment.ID,
		PostID:    comment.PostID,
		Author:    profiles[userID],
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}, nil
}

// ListComments returns one page of the post's comment stream, newest first.
// limit+1 rows are fetched internally; the extra row becomes the next cursor
// and never reaches the caller.
func (s *Service) ListComments(ctx context.Context, postID string, limit int, cursor string) (CommentPage, error) {
	limit = normalizeLimit(limit)

	var post Post
	err := s.db.WithContext(ctx).Select("id").Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CommentPage{}, fault.Errorf(fault.KindNotFound, opListComments, "post not found")
	}
	if err != nil {
		return CommentPage{}, fault.New(fault.KindInternal, opListComments, err)
	}

	query := s.db.WithContext(ctx).Where("post_id = ?", postID)
	if cursor != "" {
		var anchor Comment
		err := s.db.WithContext(ctx).Where("id = ?", cursor).First(&anchor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CommentPage{}, fault.Errorf(fault.KindBadRequest, opListComments, "unknown cursor")
		}
		if err != nil {
			return CommentPage{}, fault.New(fault.KindInternal, opListComments, err)
		}
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id <= ?)",
			anchor.CreatedAt, anchor.CreatedAt, anchor.ID,
		)
	}

	var rows []Comment
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return CommentPage{}, fault.New(fault.KindInternal, opListComments, err)
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = rows[limit].ID
		rows = rows[:limit]
	}

	userIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	profileViews, err := s.profilesByID(ctx, userIDs)
	if err != nil {
		return CommentPage{}, fault.New(fault.KindInternal, opListComments, err)
	}

	views := make([]CommentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, CommentView{
			ID:        row.ID,
			PostID:    row.PostID,
			Author:    profileViews[row.UserID],
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		})
	}
	return CommentPage{Comments: views, NextCursor: nextCursor}, nil
}
