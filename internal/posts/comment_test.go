package posts

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/framelab/dailyframe/internal/fault"
)

func TestCreateCommentStripsMarkupAndKeepsText(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	commenter := seedUser(t, db, "commenter")
	topic := seedTopic(t, db, "topic-1", true)
	post := seedPost(t, db, "post-001", author.ID, topic.ID, time.Now().UTC())

	view, err := service.CreateComment(context.Background(), commenter.ID, post.ID, "<b>great</b> shot")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if view.Content != "great shot" {
		t.Fatalf("expected markup stripped, got %q", view.Content)
	}
	if view.Author.ID != commenter.ID {
		t.Fatalf("unexpected author %s", view.Author.ID)
	}
}

func TestCreateCommentRejectsEmptyAfterSanitization(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	commenter := seedUser(t, db, "commenter")
	topic := seedTopic(t, db, "topic-1", true)
	post := seedPost(t, db, "post-001", author.ID, topic.ID, time.Now().UTC())

	_, err := service.CreateComment(context.Background(), commenter.ID, post.ID, "<script>alert(1)</script>")
	if !fault.IsKind(err, fault.KindBadRequest) {
		t.Fatalf("expected bad request for script-only comment, got %v", err)
	}

	_, err = service.CreateComment(context.Background(), commenter.ID, post.ID, "   ")
	if !fault.IsKind(err, fault.KindBadRequest) {
		t.Fatalf("expected bad request for blank comment, got %v", err)
	}
}

func TestCreateCommentRejectsOverlongContent(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	commenter := seedUser(t, db, "commenter")
	topic := seedTopic(t, db, "topic-1", true)
	post := seedPost(t, db, "post-001", author.ID, topic.ID, time.Now().UTC())

	_, err := service.CreateComment(context.Background(), commenter.ID, post.ID, strings.Repeat("a", maxCommentLength+1))
	if !fault.IsKind(err, fault.KindBadRequest) {
		t.Fatalf("expected bad request for overlong comment, got %v", err)
	}
}

func TestCreateCommentRejectsUnknownPost(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	commenter := seedUser(t, db, "commenter")

	_, err := service.CreateComment(context.Background(), commenter.ID, "missing-post", "nice")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("expected not found for unknown post, got %v", err)
	}
}

func TestListCommentsPaginatesNewestFirst(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	commenter := seedUser(t, db, "commenter")
	topic := seedTopic(t, db, "topic-1", true)
	post := seedPost(t, db, "post-001", author.ID, topic.ID, time.Now().UTC())

	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		comment := Comment{
			ID:        fmt.Sprintf("comment-%03d", i),
			PostID:    post.ID,
			UserID:    commenter.ID,
			Content:   fmt.Sprintf("comment %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&comment).Error; err != nil {
			t.Fatalf("failed to seed comment: %v", err)
		}
	}

	first, err := service.ListComments(context.Background(), post.ID, 2, "")
	if err != nil {
		t.Fatalf("unexpected error on first page: %v", err)
	}
	if len(first.Comments) != 2 {
		t.Fatalf("expected 2 comments on first page, got %d", len(first.Comments))
	}
	if first.Comments[0].ID != "comment-005" || first.Comments[1].ID != "comment-004" {
		t.Fatalf("unexpected first page ordering: %s, %s", first.Comments[0].ID, first.Comments[1].ID)
	}
	if first.NextCursor != "comment-003" {
		t.Fatalf("unexpected next cursor %s", first.NextCursor)
	}

	second, err := service.ListComments(context.Background(), post.ID, 2, first.NextCursor)
	if err != nil {
		t.Fatalf("unexpected error on second page: %v", err)
	}
	if len(second.Comments) != 2 || second.Comments[0].ID != "comment-003" {
		t.Fatalf("expected cursor row to lead second page, got %+v", second.Comments)
	}
	if second.NextCursor != "comment-001" {
		t.Fatalf("unexpected next cursor %s", second.NextCursor)
	}

	last, err := service.ListComments(context.Background(), post.ID, 2, second.NextCursor)
	if err != nil {
		t.Fatalf("unexpected error on last page: %v", err)
	}
	if len(last.Comments) != 1 || last.Comments[0].ID != "comment-001" {
		t.Fatalf("unexpected last page: %+v", last.Comments)
	}
	if last.NextCursor != "" {
		t.Fatalf("expected empty cursor at the end of the stream, got %s", last.NextCursor)
	}
}

func TestListCommentsRejectsUnknownCursor(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	topic := seedTopic(t, db, "topic-1", true)
	post := seedPost(t, db, "post-001", author.ID, topic.ID, time.Now().UTC())

	_, err := service.ListComments(context.Background(), post.ID, 2, "missing-cursor")
	if !fault.IsKind(err, fault.KindBadRequest) {
		t.Fatalf("expected bad request for unknown cursor, got %v", err)
	}
}

func TestCommentCountAppearsOnPostView(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	commenter := seedUser(t, db, "commenter")
	topic := seedTopic(t, db, "topic-1", true)
	post := seedPost(t, db, "post-001", author.ID, topic.ID, time.Now().UTC())

	if _, err := service.CreateComment(context.Background(), commenter.ID, post.ID, "one"); err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if _, err := service.CreateComment(context.Background(), commenter.ID, post.ID, "two"); err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}

	view, err := service.GetPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if view.CommentCount != 2 {
		t.Fatalf("expected comment count 2, got %d", view.CommentCount)
	}
}
