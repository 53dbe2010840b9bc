package posts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/framelab/dailyframe/internal/fault"
	"github.com/framelab/dailyframe/internal/images"
	"github.com/framelab/dailyframe/internal/topics"
	"github.com/framelab/dailyframe/internal/users"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:posts_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &topics.Topic{}, &Post{}, &Vote{}, &Comment{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

type sequenceIDProvider struct {
	prefix string
	next   int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("%s-%03d", p.prefix, p.next), nil
}

type stubImageStore struct {
	saveErr error
}

func (s stubImageStore) Save(_ context.Context, userID, fileName, contentType string, data []byte) (images.StoredImage, error) {
	if s.saveErr != nil {
		return images.StoredImage{}, s.saveErr
	}
	key := userID + "/" + fileName
	return images.StoredImage{Key: key, URL: "/uploads/" + key}, nil
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: &sequenceIDProvider{prefix: "id"},
		ImageStore: stubImageStore{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func seedUser(t *testing.T, db *gorm.DB, id string) users.User {
	t.Helper()
	user := users.User{
		ID:          id,
		Provider:    "twitter",
		Subject:     "subject-" + id,
		Username:    id + "_handle",
		DisplayName: "User " + id,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

func seedTopic(t *testing.T, db *gorm.DB, id string, active bool) topics.Topic {
	t.Helper()
	topic := topics.Topic{
		ID:          id,
		Title:       "Topic " + id,
		Description: "Description " + id,
		Keywords:    "[]",
		Date:        time.Now().UTC(),
		IsActive:    active,
	}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatalf("failed to seed topic %s: %v", id, err)
	}
	return topic
}

func seedPost(t *testing.T, db *gorm.DB, id, userID, topicID string, createdAt time.Time) Post {
	t.Helper()
	post := Post{
		ID:        id,
		UserID:    userID,
		TopicID:   topicID,
		ImageURL:  "/uploads/" + id + ".jpg",
		ImageKey:  id + ".jpg",
		CreatedAt: createdAt,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post %s: %v", id, err)
	}
	return post
}

func TestCreatePostReturnsAssembledView(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	topic := seedTopic(t, db, "topic-1", true)

	view, err := service.CreatePost(context.Background(), author.ID, CreatePostInput{
		TopicID:   topic.ID,
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		ImageType: "image/jpeg",
		FileName:  "shot.jpg",
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if view.Author.ID != author.ID {
		t.Fatalf("unexpected author %s", view.Author.ID)
	}
	if view.Topic.ID != topic.ID {
		t.Fatalf("unexpected topic %s", view.Topic.ID)
	}
	if view.Upvotes != 0 || view.Downvotes != 0 || view.CommentCount != 0 {
		t.Fatalf("expected zero counters on a new post, got %+v", view)
	}
}

func TestCreatePostRejectsSecondSubmissionForTopic(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	topic := seedTopic(t, db, "topic-1", true)

	input := CreatePostInput{
		TopicID:   topic.ID,
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		ImageType: "image/jpeg",
		FileName:  "shot.jpg",
	}
	if _, err := service.CreatePost(context.Background(), author.ID, input); err != nil {
		t.Fatalf("unexpected error on first submission: %v", err)
	}
	_, err := service.CreatePost(context.Background(), author.ID, input)
	if !fault.IsKind(err, fault.KindConflict) {
		t.Fatalf("expected conflict on duplicate submission, got %v", err)
	}
}

func TestCreatePostRejectsUnknownTopic(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")

	_, err := service.CreatePost(context.Background(), author.ID, CreatePostInput{
		TopicID:   "missing-topic",
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		ImageType: "image/jpeg",
		FileName:  "shot.jpg",
	})
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("expected not found for unknown topic, got %v", err)
	}
}

func TestCreatePostRejectsInactiveTopic(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	author := seedUser(t, db, "author")
	topic := seedTopic(t, db, "topic-old", false)

	_, err := service.CreatePost(context.Background(), author.ID, CreatePostInput{
		TopicID:   topic.ID,
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		ImageType: "image/jpeg",
		FileName:  "shot.jpg",
	})
	if !fault.IsKind(err, fault.KindBadRequest) {
		t.Fatalf("expected bad request for inactive topic, got %v", err)
	}
}

func TestCreatePostReportsImageStoreFailureAsBadRequest(t *testing.T) {
	db := openTestDatabase(t)
	author := seedUser(t, db, "author")
	topic := seedTopic(t, db, "topic-1", true)

	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: &sequenceIDProvider{prefix: "id"},
		ImageStore: stubImageStore{saveErr: images.ErrUnsupportedType},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}

	_, err = service.CreatePost(context.Background(), author.ID, CreatePostInput{
		TopicID:   topic.ID,
		ImageData: []byte{0x00},
		ImageType: "text/plain",
		FileName:  "notes.txt",
	})
	if !fault.IsKind(err, fault.KindBadRequest) {
		t.Fatalf("expected bad request for rejected image, got %v", err)
	}
}

func TestInjectedClockStampsCreatedRecords(t *testing.T) {
	db := openTestDatabase(t)
	author := seedUser(t, db, "author")
	topic := seedTopic(t, db, "topic-1", true)
	fixed := time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC)

	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: &sequenceIDProvider{prefix: "id"},
		ImageStore: stubImageStore{},
		Clock:      func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}

	view, err := service.CreatePost(context.Background(), author.ID, CreatePostInput{
		TopicID:   topic.ID,
		ImageData: []byte{0xFF, 0xD8, 0xFF},
		ImageType: "image/jpeg",
		FileName:  "shot.jpg",
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if !view.CreatedAt.Equal(fixed) {
		t.Fatalf("expected post stamped %v, got %v", fixed, view.CreatedAt)
	}

	comment, err := service.CreateComment(context.Background(), author.ID, view.ID, "first light")
	if err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}
	if !comment.CreatedAt.Equal(fixed) {
		t.Fatalf("expected comment stamped %v, got %v", fixed, comment.CreatedAt)
	}
}

func TestGetPostUnknownIDReturnsNotFound(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)

	_, err := service.GetPost(context.Background(), "missing")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTodaysFeedEmptyWithoutActiveTopic(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	seedTopic(t, db, "topic-old", false)

	feed, err := service.TodaysFeed(context.Background())
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if len(feed) != 0 {
		t.Fatalf("expected empty feed without an active topic, got %d entries", len(feed))
	}
}

func TestTodaysFeedOrdersNewestFirst(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	topic := seedTopic(t, db, "topic-1", true)
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		user := seedUser(t, db, fmt.Sprintf("user-%d", i))
		seedPost(t, db, fmt.Sprintf("post-%03d", i), user.ID, topic.ID, base.Add(time.Duration(i)*time.Minute))
	}

	feed, err := service.TodaysFeed(context.Background())
	if err != nil {
		t.Fatalf("unexpected feed error: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("expected 3 feed entries, got %d", len(feed))
	}
	if feed[0].ID != "post-003" || feed[2].ID != "post-001" {
		t.Fatalf("unexpected feed ordering: %s .. %s", feed[0].ID, feed[2].ID)
	}
}

func TestListUserPostsPaginatesWithCursor(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	user := seedUser(t, db, "poster")
	base := time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		topic := seedTopic(t, db, fmt.Sprintf("topic-%d", i), false)
		seedPost(t, db, fmt.Sprintf("post-%03d", i), user.ID, topic.ID, base.AddDate(0, 0, i))
	}

	first, err := service.ListUserPosts(context.Background(), user.ID, 2, "")
	if err != nil {
		t.Fatalf("unexpected error on first page: %v", err)
	}
	if len(first.Posts) != 2 {
		t.Fatalf("expected 2 posts on first page, got %d", len(first.Posts))
	}
	if first.Posts[0].ID != "post-005" || first.Posts[1].ID != "post-004" {
		t.Fatalf("unexpected first page: %s, %s", first.Posts[0].ID, first.Posts[1].ID)
	}
	if first.NextCursor != "post-003" {
		t.Fatalf("unexpected next cursor %s", first.NextCursor)
	}

	second, err := service.ListUserPosts(context.Background(), user.ID, 2, first.NextCursor)
	if err != nil {
		t.Fatalf("unexpected error on second page: %v", err)
	}
	if len(second.Posts) != 2 || second.Posts[0].ID != "post-003" {
		t.Fatalf("expected the cursor row to lead the second page, got %+v", second.Posts)
	}
	if second.NextCursor != "post-001" {
		t.Fatalf("unexpected next cursor %s", second.NextCursor)
	}

	last, err := service.ListUserPosts(context.Background(), user.ID, 2, second.NextCursor)
	if err != nil {
		t.Fatalf("unexpected error on last page: %v", err)
	}
	if len(last.Posts) != 1 || last.Posts[0].ID != "post-001" {
		t.Fatalf("unexpected last page: %+v", last.Posts)
	}
	if last.NextCursor != "" {
		t.Fatalf("expected empty cursor on last page, got %s", last.NextCursor)
	}
}

func TestListTopicPostsCoversInactiveTopics(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	topic := seedTopic(t, db, "topic-past", false)
	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		user := seedUser(t, db, fmt.Sprintf("user-%d", i))
		seedPost(t, db, fmt.Sprintf("post-%03d", i), user.ID, topic.ID, base.Add(time.Duration(i)*time.Hour))
	}

	first, err := service.ListTopicPosts(context.Background(), topic.ID, 2, "")
	if err != nil {
		t.Fatalf("unexpected error on first page: %v", err)
	}
	if len(first.Posts) != 2 || first.Posts[0].ID != "post-003" {
		t.Fatalf("unexpected first page: %+v", first.Posts)
	}
	if first.NextCursor != "post-001" {
		t.Fatalf("unexpected next cursor %s", first.NextCursor)
	}

	last, err := service.ListTopicPosts(context.Background(), topic.ID, 2, first.NextCursor)
	if err != nil {
		t.Fatalf("unexpected error on last page: %v", err)
	}
	if len(last.Posts) != 1 || last.Posts[0].ID != "post-001" || last.NextCursor != "" {
		t.Fatalf("unexpected last page: %+v next %s", last.Posts, last.NextCursor)
	}
}

func TestListTopicPostsUnknownTopicReturnsNotFound(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)

	_, err := service.ListTopicPosts(context.Background(), "missing-topic", 2, "")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("expected not found for unknown topic, got %v", err)
	}
}

func TestListUserPostsRejectsUnknownCursor(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)
	user := seedUser(t, db, "poster")

	_, err := service.ListUserPosts(context.Background(), user.ID, 2, "missing-cursor")
	if !fault.IsKind(err, fault.KindBadRequest) {
		t.Fatalf("expected bad request for unknown cursor, got %v", err)
	}
}
