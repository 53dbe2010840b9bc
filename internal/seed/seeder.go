// Package seed fills a database with realistic sample content for local
// development and demos. It writes through the same gorm models the services
// use, so seeded data always satisfies the ledger and uniqueness invariants.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/framelab/dailyframe/internal/ids"
	"github.com/framelab/dailyframe/internal/posts"
	"github.com/framelab/dailyframe/internal/topics"
	"github.com/framelab/dailyframe/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("seed: database connection required")
	errMissingIDProvider = errors.New("seed: id provider required")
)

var sampleUsernames = []string{
	"photo_hunter_", "creative_lens_", "snap_master_", "visual_story_",
	"pixel_artist_", "frame_seeker_", "light_chaser_", "moment_capture_",
	"street_wanderer_", "nature_eye_", "urban_explorer_", "color_palette_",
	"bokeh_dreams_", "golden_hour_", "shadow_play_", "macro_world_",
	"candid_shots_", "portrait_pro_", "landscape_lover_", "vintage_vibes_",
}

var sampleDisplayNames = []string{
	"Alex Chen", "Maya Patel", "Jordan Kim", "Riley Johnson", "Casey Wong",
	"Morgan Davis", "Avery Taylor", "Quinn Anderson", "Sage Wilson",
	"Phoenix Liu", "River Martinez", "Skylar Brown", "Rowan Garcia",
	"Ember Rodriguez", "Aspen Miller", "Ocean Park", "Storm Young",
	"Luna Wright", "Atlas Lopez", "Nova Green",
}

var sampleComments = []string{
	"Amazing composition! Love the lighting.",
	"This perfectly captures the theme!",
	"Great use of color and contrast.",
	"Such a creative interpretation!",
	"The detail in this shot is incredible.",
	"Perfect timing on this capture.",
	"Love the artistic vision here.",
	"This has such a unique perspective.",
	"Beautiful work! Very inspiring.",
	"Excellent technical execution.",
	"The mood in this photo is perfect.",
	"Such an interesting subject choice.",
	"Great eye for photography!",
	"This really stands out from the crowd.",
	"Fantastic use of the theme!",
}

// SeederConfig describes the seeder's dependencies.
type SeederConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
	// Rand drives sample selection. Defaults to a time-seeded source;
	// tests inject a fixed seed for reproducible data.
	Rand   *rand.Rand
	Logger *zap.Logger
}

// Seeder writes sample users, topics, posts, votes, and comments.
type Seeder struct {
	db     *gorm.DB
	idProv ids.Provider
	clock  func() time.Time
	rng    *rand.Rand
	logger *zap.Logger
}

// NewSeeder constructs a seeder.
func NewSeeder(cfg SeederConfig) (*Seeder, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(clock().UnixNano()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		db:     cfg.Database,
		idProv: cfg.IDProvider,
		clock:  clock,
		rng:    rng,
		logger: logger,
	}, nil
}

// Options bounds a seeding run.
type Options struct {
	Users  int
	Topics int
}

// Result counts what a seeding run created.
type Result struct {
	Users    int `json:"users"`
	Topics   int `json:"topics"`
	Posts    int `json:"posts"`
	Votes    int `json:"votes"`
	Comments int `json:"comments"`
}

const (
	defaultSeedUsers  = 20
	defaultSeedTopics = 10
)

// Seed creates sample content in one transaction. Exactly one topic ends up
// active (the newest), each post belongs to a distinct user-topic pair, and
// no user votes on their own post.
func (s *Seeder) Seed(ctx context.Context, opts Options) (Result, error) {
	userCount := opts.Users
	if userCount <= 0 {
		userCount = defaultSeedUsers
	}
	topicCount := opts.Topics
	if topicCount <= 0 || topicCount > len(topics.DefaultCatalog) {
		topicCount = defaultSeedTopics
	}

	now := s.clock().UTC()
	result := Result{}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sampleUsers, err := s.createUsers(tx, userCount, now)
		if err != nil {
			return err
		}
		result.Users = len(sampleUsers)

		sampleTopics, err := s.createTopics(tx, topicCount, now)
		if err != nil {
			return err
		}
		result.Topics = len(sampleTopics)

		samplePosts, err := s.createPosts(tx, sampleUsers, sampleTopics, now)
		if err != nil {
			return err
		}
		result.Posts = len(samplePosts)

		votes, err := s.createVotes(tx, sampleUsers, samplePosts, now)
		if err != nil {
			return err
		}
		result.Votes = votes

		comments, err := s.createComments(tx, sampleUsers, samplePosts, now)
		if err != nil {
			return err
		}
		result.Comments = comments
		return nil
	})
	if txErr != nil {
		return Result{}, txErr
	}

	s.logger.Info("seeded sample data",
		zap.Int("users", result.Users),
		zap.Int("topics", result.Topics),
		zap.Int("posts", result.Posts),
		zap.Int("votes", result.Votes),
		zap.Int("comments", result.Comments))
	return result, nil
}

// Reset deletes all content, children first.
func (s *Seeder) Reset(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"comments", "votes", "posts", "topics", "users"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("database reset")
	return nil
}

func (s *Seeder) createUsers(tx *gorm.DB, count int, now time.Time) ([]users.User, error) {
	created := make([]users.User, 0, count)
	for i := 0; i < count; i++ {
		userID, err := s.idProv.NewID()
		if err != nil {
			return nil, err
		}
		username := fmt.Sprintf("%s%d", sampleUsernames[i%len(sampleUsernames)], 100+s.rng.Intn(900))
		user := users.User{
			ID:          userID,
			Provider:    "twitter",
			Subject:     fmt.Sprintf("%d", 1000000000000000+s.rng.Int63n(9000000000000000)),
			Username:    username,
			DisplayName: sampleDisplayNames[i%len(sampleDisplayNames)],
			AvatarURL:   fmt.Sprintf("https://api.dicebear.com/7.x/avatars/svg?seed=%s", username),
			Reputation:  int64(s.rng.Intn(100)),
			LastSeenAt:  now.Add(-time.Duration(s.rng.Intn(7*24)) * time.Hour),
		}
		if err := tx.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create sample user: %w", err)
		}
		created = append(created, user)
	}
	return created, nil
}

// createTopics materializes the first topicCount catalog entries, dated one
// per day going back from now. Only the newest is active.
func (s *Seeder) createTopics(tx *gorm.DB, count int, now time.Time) ([]topics.Topic, error) {
	created := make([]topics.Topic, 0, count)
	for i := 0; i < count; i++ {
		topicID, err := s.idProv.NewID()
		if err != nil {
			return nil, err
		}
		entry := topics.DefaultCatalog[i]
		date := now.AddDate(0, 0, -(count - 1 - i))
		topic := topics.NewFromCatalog(topicID, entry, date, i == count-1)
		if err := tx.Create(&topic).Error; err != nil {
			return nil, fmt.Errorf("create sample topic: %w", err)
		}
		created = append(created, topic)
	}
	return created, nil
}

// createPosts gives each topic submissions from roughly two thirds of the
// users, at most one per user.
func (s *Seeder) createPosts(tx *gorm.DB, sampleUsers []users.User, sampleTopics []topics.Topic, now time.Time) ([]posts.Post, error) {
	created := make([]posts.Post, 0, len(sampleUsers)*len(sampleTopics))
	for _, topic := range sampleTopics {
		order := s.rng.Perm(len(sampleUsers))
		participants := 2 * len(sampleUsers) / 3
		if participants == 0 {
			participants = len(sampleUsers)
		}
		for _, idx := range order[:participants] {
			user := sampleUsers[idx]
			postID, err := s.idProv.NewID()
			if err != nil {
				return nil, err
			}
			post := posts.Post{
				ID:        postID,
				UserID:    user.ID,
				TopicID:   topic.ID,
				ImageURL:  fmt.Sprintf("https://picsum.photos/800/800?random=%s", postID),
				ImageKey:  fmt.Sprintf("%s/%s.jpg", user.ID, postID),
				CreatedAt: topic.Date.Add(time.Duration(s.rng.Intn(12*60)) * time.Minute),
			}
			if err := tx.Create(&post).Error; err != nil {
				return nil, fmt.Errorf("create sample post: %w", err)
			}
			created = append(created, post)
		}
	}
	return created, nil
}

// createVotes has other users vote on each post, 80% upvotes, never the
// author's own post.
func (s *Seeder) createVotes(tx *gorm.DB, sampleUsers []users.User, samplePosts []posts.Post, now time.Time) (int, error) {
	total := 0
	for _, post := range samplePosts {
		eligible := make([]users.User, 0, len(sampleUsers))
		for _, user := range sampleUsers {
			if user.ID != post.UserID {
				eligible = append(eligible, user)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		order := s.rng.Perm(len(eligible))
		voters := len(eligible) / 2
		for _, idx := range order[:voters] {
			voteType := posts.VoteTypeUp
			if s.rng.Intn(5) == 0 {
				voteType = posts.VoteTypeDown
			}
			vote := posts.Vote{
				UserID:    eligible[idx].ID,
				PostID:    post.ID,
				Type:      voteType,
				CreatedAt: now.Add(-time.Duration(s.rng.Intn(5*24)) * time.Hour),
			}
			if err := tx.Create(&vote).Error; err != nil {
				return 0, fmt.Errorf("create sample vote: %w", err)
			}
			total++
		}
	}
	return total, nil
}

func (s *Seeder) createComments(tx *gorm.DB, sampleUsers []users.User, samplePosts []posts.Post, now time.Time) (int, error) {
	total := 0
	for _, post := range samplePosts {
		eligible := make([]users.User, 0, len(sampleUsers))
		for _, user := range sampleUsers {
			if user.ID != post.UserID {
				eligible = append(eligible, user)
			}
		}
		if len(eligible) == 0 {
			continue
		}
		count := s.rng.Intn(5)
		for i := 0; i < count; i++ {
			commentID, err := s.idProv.NewID()
			if err != nil {
				return 0, err
			}
			comment := posts.Comment{
				ID:        commentID,
				PostID:    post.ID,
				UserID:    eligible[s.rng.Intn(len(eligible))].ID,
				Content:   sampleComments[s.rng.Intn(len(sampleComments))],
				CreatedAt: now.Add(-time.Duration(s.rng.Intn(3*24)) * time.Hour),
			}
			if err := tx.Create(&comment).Error; err != nil {
				return 0, fmt.Errorf("create sample comment: %w", err)
			}
			total++
		}
	}
	return total, nil
}
