package topics

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/framelab/dailyframe/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// retainedTopicCount bounds topic history; rotation prunes everything older.
const retainedTopicCount = 100

var (
	// ErrNoActiveTopic indicates no challenge topic is currently active.
	ErrNoActiveTopic = errors.New("topics: no active topic")
	// ErrTopicNotFound indicates the requested topic id does not exist.
	ErrTopicNotFound = errors.New("topics: topic not found")

	errMissingDatabase   = errors.New("topics: database connection required")
	errMissingIDProvider = errors.New("topics: id provider required")
	errEmptyCatalog      = errors.New("topics: catalog must not be empty")
)

// ServiceConfig describes the dependencies of the topic rotation service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Catalog    []CatalogEntry
	Clock      func() time.Time
	// Pick selects a catalog index for the next topic. Defaults to a
	// time-seeded random pick; tests inject a deterministic one.
	Pick   func(n int) int
	Logger *zap.Logger
}

// Service owns the active-topic invariant: it activates, rotates, and prunes
// challenge topics.
type Service struct {
	db      *gorm.DB
	idProv  ids.Provider
	catalog []CatalogEntry
	clock   func() time.Time
	pick    func(n int) int
	logger  *zap.Logger
}

// NewService constructs the topic service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	catalog := cfg.Catalog
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	if len(catalog) == 0 {
		return nil, errEmptyCatalog
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	pick := cfg.Pick
	if pick == nil {
		rng := rand.New(rand.NewSource(clock().UnixNano()))
		pick = rng.Intn
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      cfg.Database,
		idProv:  cfg.IDProvider,
		catalog: catalog,
		clock:   clock,
		pick:    pick,
		logger:  logger,
	}, nil
}

// ActiveTopic returns the single currently active topic, newest first when
// the invariant has been violated out of band.
func (s *Service) ActiveTopic(ctx context.Context) (Topic, error) {
	var topic Topic
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		First(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Topic{}, ErrNoActiveTopic
	}
	if err != nil {
		return Topic{}, err
	}
	return topic, nil
}

// GetTopic returns the topic with the given id.
func (s *Service) GetTopic(ctx context.Context, topicID string) (Topic, error) {
	var topic Topic
	err := s.db.WithContext(ctx).Where("id = ?", topicID).First(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Topic{}, ErrTopicNotFound
	}
	if err != nil {
		return Topic{}, err
	}
	return topic, nil
}

// RotationResult reports what a rotation run did.
type RotationResult struct {
	Topic  Topic
	Reused bool
	Pruned int
}

// Rotate deactivates every active topic and activates the next one. Trigger
// invocations can overlap (hosted cron retries), so creation is deduplicated
// by minute bucket: if a topic already exists for the current minute it is
// re-activated instead of a new row being created. Rotation also prunes topic
// history beyond retainedTopicCount, removing the pruned topics' posts,
// votes, and comments first.
func (s *Service) Rotate(ctx context.Context) (RotationResult, error) {
	now := s.clock().UTC()
	result := RotationResult{}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Topic{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivate topics: %w", err)
		}

		bucketStart := now.Truncate(time.Minute)
		bucketEnd := bucketStart.Add(time.Minute)

		var existing Topic
		err := tx.Where("date >= ? AND date < ?", bucketStart, bucketEnd).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&Topic{}).
				Where("id = ?", existing.ID).
				Update("is_active", true).Error; err != nil {
				return fmt.Errorf("reactivate topic: %w", err)
			}
			existing.IsActive = true
			result.Topic = existing
			result.Reused = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry := s.catalog[s.pick(len(s.catalog))]
			topicID, idErr := s.idProv.NewID()
			if idErr != nil {
				return idErr
			}
			topic := NewFromCatalog(topicID, entry, now, true)
			if err := tx.Create(&topic).Error; err != nil {
				return fmt.Errorf("create topic: %w", err)
			}
			result.Topic = topic
		default:
			return fmt.Errorf("lookup topic bucket: %w", err)
		}

		pruned, err := pruneOldTopics(tx)
		if err != nil {
			return err
		}
		result.Pruned = pruned
		return nil
	})
	if txErr != nil {
		return RotationResult{}, txErr
	}

	if result.Reused {
		s.logger.Info("topic rotation reused existing topic",
			zap.String("topic_id", result.Topic.ID),
			zap.String("title", result.Topic.Title))
	} else {
		s.logger.Info("topic rotation created topic",
			zap.String("topic_id", result.Topic.ID),
			zap.String("title", result.Topic.Title))
	}
	if result.Pruned > 0 {
		s.logger.Info("pruned old topics", zap.Int("count", result.Pruned))
	}
	return result, nil
}

// pruneOldTopics removes topics beyond the retained history window. Child
// rows go first: the schema keys votes and comments to posts, and posts to
// topics.
func pruneOldTopics(tx *gorm.DB) (int, error) {
	var oldTopicIDs []string
	if err := tx.Model(&Topic{}).
		Order("created_at DESC").
		Offset(retainedTopicCount).
		Pluck("id", &oldTopicIDs).Error; err != nil {
		return 0, fmt.Errorf("list old topics: %w", err)
	}
	if len(oldTopicIDs) == 0 {
		return 0, nil
	}

	var oldPostIDs []string
	if err := tx.Table("posts").
		Where("topic_id IN ?", oldTopicIDs).
		Pluck("id", &oldPostIDs).Error; err != nil {
		return 0, fmt.Errorf("list old posts: %w", err)
	}
	if len(oldPostIDs) > 0 {
		if err := tx.Exec("DELETE FROM votes WHERE post_id IN ?", oldPostIDs).Error; err != nil {
			return 0, fmt.Errorf("delete old votes: %w", err)
		}
		if err := tx.Exec("DELETE FROM comments WHERE post_id IN ?", oldPostIDs).Error; err != nil {
			return 0, fmt.Errorf("delete old comments: %w", err)
		}
	}
	if err := tx.Exec("DELETE FROM posts WHERE topic_id IN ?", oldTopicIDs).Error; err != nil {
		return 0, fmt.Errorf("delete old posts: %w", err)
	}
	if err := tx.Where("id IN ?", oldTopicIDs).Delete(&Topic{}).Error; err != nil {
		return 0, fmt.Errorf("delete old topics: %w", err)
	}
	return len(oldTopicIDs), nil
}
