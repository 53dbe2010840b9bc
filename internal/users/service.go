package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/framelab/dailyframe/internal/auth"
	"github.com/framelab/dailyframe/internal/ids"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("users: user not found")
)

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database   *gorm.DB
	Provider   string
	IDProvider ids.Provider
	Clock      func() time.Time
}

// Service manages canonical user identifiers and provider-specific logins.
type Service struct {
	db         *gorm.DB
	provider   string
	idProvider ids.Provider
	now        func() time.Time
	cache      sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	provider := normalize(cfg.Provider)
	if provider == "" {
		provider = "twitter"
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:         cfg.Database,
		provider:   provider,
		idProvider: cfg.IDProvider,
		now:        clock,
	}, nil
}

// ResolveUser returns the canonical user for the provided identity claims,
// creating the account when the provider subject has not been seen before and
// refreshing stored display attributes when the provider reports new ones.
func (s *Service) ResolveUser(ctx context.Context, claims auth.ProviderClaims) (User, error) {
	subject := normalize(claims.Subject)
	if subject == "" {
		return User{}, ErrInvalidIdentity
	}

	// The cache only skips the (provider, subject) lookup; display
	// attribute refresh still runs below.
	cacheKey := s.provider + ":" + subject
	var user User
	found := false
	if cachedID, ok := s.cache.Load(cacheKey); ok {
		if userID, ok := cachedID.(string); ok {
			if cached, cacheErr := s.GetUser(ctx, userID); cacheErr == nil {
				user = cached
				found = true
			} else {
				s.cache.Delete(cacheKey)
			}
		}
	}

	var err error
	if !found {
		err = s.db.WithContext(ctx).
			Where("provider = ? AND subject = ?", s.provider, subject).
			First(&user).
			Error
	}
	if !found && errors.Is(err, gorm.ErrRecordNotFound) {
		userID, idErr := s.idProvider.NewID()
		if idErr != nil {
			return User{}, idErr
		}
		user = User{
			ID:          userID,
			Provider:    s.provider,
			Subject:     subject,
			Username:    normalize(claims.Username),
			DisplayName: normalize(claims.DisplayName),
			AvatarURL:   normalize(claims.AvatarURL),
			LastSeenAt:  s.now(),
		}
		if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
			return User{}, createErr
		}
	} else if err != nil {
		return User{}, err
	} else {
		updates := map[string]interface{}{"last_seen_at": s.now()}
		if username := normalize(claims.Username); username != "" && username != user.Username {
			updates["username"] = username
			user.Username = username
		}
		if display := normalize(claims.DisplayName); display != "" && display != user.DisplayName {
			updates["display_name"] = display
			user.DisplayName = display
		}
		if avatar := normalize(claims.AvatarURL); avatar != "" && avatar != user.AvatarURL {
			updates["avatar_url"] = avatar
			user.AvatarURL = avatar
		}
		_ = s.db.WithContext(ctx).Model(&User{}).
			Where("id = ?", user.ID).
			Updates(updates).
			Error
	}

	s.cache.Store(cacheKey, user.ID)
	return user, nil
}

// GetUser returns the user identified by the canonical id.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	if normalize(userID) == "" {
		return User{}, ErrUserNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetStats aggregates post, comment, and vote counts for the user.
func (s *Service) GetStats(ctx context.Context, userID string) (Stats, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return Stats{}, err
	}

	var stats Stats
	if err := s.db.WithContext(ctx).Table("posts").
		Where("user_id = ?", userID).
		Count(&stats.TotalPosts).Error; err != nil {
		return Stats{}, err
	}
	if err := s.db.WithContext(ctx).Table("comments").
		Where("user_id = ?", userID).
		Count(&stats.TotalComments).Error; err != nil {
		return Stats{}, err
	}
	if err := s.db.WithContext(ctx).Table("votes").
		Where("user_id = ?", userID).
		Count(&stats.TotalVotes).Error; err != nil {
		return Stats{}, err
	}
	return stats, nil
}
