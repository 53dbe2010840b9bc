package posts

import (
	"context"
	"errors"

	"github.com/framelab/dailyframe/internal/fault"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApplyVote runs the vote state machine for one (user, post) pair:
//
//	NONE          -> requested  create
//	requested     -> NONE       delete (repeating the same type retracts)
//	other type    -> requested  update in place
//
// The composite primary key on (user_id, post_id) is the sole arbiter of
// whether a vote exists: a concurrent duplicate create collapses into the
// update/no-op branch instead of surfacing an error or a second row.
func (s *Service) ApplyVote(ctx context.Context, userID, postID string, requested VoteType) (VoteOutcome, error) {
	if _, err := ParseVoteType(string(requested)); err != nil {
		return VoteOutcome{}, fault.New(fault.KindBadRequest, opApplyVote, err)
	}

	outcome := VoteOutcome{}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		err := tx.Where("id = ?", postID).First(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fault.Errorf(fault.KindNotFound, opApplyVote, "post not found")
		}
		if err != nil {
			return fault.New(fault.KindInternal, opApplyVote, err)
		}
		if post.UserID == userID {
			return fault.Errorf(fault.KindForbidden, opApplyVote, "cannot vote on your own post")
		}

		var existing Vote
		err = tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := Vote{UserID: userID, PostID: postID, Type: requested}
			createErr := tx.Create(&vote).Error
			if createErr == nil {
				outcome.Action = VoteActionCreated
				outcome.Type = requested
				break
			}
			if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return fault.New(fault.KindInternal, opApplyVote, createErr)
			}
			// Lost a race against an identical request; fall through to the
			// existing-vote branches against the winner's row.
			if err := tx.Where("user_id = ? AND post_id = ?", userID, postID).First(&existing).Error; err != nil {
				return fault.New(fault.KindInternal, opApplyVote, err)
			}
			if existing.Type == requested {
				outcome.Action = VoteActionCreated
				outcome.Type = requested
				break
			}
			fallthrough
		case err == nil && existing.Type != requested:
			if err := tx.Model(&Vote{}).
				Where("user_id = ? AND post_id = ?", userID, postID).
				Update("type", requested).Error; err != nil {
				return fault.New(fault.KindInternal, opApplyVote, err)
			}
			outcome.Action = VoteActionUpdated
			outcome.Type = requested
		case err == nil:
			if err := tx.Where("user_id = ? AND post_id = ?", userID, postID).
				Delete(&Vote{}).Error; err != nil {
				return fault.New(fault.KindInternal, opApplyVote, err)
			}
			outcome.Action = VoteActionRemoved
			outcome.Type = ""
		default:
			return fault.New(fault.KindInternal, opApplyVote, err)
		}

		tallies, err := s.talliesInTx(tx, postID)
		if err != nil {
			return fault.New(fault.KindInternal, opApplyVote, err)
		}
		outcome.Upvotes = tallies.upvotes
		outcome.Downvotes = tallies.downvotes
		return nil
	})
	if txErr != nil {
		return VoteOutcome{}, txErr
	}

	s.logger.Debug("vote applied",
		zap.String("post_id", postID),
		zap.String("action", string(outcome.Action)))
	return outcome, nil
}

// UserVote returns the caller's current vote on the post, or an empty type
// when no vote exists.
func (s *Service) UserVote(ctx context.Context, userID, postID string) (VoteType, error) {
	var vote Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fault.New(fault.KindInternal, opUserVote, err)
	}
	return vote.Type, nil
}

func (s *Service) talliesInTx(tx *gorm.DB, postID string) (voteTally, error) {
	tally := voteTally{}
	if err := tx.Model(&Vote{}).
		Where("post_id = ? AND type = ?", postID, VoteTypeUp).
		Count(&tally.upvotes).Error; err != nil {
		return voteTally{}, err
	}
	if err := tx.Model(&Vote{}).
		Where("post_id = ? AND type = ?", postID, VoteTypeDown).
		Count(&tally.downvotes).Error; err != nil {
		return voteTally{}, err
	}
	return tally, nil
}
