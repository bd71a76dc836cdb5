// Package cleanup removes conversations that have gone quiet past the
// retention window, cascading to their messages.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ilanpazar/messaging/internal/models"
)

// Sweeper deletes inactive conversations. A conversation is inactive when it
// predates the cutoff and has no message newer than the cutoff.
type Sweeper struct {
	db        *gorm.DB
	retention time.Duration
	log       *logrus.Logger
}

// NewSweeper creates a Sweeper with the given retention window.
func NewSweeper(db *gorm.DB, retention time.Duration, log *logrus.Logger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{db: db, retention: retention, log: log}
}

// RunOnce performs one sweep and returns how many conversations were removed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.retention)

	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("created_at < ?", cutoff).
		Where("id NOT IN (?)", s.db.Model(&models.Message{}).
			Select("conversation_id").
			Where("created_at >= ?", cutoff)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("cleanup: find inactive conversations: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Conversation{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup: delete inactive conversations: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"removed": len(ids),
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("cleanup: swept inactive conversations")
	return len(ids), nil
}

// Schedule registers the sweeper on c with the given cron expression.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.WithError(err).Error("cleanup: scheduled sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("cleanup: schedule %q: %w", spec, err)
	}
	return nil
}
