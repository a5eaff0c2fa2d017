package scheduler

import (
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// StockCorrector is satisfied by service.ListingService
type StockCorrector interface {
	UnfeatureOutOfStock() (int64, error)
}

// TokenPurger is satisfied by service.PasswordResetService
type TokenPurger interface {
	PurgeExpired() (int64, error)
}

// StockScheduler periodically takes sold out listings off the featured list.
// It also hosts the nightly reset token cleanup when one is attached.
type StockScheduler struct {
	cron      *cron.Cron
	spec      string
	corrector StockCorrector

	purgeSpec string
	purger    TokenPurger
}

func NewStockScheduler(spec string, corrector StockCorrector) *StockScheduler {
	return &StockScheduler{
		cron:      cron.New(),
		spec:      spec,
		corrector: corrector,
	}
}

// RunOnce performs a single correction pass
func (s *StockScheduler) RunOnce() {
	updated, err := s.corrector.UnfeatureOutOfStock()
	if err != nil {
		logger.Error("Scheduled unfeature of sold out listings failed", err, nil)
		return
	}
	logger.Debug("Scheduled unfeature of sold out listings finished", map[string]interface{}{
		"updated": updated,
	})
}

// WithTokenPurge attaches a reset token cleanup job
func (s *StockScheduler) WithTokenPurge(spec string, purger TokenPurger) *StockScheduler {
	s.purgeSpec = spec
	s.purger = purger
	return s
}

// PurgeTokens deletes expired reset tokens once
func (s *StockScheduler) PurgeTokens() {
	if s.purger == nil {
		return
	}
	purged, err := s.purger.PurgeExpired()
	if err != nil {
		logger.Error("Scheduled reset token purge failed", err, nil)
		return
	}
	logger.Debug("Scheduled reset token purge finished", map[string]interface{}{
		"purged": purged,
	})
}

// Start registers the jobs and starts the cron runner
func (s *StockScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		logger.Error("Failed to add cron job for stock correction", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}
	if s.purger != nil {
		if _, err := s.cron.AddFunc(s.purgeSpec, s.PurgeTokens); err != nil {
			logger.Error("Failed to add cron job for reset token purge", err, map[string]interface{}{
				"spec": s.purgeSpec,
			})
			return err
		}
	}

	s.cron.Start()
	logger.Info("Stock scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// Stop waits for a running job to finish
func (s *StockScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Stock scheduler stopped", nil)
}
