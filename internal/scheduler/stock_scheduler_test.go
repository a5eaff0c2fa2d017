package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingCorrector struct {
	calls int
	err   error
}

func (c *countingCorrector) UnfeatureOutOfStock() (int64, error) {
	c.calls++
	return 2, c.err
}

func TestStockScheduler_RunOnce(t *testing.T) {
	corrector := &countingCorrector{}
	s := NewStockScheduler("*/15 * * * *", corrector)

	s.RunOnce()
	corrector.err = errors.New("database gone")
	s.RunOnce()

	assert.Equal(t, 2, corrector.calls)
}

type countingPurger struct {
	calls int
	err   error
}

func (p *countingPurger) PurgeExpired() (int64, error) {
	p.calls++
	return 1, p.err
}

func TestStockScheduler_PurgeTokens(t *testing.T) {
	s := NewStockScheduler("*/15 * * * *", &countingCorrector{})
	s.PurgeTokens()

	purger := &countingPurger{}
	s.WithTokenPurge("0 3 * * *", purger)
	s.PurgeTokens()
	purger.err = errors.New("database gone")
	s.PurgeTokens()

	assert.Equal(t, 2, purger.calls)
}

func TestStockScheduler_Start(t *testing.T) {
	t.Run("valid spec", func(t *testing.T) {
		s := NewStockScheduler("*/15 * * * *", &countingCorrector{})
		assert.NoError(t, s.Start())
		s.Stop()
	})

	t.Run("invalid spec", func(t *testing.T) {
		s := NewStockScheduler("every now and then", &countingCorrector{})
		assert.Error(t, s.Start())
	})

	t.Run("with token purge", func(t *testing.T) {
		s := NewStockScheduler("*/15 * * * *", &countingCorrector{}).
			WithTokenPurge("0 3 * * *", &countingPurger{})
		assert.NoError(t, s.Start())
		s.Stop()
	})

	t.Run("invalid purge spec", func(t *testing.T) {
		s := NewStockScheduler("*/15 * * * *", &countingCorrector{}).
			WithTokenPurge("nightly", &countingPurger{})
		assert.Error(t, s.Start())
	})
}
