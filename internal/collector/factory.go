package collector

import (
	"fmt"
	"time"

	"github.com/qepting91/reddit-cleaner/internal/config"
	"github.com/qepting91/reddit-cleaner/internal/domain"
)

// mockHistorySize is the number of fake comments served in mock mode.
const mockHistorySize = 120

// NewCollector selects the correct implementation based on the MODE
func NewCollector(cfg *config.Config) (domain.Source, error) {
	switch cfg.Mode {
	case config.ModeAPI:
		c := cfg.Credentials
		if !c.Complete() {
			return nil, config.ErrMissingCredentials
		}
		return NewAPIClient(c.ID, c.Secret, c.Username, c.Password, cfg.UserAgent)
	case config.ModePublic:
		if cfg.UserAgent == "" {
			return nil, fmt.Errorf("REDDIT_USER_AGENT is required for public mode")
		}
		return NewPublicClient(cfg.UserAgent)
	case config.ModeMock:
		return NewMockClient(mockHistorySize, time.Now()), nil
	default:
		return nil, fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'api', 'public', or 'mock')", cfg.Mode)
	}
}
