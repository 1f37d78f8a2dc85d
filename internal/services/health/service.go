package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a health service. db may be nil when running on
// in-memory repositories.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: 2 * time.Second}
}

// Status reports per-dependency state and whether everything is healthy.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	out := map[string]string{"app": "ok"}
	if s == nil || s.DB == nil {
		out["database"] = "memory"
		return out, true
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		out["database"] = "unavailable"
		return out, false
	}
	out["database"] = "ok"
	return out, true
}
