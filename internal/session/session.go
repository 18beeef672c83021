package session

import (
	"context"
	"time"

	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/console/internal/catalog/service"
	"github.com/smallbiznis/console/internal/editor"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Session owns the catalog store and page state of one console user.
type Session struct {
	ID        string
	CreatedAt time.Time

	Store         *catalogservice.Store
	Editor        *editor.Editor
	Tracker       *Tracker
	Notifications *Notifications

	log     *zap.Logger
	metrics *obsmetrics.ConsoleMetrics
}

// Observe settles a load flow. It returns false, leaving page state alone,
// when a newer flow of the same view has begun. Otherwise a failure fills
// the view's notification slot and a success clears it.
func (s *Session) Observe(ticket Ticket, err error) bool {
	if !s.Tracker.Commit(ticket) {
		s.log.Debug("discarding superseded result", zap.String("view", string(ticket.View)))
		return false
	}
	if err != nil {
		note := s.Notifications.Set(ticket.View, err)
		s.metrics.RecordNotification(string(ticket.View), note.Type)
		return true
	}
	s.Notifications.Clear(ticket.View)
	return true
}

// Run executes the reads of one page load concurrently as a single flow of
// view and settles it with the first failure.
func (s *Session) Run(ctx context.Context, view View, reads ...func(context.Context) error) error {
	ticket := s.Tracker.Begin(view)
	g, gctx := errgroup.WithContext(ctx)
	for _, read := range reads {
		read := read
		g.Go(func() error { return read(gctx) })
	}
	err := g.Wait()
	s.Observe(ticket, err)
	return err
}

// LoadCatalog reloads plans and modules for view, together with any extra
// reads the page needs. On failure the previous catalog is returned
// alongside the error, which is also recorded as the view's notification.
func (s *Session) LoadCatalog(ctx context.Context, view View, extra ...func(context.Context) error) (catalogdomain.Snapshot, error) {
	reads := append([]func(context.Context) error{func(ctx context.Context) error {
		_, err := s.Store.Load(ctx)
		return err
	}}, extra...)
	if err := s.Run(ctx, view, reads...); err != nil {
		return s.Store.Snapshot(), err
	}
	return s.Store.Snapshot(), nil
}
