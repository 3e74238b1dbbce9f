package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/blegov/internal/groutine"
	"github.com/srg/blegov/pkg/manager"
)

// Start launches the event collector, the worker pool and the tick loop. The
// first maintenance pass runs immediately; afterwards every governor is
// enqueued once per refresh period. Start fails when the registry is already
// running.
func (r *Registry) Start(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if r.running {
		return fmt.Errorf("registry is already running")
	}
	if err := r.collector.Start(); err != nil {
		return fmt.Errorf("failed to start event collector: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.cfg.WorkerCount; i++ {
		r.wg.Add(1)
		groutine.Go(ctx, fmt.Sprintf("governor-worker-%d", i), func(ctx context.Context) {
			defer r.wg.Done()
			r.workLoop(ctx)
		})
	}
	r.wg.Add(1)
	groutine.Go(ctx, "governor-scheduler", func(ctx context.Context) {
		defer r.wg.Done()
		r.tickLoop(ctx)
	})

	r.running = true
	r.log.WithFields(logrus.Fields{
		"workers": r.cfg.WorkerCount,
		"period":  r.cfg.RefreshRate(),
	}).Info("Registry started")
	return nil
}

// Stop cancels the scheduler, joins the workers and stops the event
// collector. Requests still queued survive for the next Start. Calling Stop
// on a stopped registry is a no-op.
func (r *Registry) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	r.cancel()
	r.wg.Wait()

	if err := r.collector.Stop(); err != nil {
		r.log.WithError(err).Warn("Event collector did not stop cleanly")
	}
	r.log.Info("Registry stopped")
}

// tickLoop feeds the work queue. The immediate first pass keeps a freshly
// started registry from idling for a full period before governing anything.
func (r *Registry) tickLoop(ctx context.Context) {
	r.enqueueAll()

	ticker := time.NewTicker(r.cfg.RefreshRate())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.enqueueAll()
		}
	}
}

func (r *Registry) workLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case g := <-r.work:
			g.Maintain()
		}
	}
}

func (r *Registry) enqueueAll() {
	r.governors.Range(func(_ string, g manager.Governor) bool {
		r.scheduleMaintain(g)
		return true
	})
}

// scheduleMaintain hands g to the worker pool without ever blocking the
// caller. A blocking send here could deadlock a worker whose maintenance
// pass refreshes descendants, so a full queue drops the request instead.
func (r *Registry) scheduleMaintain(g manager.Governor) {
	select {
	case r.work <- g:
	default:
		r.log.WithField("url", g.Address().String()).Debug("Maintenance queue full, request dropped")
	}
}
