package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/quedo/internal/provider"
)

// ConnectivityCheck runs concurrent health probes on both providers with a
// 6s timeout each.
func (p *Pipeline) ConnectivityCheck(ctx context.Context, primary, fallback provider.Kind) (primaryOK, fallbackOK bool) {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		primaryOK = p.probeHealthy(groupCtx, primary)
		return nil
	})
	group.Go(func() error {
		fallbackOK = p.probeHealthy(groupCtx, fallback)
		return nil
	})

	_ = group.Wait()
	return primaryOK, fallbackOK
}

func (p *Pipeline) probeHealthy(ctx context.Context, kind provider.Kind) bool {
	adapter, err := p.registry.Get(kind)
	if err != nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, connectivityProbeTimeout)
	defer cancel()

	return adapter.CheckHealth(probeCtx, int(connectivityProbeTimeout/time.Second))
}
