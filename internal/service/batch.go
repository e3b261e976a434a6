package service

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// GenerateAll runs independent requests concurrently. Results keep the
// order of reqs; a failed request leaves a nil result and contributes to the
// returned error, which lists every failure.
func (s *InvoiceService) GenerateAll(ctx context.Context, reqs []GenerateRequest) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := s.Generate(ctx, req)
			if err != nil {
				errs[i] = fmt.Errorf("client %s: %w", req.ClientID, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return results, result.ErrorOrNil()
}
