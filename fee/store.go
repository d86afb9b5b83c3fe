package fee

import "context"

type Store interface {
	GetFeeSchedule(ctx context.Context) (*Schedule, error)
	SaveFeeSchedule(ctx context.Context, s *Schedule) error
}
