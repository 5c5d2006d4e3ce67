package storagemock

import (
	"context"
	"time"

	"github.com/raterudder/solarwatch/pkg/storage"
	"github.com/raterudder/solarwatch/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) UpsertHourlyRecords(ctx context.Context, plantID string, records []types.HourlyRecord) error {
	args := m.Called(ctx, plantID, records)
	return args.Error(0)
}

func (m *MockDatabase) GetHourlyRecords(ctx context.Context, plantID string, start, end time.Time) ([]types.HourlyRecord, error) {
	args := m.Called(ctx, plantID, start, end)
	if len(args) > 0 {
		if args.Get(0) == nil {
			return nil, args.Error(1)
		}
		return args.Get(0).([]types.HourlyRecord), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetLatestHourlyRecordTime(ctx context.Context, plantID string) (time.Time, error) {
	args := m.Called(ctx, plantID)
	if len(args) > 0 {
		return args.Get(0).(time.Time), args.Error(1)
	}
	return time.Time{}, nil
}

func (m *MockDatabase) Close() error {
	return nil
}
