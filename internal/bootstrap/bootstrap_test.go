package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/config"
)

func TestNewInMemory(t *testing.T) {
	cfg := config.Config{
		Storage:     config.StorageMemory,
		LockBackend: config.LockMemory,
		Location:    time.UTC,
		WeekendDays: []time.Weekday{time.Friday, time.Saturday},
	}

	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Shutdown()

	assert.IsType(t, &appointment.MemoryRepository{}, app.Repo)
	assert.Nil(t, app.Pool)
	assert.Nil(t, app.Redis)
	assert.Empty(t, app.Checks)
	require.NotNil(t, app.Service)

	types, err := app.Service.CaseTypes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, types)
}
