package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		db         bool
		extraErr   error
		wantStatus string
	}{
		{"all healthy", true, nil, StatusHealthy},
		{"extra failing degrades", true, errors.New("redis down"), StatusDegraded},
		{"no database", false, nil, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var db *gorm.DB
			if tt.db {
				db = setupTestDB(t)
			}
			hc := NewHealthChecker(db, "test")
			extraErr := tt.extraErr
			hc.Register("bus", func(context.Context) error { return extraErr })

			status := hc.Check(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Contains(t, status.Checks, "database")
			assert.Contains(t, status.Checks, "bus")
			assert.Equal(t, tt.wantStatus == StatusHealthy, hc.IsHealthy())
			assert.Equal(t, tt.db, hc.IsReady(context.Background()))
		})
	}
}

func TestGetMetrics(t *testing.T) {
	hc := NewHealthChecker(nil, "test")
	m := hc.GetMetrics()
	assert.Positive(t, m.GoroutineCount)
	assert.Positive(t, m.CPUNumCores)
	assert.True(t, hc.IsAlive())
}
