package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestInitWithTypeSQLite(t *testing.T) {
	db, err := InitWithType("sqlite", ":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close() })

	require.NoError(t, Migrate(db, &widget{}))
	require.NoError(t, db.Create(&widget{Name: "gear"}).Error)

	var count int64
	db.Model(&widget{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Same(t, db, GetDB())
}

func TestPaginatedResultCalculate(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     int64
	}{
		{0, 10, 0},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}

	for _, tt := range tests {
		p := PaginatedResult{Total: tt.total, PageSize: tt.pageSize}
		p.Calculate()
		assert.Equal(t, tt.want, p.TotalPages)
	}
	assert.Equal(t, 0, Offset(0, 20))
	assert.Equal(t, 40, Offset(3, 20))
}
