package services

import (
	"context"
	"testing"

	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/content/models"
	"github.com/jgirmay/pyguide/internal/content/repository"
	"github.com/jgirmay/pyguide/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Section{}, &models.Subject{}, &models.Content{}))
	return db
}

func setupService(t *testing.T) (*CatalogService, *realtime.MemoryBus) {
	bus := realtime.NewMemoryBus(64)
	t.Cleanup(func() { bus.Close() })
	return NewCatalogService(repository.NewContentRepository(setupTestDB(t)), bus, nil), bus
}

func TestCreateAssignsNextOrder(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.CreateSection(ctx, models.CreateSectionRequest{Title: "Basics"})
	require.NoError(t, err)
	second, err := svc.CreateSection(ctx, models.CreateSectionRequest{ID: "advanced", Title: "Advanced"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 0, first.Order)
	assert.Equal(t, "advanced", second.ID)
	assert.Equal(t, 1, second.Order)
}

func TestLearnersOnlySeePublished(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	section, err := svc.CreateSection(ctx, models.CreateSectionRequest{ID: "basics", Title: "Basics"})
	require.NoError(t, err)
	_, err = svc.CreateSubject(ctx, section.ID, models.CreateSubjectRequest{ID: "vars", Title: "Variables"})
	require.NoError(t, err)

	listed, err := svc.ListSections(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = svc.GetSection(ctx, "basics", false)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	require.NoError(t, svc.PublishSection(ctx, "basics", true))
	listed, err = svc.ListSections(ctx, false)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Subjects, "draft subject stays hidden")

	admin, err := svc.ListSections(ctx, true)
	require.NoError(t, err)
	assert.Len(t, admin[0].Subjects, 1)

	require.NoError(t, svc.PublishSubject(ctx, "basics", "vars", true))
	subject, err := svc.GetSubject(ctx, "basics", "vars", false)
	require.NoError(t, err)
	assert.True(t, subject.Published())
}

func TestCreateItemValidates(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.CreateSection(ctx, models.CreateSectionRequest{ID: "basics", Title: "Basics"})
	require.NoError(t, err)
	_, err = svc.CreateSubject(ctx, "basics", models.CreateSubjectRequest{ID: "vars", Title: "Variables"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		item     models.Item
		wantCode string
	}{
		{"valid mcq", &models.MultipleChoice{Question: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1, MaxPoints: 10}, ""},
		{"index out of range", &models.MultipleChoice{Question: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 2}, errors.CodeValidation},
		{"single option", &models.MultipleChoice{Question: "?", Options: []string{"only"}}, errors.CodeValidation},
		{"blank statement", &models.TrueFalse{Statement: "  "}, errors.CodeValidation},
		{"valid theory", &models.Theory{Title: "Intro", Body: "Variables hold values"}, ""},
		{"code without snippet", &models.Code{Language: "python"}, errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := svc.CreateItem(ctx, "basics", "vars", tt.item)
			if tt.wantCode != "" {
				assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, view.ID)
		})
	}

	items, err := svc.SubjectItems(ctx, "vars")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.TypeMCQ, items[0].Kind())
	assert.Equal(t, models.TypeTheory, items[1].Kind())
}

func TestUpdateAndReorderItems(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.CreateSection(ctx, models.CreateSectionRequest{ID: "basics", Title: "Basics"})
	require.NoError(t, err)
	_, err = svc.CreateSubject(ctx, "basics", models.CreateSubjectRequest{ID: "vars", Title: "Variables"})
	require.NoError(t, err)

	a, err := svc.CreateItem(ctx, "basics", "vars", &models.TrueFalse{ID: "a", Statement: "s", MaxPoints: 5})
	require.NoError(t, err)
	b, err := svc.CreateItem(ctx, "basics", "vars", &models.TrueFalse{ID: "b", Statement: "t", MaxPoints: 5})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, "basics", "vars", a.ID, &models.TrueFalse{Statement: "changed", Answer: true, MaxPoints: 8})
	require.NoError(t, err)

	require.NoError(t, svc.ReorderItems(ctx, "vars", []string{b.ID, a.ID}))
	items, err := svc.SubjectItems(ctx, "vars")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ItemID())
	assert.Equal(t, 8, models.MaxPoints(items[1]))

	byID, err := svc.ItemsByIDs(ctx, []string{"a", "ghost"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	_, err = svc.UpdateItem(ctx, "basics", "vars", "ghost", &models.TrueFalse{Statement: "x"})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	assert.True(t, errors.HasCode(svc.DeleteItem(ctx, "vars", "ghost"), errors.CodeNotFound))
}

func TestChangesArePublished(t *testing.T) {
	svc, bus := setupService(t)
	got := make(chan realtime.Event, 4)
	bus.Subscribe(func(e realtime.Event) { got <- e })

	_, err := svc.CreateSection(context.Background(), models.CreateSectionRequest{Title: "Basics"})
	require.NoError(t, err)

	e := <-got
	assert.Equal(t, realtime.EventContentChanged, e.Type)
	assert.Empty(t, e.UserID)
}
