package catalog

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/app/repository"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/entitlements"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/objectstore"
)

type memoryImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
}

func (m *memoryImages) Put(_ context.Context, data []byte, _, ext string) (*objectstore.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	key := fmt.Sprintf("courses/test/%d%s", m.seq, ext)
	m.objects[key] = data
	return &objectstore.StoredObject{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (m *memoryImages) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryImages) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type memoryListCache struct {
	courses     []models.Course
	ok          bool
	invalidated int
}

func (c *memoryListCache) Load(context.Context) ([]models.Course, bool, error) {
	return c.courses, c.ok, nil
}

func (c *memoryListCache) Store(_ context.Context, courses []models.Course) error {
	c.courses, c.ok = courses, true
	return nil
}

func (c *memoryListCache) Invalidate(context.Context) error {
	c.courses, c.ok = nil, false
	c.invalidated++
	return nil
}

var (
	admin   = &auth.AccountContext{AccountID: 1, Role: models.ROLE_ADMIN}
	student = &auth.AccountContext{AccountID: 2, Role: models.ROLE_USER}
)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	images *memoryImages
	cache  *memoryListCache
	ledger *entitlements.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	repos := repository.NewRepositories(db)
	f := &fixture{
		db:     db,
		images: &memoryImages{objects: map[string][]byte{}},
		cache:  &memoryListCache{},
		ledger: entitlements.NewLedger(db),
	}
	f.svc = NewService(repos.Course, f.ledger, f.images, f.cache)
	return f
}

func pngUpload(t *testing.T) *ImageUpload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(64, 32, color.White), imaging.PNG))
	return &ImageUpload{Filename: "cover.png", Data: buf.Bytes()}
}

func (f *fixture) create(t *testing.T, title string, price int64) *models.Course {
	t.Helper()
	c, err := f.svc.Create(context.Background(), admin, CourseInput{Title: title, Description: "About " + title, Price: price, Image: pngUpload(t)})
	require.NoError(t, err)
	return c
}

func TestCreateStoresImageAndCourse(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "Go Basics", 499)

	assert.NotZero(t, c.ID)
	assert.Equal(t, uint(1), c.CreatorID)
	assert.True(t, f.images.has(c.Image.Key))
	assert.Contains(t, c.Image.URL, c.Image.Key)
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestCreateChecksRoleBeforeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), student, CourseInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Create(context.Background(), nil, CourseInput{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	img := pngUpload(t)

	tests := []struct {
		name string
		in   CourseInput
	}{
		{name: "missing title", in: CourseInput{Description: "d", Price: 100, Image: img}},
		{name: "zero price", in: CourseInput{Title: "Title", Description: "d", Price: 0, Image: img}},
		{name: "negative price", in: CourseInput{Title: "Title", Description: "d", Price: -5, Image: img}},
		{name: "missing image", in: CourseInput{Title: "Title", Description: "d", Price: 100}},
		{name: "not an image", in: CourseInput{Title: "Title", Description: "d", Price: 100, Image: &ImageUpload{Filename: "x.png", Data: []byte("hello")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), admin, tt.in)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation), "got %v", err)
		})
	}
	assert.Empty(t, f.images.objects)
}

func TestListUsesCacheUntilMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, "First", 100)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, f.cache.ok)

	// a row written behind the service's back stays invisible until invalidation
	require.NoError(t, f.db.Create(&models.Course{Title: "Sneaky", Description: "d", Price: 1}).Error)
	list, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	f.create(t, "Second", 200)
	list, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrCourseMissing)
}

func TestUpdateReplacesImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.create(t, "Go Basics", 499)
	oldKey := c.Image.Key

	title := "Go Advanced"
	price := int64(999)
	updated, err := f.svc.Update(ctx, admin, c.ID, CoursePatch{Title: &title, Price: &price, Image: pngUpload(t)})
	require.NoError(t, err)

	assert.Equal(t, "Go Advanced", updated.Title)
	assert.Equal(t, int64(999), updated.Price)
	assert.Equal(t, "About Go Basics", updated.Description)
	assert.NotEqual(t, oldKey, updated.Image.Key)
	assert.False(t, f.images.has(oldKey))
	assert.True(t, f.images.has(updated.Image.Key))
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.create(t, "Go Basics", 499)

	_, err := f.svc.Update(ctx, student, c.ID, CoursePatch{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Update(ctx, admin, 12345, CoursePatch{})
	assert.ErrorIs(t, err, ErrCourseMissing)

	zero := int64(0)
	_, err = f.svc.Update(ctx, admin, c.ID, CoursePatch{Price: &zero})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestDeleteWithoutPurchasesIsHard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.create(t, "Go Basics", 499)

	require.NoError(t, f.svc.Delete(ctx, admin, c.ID))

	var count int64
	require.NoError(t, f.db.Unscoped().Model(&models.Course{}).Where("id = ?", c.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.False(t, f.images.has(c.Image.Key))
}

func TestDeleteWithPurchasesIsSoft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.create(t, "Go Basics", 499)
	_, err := f.ledger.Grant(ctx, entitlements.Grant{UserID: 2, CourseID: c.ID, PaymentID: "pi_1", Amount: 499, Currency: "inr", CourseTitle: c.Title})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, admin, c.ID))

	_, err = f.svc.Get(ctx, c.ID)
	assert.ErrorIs(t, err, ErrCourseMissing)
	assert.True(t, f.images.has(c.Image.Key))

	purchases, err := f.ledger.ListForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "Go Basics", purchases[0].Course.Title)
	assert.True(t, purchases[0].Course.IsDeleted())
}

func TestDeleteForbiddenAndMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.create(t, "Go Basics", 499)

	assert.ErrorIs(t, f.svc.Delete(ctx, student, c.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, admin, 4242), ErrCourseMissing)
}
