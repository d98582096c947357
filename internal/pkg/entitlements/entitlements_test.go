package entitlements

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/apperror"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database/dbtest"
)

func seedCourse(t *testing.T, db *gorm.DB, title string, price int64) *models.Course {
	t.Helper()
	c := &models.Course{Title: title, Description: "d", Price: price}
	require.NoError(t, db.Create(c).Error)
	return c
}

func TestGrantAndHasEntitlement(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	l := NewLedger(db)
	course := seedCourse(t, db, "Go", 499)

	owned, err := l.HasEntitlement(ctx, 1, course.ID)
	require.NoError(t, err)
	assert.False(t, owned)

	ent, err := l.Grant(ctx, Grant{UserID: 1, CourseID: course.ID, PaymentID: "pi_1", Amount: 499, Currency: "INR", CourseTitle: "Go"})
	require.NoError(t, err)
	assert.Equal(t, "inr", ent.Currency)

	owned, err = l.HasEntitlement(ctx, 1, course.ID)
	require.NoError(t, err)
	assert.True(t, owned)

	count, err := l.CountForCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGrantDuplicatePairReturnsExisting(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	l := NewLedger(db)
	course := seedCourse(t, db, "Go", 499)

	first, err := l.Grant(ctx, Grant{UserID: 1, CourseID: course.ID, PaymentID: "pi_1", Amount: 499, Currency: "inr"})
	require.NoError(t, err)

	again, err := l.Grant(ctx, Grant{UserID: 1, CourseID: course.ID, PaymentID: "pi_2", Amount: 499, Currency: "inr"})
	assert.ErrorIs(t, err, ErrAlreadyEntitled)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "pi_1", again.PaymentID)
}

func TestGrantConflictingPayment(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	l := NewLedger(db)
	a := seedCourse(t, db, "A", 100)
	b := seedCourse(t, db, "B", 100)

	_, err := l.Grant(ctx, Grant{UserID: 1, CourseID: a.ID, PaymentID: "pi_1", Amount: 100, Currency: "inr"})
	require.NoError(t, err)

	_, err = l.Grant(ctx, Grant{UserID: 1, CourseID: b.ID, PaymentID: "pi_1", Amount: 100, Currency: "inr"})
	assert.ErrorIs(t, err, ErrConflictingPayment)
	assert.Equal(t, 409, apperror.HTTPStatus(apperror.KindOf(err)))
}

func TestGrantValidation(t *testing.T) {
	l := NewLedger(dbtest.Open(t))
	_, err := l.Grant(context.Background(), Grant{UserID: 1, CourseID: 1, PaymentID: " ", Amount: 1})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = l.Grant(context.Background(), Grant{UserID: 1, CourseID: 1, PaymentID: "pi", Amount: 0})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestConcurrentGrantYieldsOneEntitlement(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	l := NewLedger(db)
	course := seedCourse(t, db, "Go", 499)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, already int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Grant(ctx, Grant{UserID: 9, CourseID: course.ID, PaymentID: fmt.Sprintf("pi_%d", i), Amount: 499, Currency: "inr"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperror.IsKind(err, apperror.KindAlreadyEntitled):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, already)

	count, err := l.CountForCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestListForUserIncludesSoftDeletedCourses(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	l := NewLedger(db)
	kept := seedCourse(t, db, "Kept", 100)
	gone := seedCourse(t, db, "Gone", 200)

	_, err := l.Grant(ctx, Grant{UserID: 3, CourseID: kept.ID, PaymentID: "pi_a", Amount: 100, Currency: "inr", CourseTitle: "Kept"})
	require.NoError(t, err)
	_, err = l.Grant(ctx, Grant{UserID: 3, CourseID: gone.ID, PaymentID: "pi_b", Amount: 200, Currency: "inr", CourseTitle: "Gone"})
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Course{}, gone.ID).Error)

	purchases, err := l.ListForUser(ctx, 3)
	require.NoError(t, err)
	require.Len(t, purchases, 2)

	titles := []string{purchases[0].Course.Title, purchases[1].Course.Title}
	assert.ElementsMatch(t, []string{"Kept", "Gone"}, titles)

	others, err := l.ListForUser(ctx, 4)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestGetByPaymentID(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	l := NewLedger(db)
	course := seedCourse(t, db, "Go", 499)

	_, err := l.Grant(ctx, Grant{UserID: 1, CourseID: course.ID, PaymentID: "pi_1", Amount: 499, Currency: "inr"})
	require.NoError(t, err)

	ent, err := l.GetByPaymentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, course.ID, ent.CourseID)

	_, err = l.GetByPaymentID(ctx, "pi_missing")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
