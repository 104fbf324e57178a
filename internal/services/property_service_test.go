package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"tvicl/server/internal/config"
	dbpkg "tvicl/server/internal/db"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*-[1-9][0-9]{3}$`)

func propertyTestConfig() *config.Config {
	return &config.Config{
		PropertyIDPrefix:       "TVICL",
		PropertyIDLength:       10,
		IDGenerationMaxRetries: 5,
		DefaultCountry:         "Nigeria",
		DefaultCurrency:        "NGN",
		AppName:                "TVICL",
		ClientURL:              "http://localhost:5173",
		PasswordMinLength:      6,
		VerificationTTL:        24 * time.Hour,
		ResetPasswordTTL:       time.Hour,
		JwtSecret:              "access-secret",
		JwtRefreshSecret:       "refresh-secret",
		JwtTTL:                 15 * time.Minute,
		JwtRefreshTTL:          7 * 24 * time.Hour,
	}
}

// steppingClock returns a clock that moves one second forward on every read, so
// documents written back to back never share a timestamp.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Now().UTC().Truncate(time.Second)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func setupPropertyService(t *testing.T, dbName string) (*mongo.Database, IPropertyService) {
	db := utils.SetupTestDB(t, dbName, dbpkg.PropertiesCollection, dbpkg.InteractionsCollection)
	require.NoError(t, dbpkg.EnsureIndexes(context.Background(), db))
	cfg := propertyTestConfig()
	svc := NewPropertyService(db, cfg, NewPropertyValidator(cfg, nil), NewIdentifierService(db, cfg))
	svc.(*propertyService).now = steppingClock()
	return db, svc
}

func TestPropertyService_CreateAssignsIdentifiers(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_create")
	ctx := context.Background()
	owner := utils.NewSixID()

	first, err := svc.CreateProperty(ctx, owner, validDetails())
	require.NoError(t, err)
	second, err := svc.CreateProperty(ctx, owner, validDetails())
	require.NoError(t, err)

	for _, p := range []*models.Property{first, second} {
		assert.Regexp(t, propertyIDPattern, p.PropertyID)
		assert.Regexp(t, slugPattern, p.Slug)
		assert.Contains(t, p.Slug, "cozy-2-bedroom-flat-lekki-phase-1-lagos-")
		assert.Equal(t, owner, p.Owner)
		assert.Equal(t, owner, p.LastModifiedBy)
		assert.Equal(t, models.ApprovalPending, p.ApprovalStatus)
		assert.Equal(t, "Nigeria", p.Address.Country)
		assert.False(t, p.IsDeleted)
	}
	assert.NotEqual(t, first.PropertyID, second.PropertyID)
	assert.NotEqual(t, first.ID, second.ID)

	found, err := svc.FindByPropertyID(ctx, first.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	found, err = svc.FindBySlug(ctx, second.Slug)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

func TestPropertyService_CreateSetsPrimaryMedia(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_media")
	in := validDetails()
	for _, u := range []string{"a", "b", "c"} {
		in.Media = append(in.Media, models.Media{URL: "https://cdn.example.com/" + u + ".jpg", Type: "image", Category: "exterior", SubCategory: "gallery"})
	}

	p, err := svc.CreateProperty(context.Background(), utils.NewSixID(), in)
	require.NoError(t, err)

	stored, err := svc.FindPropertyByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, stored.Media, 3)
	assert.True(t, stored.Media[0].IsPrimary)
	assert.False(t, stored.Media[1].IsPrimary)
	assert.False(t, stored.Media[2].IsPrimary)
}

func TestPropertyService_CreateRejectsInvalid(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_invalid")
	in := validDetails()
	in.Title = ""

	_, err := svc.CreateProperty(context.Background(), utils.SixID{}, in)
	fields := violationFields(t, err)
	assert.Contains(t, fields, "title")
	assert.Equal(t, "is required", fields["owner"])
}

type fixedIdentifiers struct {
	propertyID string
	slug       string
}

func (f fixedIdentifiers) NewPropertyID(context.Context) (string, error)  { return f.propertyID, nil }
func (f fixedIdentifiers) NewSlug(string, string, string) (string, error) { return f.slug, nil }

func TestPropertyService_CreateConflictAfterRetries(t *testing.T) {
	db := utils.SetupTestDB(t, "testdb_property_conflict", dbpkg.PropertiesCollection)
	require.NoError(t, dbpkg.EnsureIndexes(context.Background(), db))
	cfg := propertyTestConfig()
	cfg.IDGenerationMaxRetries = 2
	svc := NewPropertyService(db, cfg, NewPropertyValidator(cfg, nil), fixedIdentifiers{propertyID: "TVICLAAAAAAAAAA", slug: "fixed-slug-1000"})

	_, err := svc.CreateProperty(context.Background(), utils.NewSixID(), validDetails())
	require.NoError(t, err)
	_, err = svc.CreateProperty(context.Background(), utils.NewSixID(), validDetails())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPropertyService_UpdateRevalidatesAndStamps(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_update")
	ctx := context.Background()
	owner := utils.NewSixID()
	p, err := svc.CreateProperty(ctx, owner, validDetails())
	require.NoError(t, err)

	actor := utils.NewSixID()
	updated, err := svc.UpdateProperty(ctx, p.ID, actor, map[string]any{
		"title":     "Renovated Bungalow",
		"price":     map[string]any{"amount": 7_500_000.0},
		"owner":     utils.NewSixID().String(),
		"isDeleted": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renovated Bungalow", updated.Title)
	assert.Equal(t, 7_500_000.0, updated.Price.AmountValue())
	assert.Equal(t, "NGN", updated.Price.Currency)
	assert.Equal(t, actor, updated.LastModifiedBy)
	assert.Equal(t, owner, updated.Owner)
	assert.False(t, updated.IsDeleted)
	assert.Equal(t, p.PropertyID, updated.PropertyID)
	assert.Equal(t, p.Slug, updated.Slug)

	_, err = svc.UpdateProperty(ctx, p.ID, actor, map[string]any{"price": map[string]any{"amount": -5.0}})
	assert.Equal(t, "must be greater than or equal to 0", violationFields(t, err)["price.amount"])

	_, err = svc.UpdateProperty(ctx, p.ID, actor, map[string]any{"listingType": "For Sale"})
	assert.Contains(t, violationFields(t, err), "transactionType")

	_, err = svc.UpdateProperty(ctx, p.ID, actor, map[string]any{"bedrooms": "three"})
	assert.Contains(t, violationFields(t, err), "bedrooms")

	_, err = svc.UpdateProperty(ctx, utils.NewSixID(), actor, map[string]any{"title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPropertyService_UpdateRederivesTags(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_update_tags")
	ctx := context.Background()
	owner := utils.NewSixID()
	moved := map[string]any{"address": map[string]any{"area": "Wuse 2", "city": "Abuja", "state": "FCT"}}

	derived, err := svc.CreateProperty(ctx, owner, validDetails())
	require.NoError(t, err)
	require.Contains(t, derived.Tags, "lagos")

	updated, err := svc.UpdateProperty(ctx, derived.ID, owner, moved)
	require.NoError(t, err)
	assert.Contains(t, updated.Tags, "abuja")
	assert.Contains(t, updated.Tags, "wuse 2")
	assert.NotContains(t, updated.Tags, "lagos")
	assert.NotContains(t, updated.Tags, "lekki phase 1")

	in := validDetails()
	in.Tags = []string{"Waterfront", "Gated"}
	custom, err := svc.CreateProperty(ctx, owner, in)
	require.NoError(t, err)

	updated, err = svc.UpdateProperty(ctx, custom.ID, owner, moved)
	require.NoError(t, err)
	assert.Equal(t, []string{"waterfront", "gated"}, updated.Tags, "chosen tags survive unrelated edits")

	updated, err = svc.UpdateProperty(ctx, derived.ID, owner, map[string]any{"tags": []any{"Quiet"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"quiet"}, updated.Tags)
}

func TestPropertyService_SoftDeleteAndRestore(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_delete")
	ctx := context.Background()
	owner := utils.NewSixID()
	p, err := svc.CreateProperty(ctx, owner, validDetails())
	require.NoError(t, err)

	require.NoError(t, svc.SoftDeleteProperty(ctx, p.ID, owner))
	first, err := svc.FindPropertyAnyState(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, first.IsDeleted)
	require.NotNil(t, first.DeletedAt)

	require.NoError(t, svc.SoftDeleteProperty(ctx, p.ID, owner), "second delete is a no-op")
	second, err := svc.FindPropertyAnyState(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, second.IsDeleted)
	assert.True(t, first.DeletedAt.Equal(*second.DeletedAt))

	_, err = svc.FindPropertyByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.FindBySlug(ctx, p.Slug)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateProperty(ctx, p.ID, owner, map[string]any{"title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.IncrementCounter(ctx, p.ID, models.CounterViews), ErrNotFound)

	restored, err := svc.RestoreProperty(ctx, p.ID, owner)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)

	again, err := svc.RestoreProperty(ctx, p.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, restored.LastModifiedAt.UnixMilli(), again.LastModifiedAt.UnixMilli(), "restoring a live property changes nothing")
	assert.Equal(t, restored.Title, again.Title)

	assert.ErrorIs(t, svc.SoftDeleteProperty(ctx, utils.NewSixID(), owner), ErrNotFound)
	_, err = svc.RestoreProperty(ctx, utils.NewSixID(), owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPropertyService_SetVerificationTransitions(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_verification")
	ctx := context.Background()
	admin := utils.NewSixID()
	p, err := svc.CreateProperty(ctx, utils.NewSixID(), validDetails())
	require.NoError(t, err)

	approved, err := svc.SetVerification(ctx, p.ID, admin, true, "")
	require.NoError(t, err)
	assert.True(t, approved.IsVerified)
	assert.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)
	assert.NotNil(t, approved.VerifiedAt)
	assert.Empty(t, approved.RejectionReason)

	rejected, err := svc.SetVerification(ctx, p.ID, admin, false, "")
	require.NoError(t, err)
	assert.False(t, rejected.IsVerified)
	assert.Equal(t, models.ApprovalRejected, rejected.ApprovalStatus)
	assert.Equal(t, DefaultRejectionReason, rejected.RejectionReason)
	assert.Nil(t, rejected.VerifiedAt)

	rejected, err = svc.SetVerification(ctx, p.ID, admin, false, "Blurry photos")
	require.NoError(t, err)
	assert.Equal(t, "Blurry photos", rejected.RejectionReason)

	reapproved, err := svc.SetVerification(ctx, p.ID, admin, true, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, reapproved.ApprovalStatus)
	assert.Empty(t, reapproved.RejectionReason)

	_, err = svc.SetVerification(ctx, utils.NewSixID(), admin, true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPropertyService_ConcurrentIncrements(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_counters")
	ctx := context.Background()
	p, err := svc.CreateProperty(ctx, utils.NewSixID(), validDetails())
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.IncrementCounter(ctx, p.ID, models.CounterViews)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, svc.IncrementCounter(ctx, p.ID, models.CounterShares))
	stored, err := svc.FindPropertyByID(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, stored.Views)
	assert.EqualValues(t, 1, stored.Shares)

	var verr *ValidationError
	assert.ErrorAs(t, svc.IncrementCounter(ctx, p.ID, "likes"), &verr)
}

func TestPropertyService_ListByOwnerAndPending(t *testing.T) {
	_, svc := setupPropertyService(t, "testdb_property_lists")
	ctx := context.Background()
	owner := utils.NewSixID()

	var ids []utils.SixID
	for i := 0; i < 3; i++ {
		p, err := svc.CreateProperty(ctx, owner, validDetails())
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	_, err := svc.CreateProperty(ctx, utils.NewSixID(), validDetails())
	require.NoError(t, err)
	require.NoError(t, svc.SoftDeleteProperty(ctx, ids[0], owner))
	_, err = svc.SetVerification(ctx, ids[1], utils.NewSixID(), true, "")
	require.NoError(t, err)

	page, err := svc.ListByOwner(ctx, owner, Pagination{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.EqualValues(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[2], page.Items[0].ID)

	pending, err := svc.ListPendingApproval(ctx, Pagination{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending.Total)
	assert.Equal(t, DefaultPageSize, pending.Limit)
}
