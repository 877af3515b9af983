package recommendations

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/hypeshelf/backend/internal/apperror"
	"github.com/hypeshelf/backend/internal/users"
	"gorm.io/gorm"
)

const (
	adminSubject = "subject-admin"
	aliceSubject = "subject-alice"
	bobSubject   = "subject-bob"
)

type testEnv struct {
	service *Service
	users   *users.Service
	db      *gorm.DB
	nowUnix int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "recommendations.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &Recommendation{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	env := &testEnv{db: db, nowUnix: 1700000000}
	clock := func() time.Time { return time.Unix(env.nowUnix, 0) }

	userService, err := users.NewService(users.ServiceConfig{
		Database:    db,
		Clock:       clock,
		AdminEmails: []string{"admin@example.com"},
	})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	env.users = userService

	service, err := NewService(ServiceConfig{
		Database:  db,
		Clock:     clock,
		Directory: userService,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	env.service = service

	ctx := context.Background()
	mustSync := func(subject, email, name string) {
		t.Helper()
		if _, err := userService.Sync(ctx, subject, email, name); err != nil {
			t.Fatalf("failed to sync user %s: %v", subject, err)
		}
	}
	mustSync(adminSubject, "admin@example.com", "Ada Admin")
	mustSync(aliceSubject, "alice@example.com", "Alice")
	mustSync(bobSubject, "bob@example.com", "")

	return env
}

func (env *testEnv) advance(seconds int64) {
	env.nowUnix += seconds
}

func (env *testEnv) mustCreate(t *testing.T, subject string, input Input) string {
	t.Helper()
	id, err := env.service.Create(context.Background(), subject, input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return id
}

func (env *testEnv) fetch(t *testing.T, id string) Recommendation {
	t.Helper()
	var record Recommendation
	if err := env.db.Where("id = ?", id).Take(&record).Error; err != nil {
		t.Fatalf("failed to reload record %s: %v", id, err)
	}
	return record
}

func (env *testEnv) mustPickCount(t *testing.T) int64 {
	t.Helper()
	count, err := env.service.StaffPickCount(context.Background())
	if err != nil {
		t.Fatalf("pick count failed: %v", err)
	}
	return count
}

func TestCreateInsertsUnpickedRecord(t *testing.T) {
	env := newTestEnv(t)

	id := env.mustCreate(t, aliceSubject, Input{
		Title:  "Inception",
		Genres: []string{"Action", "Sci-Fi", "Thriller"},
		Link:   "https://www.imdb.com/title/tt1375666/",
		Blurb:  "Dream heists.",
	})

	record := env.fetch(t, id)
	if record.IsStaffPick || record.IsArchived {
		t.Fatalf("new record must start unpicked and unarchived, got %#v", record)
	}
	if record.OwnerSubject != aliceSubject {
		t.Fatalf("expected caller ownership, got %q", record.OwnerSubject)
	}
	if record.CreatedAtSeconds != record.UpdatedAtSeconds {
		t.Fatalf("expected matching timestamps on creation")
	}
	if len(record.Genres) != 3 || record.Genres[0] != "Action" {
		t.Fatalf("expected genre order to be preserved, got %v", record.Genres)
	}
}

func TestCreateRejectsAnonymousAndUnknownCallers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.service.Create(ctx, "", validInput()); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for anonymous caller, got %v", err)
	}
	if _, err := env.service.Create(ctx, "never-synced", validInput()); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown caller, got %v", err)
	}
}

func TestCreateValidationFailureCommitsNothing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Create(context.Background(), aliceSubject, Input{
		Title:  "No Genres",
		Genres: nil,
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var count int64
	if err := env.db.Model(&Recommendation{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("validation failure must not partially commit, found %d records", count)
	}
}

func TestUpdateReplacesMutableFieldsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, aliceSubject, validInput())
	created := env.fetch(t, id)

	if _, err := env.service.MarkStaffPick(ctx, adminSubject, id); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	env.advance(60)
	err := env.service.Update(ctx, aliceSubject, id, Input{
		Title:  "The Shawshank Redemption (remaster)",
		Genres: []string{"Drama", "Other"},
		Blurb:  "Hope is a good thing.",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	updated := env.fetch(t, id)
	if updated.Title != "The Shawshank Redemption (remaster)" {
		t.Fatalf("expected title replacement, got %q", updated.Title)
	}
	if !updated.IsStaffPick {
		t.Fatalf("update must not clear the staff pick flag")
	}
	if updated.OwnerSubject != aliceSubject {
		t.Fatalf("update must not change ownership")
	}
	if updated.CreatedAtSeconds != created.CreatedAtSeconds {
		t.Fatalf("update must not alter creation time")
	}
	if updated.UpdatedAtSeconds <= created.UpdatedAtSeconds {
		t.Fatalf("expected updatedAt bump, got %d", updated.UpdatedAtSeconds)
	}
}

func TestUpdateRejectsNonOwnerWithoutAdminRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, aliceSubject, validInput())

	err := env.service.Update(ctx, bobSubject, id, validInput())
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-owner, got %v", err)
	}

	// admins may edit any record
	if err := env.service.Update(ctx, adminSubject, id, validInput()); err != nil {
		t.Fatalf("expected admin override to succeed: %v", err)
	}
}

func TestUpdateRejectsArchivedTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, aliceSubject, validInput())
	if err := env.service.Remove(ctx, aliceSubject, id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	err := env.service.Update(ctx, aliceSubject, id, validInput())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected conflict for archived target, got %v", err)
	}
}

func TestRemoveArchivesAndClearsPick(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, aliceSubject, validInput())
	if _, err := env.service.MarkStaffPick(ctx, adminSubject, id); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := env.service.Remove(ctx, aliceSubject, id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	record := env.fetch(t, id)
	if !record.IsArchived {
		t.Fatalf("expected soft delete to archive the record")
	}
	if record.IsStaffPick {
		t.Fatalf("archived record must not remain the staff pick")
	}

	var violations int64
	if err := env.db.Model(&Recommendation{}).
		Where("is_archived = ? AND is_staff_pick = ?", true, true).
		Count(&violations).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if violations != 0 {
		t.Fatalf("no record may be archived and picked at once")
	}
}

func TestRemoveRejectsNonOwner(t *testing.T) {
	env := newTestEnv(t)

	id := env.mustCreate(t, aliceSubject, validInput())
	err := env.service.Remove(context.Background(), bobSubject, id)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-owner delete, got %v", err)
	}
}

func TestMarkStaffPickSwapsPreviousPick(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.mustCreate(t, aliceSubject, Input{Title: "Parasite", Genres: []string{"Drama", "Thriller"}})
	env.advance(1)
	second := env.mustCreate(t, bobSubject, Input{Title: "Inception", Genres: []string{"Sci-Fi"}})

	previous, err := env.service.MarkStaffPick(ctx, adminSubject, first)
	if err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	if previous != nil {
		t.Fatalf("expected no previous pick on first mark, got %#v", previous)
	}

	previous, err = env.service.MarkStaffPick(ctx, adminSubject, second)
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if previous == nil || previous.ID != first || previous.Title != "Parasite" {
		t.Fatalf("expected replaced pick reference, got %#v", previous)
	}

	if env.fetch(t, first).IsStaffPick {
		t.Fatalf("previous pick must be cleared by the swap")
	}
	if !env.fetch(t, second).IsStaffPick {
		t.Fatalf("target must be picked after the swap")
	}
	if count := env.mustPickCount(t); count != 1 {
		t.Fatalf("single-pick invariant violated: %d picks", count)
	}
}

func TestMarkStaffPickSameTargetReturnsNoPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, aliceSubject, validInput())
	if _, err := env.service.MarkStaffPick(ctx, adminSubject, id); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	previous, err := env.service.MarkStaffPick(ctx, adminSubject, id)
	if err != nil {
		t.Fatalf("re-mark failed: %v", err)
	}
	if previous != nil {
		t.Fatalf("re-marking the current pick must not report a replacement, got %#v", previous)
	}
	if count := env.mustPickCount(t); count != 1 {
		t.Fatalf("single-pick invariant violated: %d picks", count)
	}
}

func TestMarkStaffPickAuthorizationAndStateFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owned := env.mustCreate(t, aliceSubject, validInput())

	// ownership never substitutes for the admin role on pick operations
	if _, err := env.service.MarkStaffPick(ctx, aliceSubject, owned); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for owner, got %v", err)
	}
	if _, err := env.service.MarkStaffPick(ctx, "", owned); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for anonymous, got %v", err)
	}
	if _, err := env.service.MarkStaffPick(ctx, adminSubject, "missing-id"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found for missing target, got %v", err)
	}

	if err := env.service.Remove(ctx, aliceSubject, owned); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := env.service.MarkStaffPick(ctx, adminSubject, owned); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected conflict for archived target, got %v", err)
	}
}

func TestUnmarkStaffPickIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, aliceSubject, validInput())
	if _, err := env.service.MarkStaffPick(ctx, adminSubject, id); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := env.service.UnmarkStaffPick(ctx, adminSubject, id); err != nil {
		t.Fatalf("unmark failed: %v", err)
	}
	if env.fetch(t, id).IsStaffPick {
		t.Fatalf("expected pick flag to be cleared")
	}

	// the flag write is unconditional, so the redundant unmark succeeds and
	// bumps updatedAt
	before := env.fetch(t, id).UpdatedAtSeconds
	env.advance(30)
	if err := env.service.UnmarkStaffPick(ctx, adminSubject, id); err != nil {
		t.Fatalf("redundant unmark must succeed: %v", err)
	}
	after := env.fetch(t, id)
	if after.IsStaffPick {
		t.Fatalf("record must stay unpicked")
	}
	if after.UpdatedAtSeconds <= before {
		t.Fatalf("expected updatedAt bump on redundant unmark")
	}
}

func TestUnmarkStaffPickFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, aliceSubject, validInput())
	if err := env.service.UnmarkStaffPick(ctx, aliceSubject, id); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-admin, got %v", err)
	}
	if err := env.service.UnmarkStaffPick(ctx, adminSubject, "missing-id"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAllOrdersStaffPickFirstThenNewest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.mustCreate(t, aliceSubject, Input{Title: "First", Genres: []string{"Drama"}})
	env.advance(1)
	second := env.mustCreate(t, aliceSubject, Input{Title: "Second", Genres: []string{"Drama"}})
	env.advance(1)
	third := env.mustCreate(t, aliceSubject, Input{Title: "Third", Genres: []string{"Drama"}})

	if _, err := env.service.MarkStaffPick(ctx, adminSubject, second); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	listed, err := env.service.ListAll(ctx, nil, FilterModeOR)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 records, got %d", len(listed))
	}
	got := []string{listed[0].ID, listed[1].ID, listed[2].ID}
	want := []string{second, third, first}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected ordering: got %v want %v", got, want)
		}
	}
}

func TestListAllAppliesGenreFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustCreate(t, aliceSubject, Input{Title: "A", Genres: []string{"Action", "Comedy"}})
	env.mustCreate(t, aliceSubject, Input{Title: "B", Genres: []string{"Action"}})
	env.mustCreate(t, aliceSubject, Input{Title: "C", Genres: []string{"Comedy"}})

	both, err := env.service.ListAll(ctx, []string{"Action", "Comedy"}, FilterModeAND)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(both) != 1 || both[0].Title != "A" {
		t.Fatalf("expected AND filter to keep only the dual-genre record, got %d", len(both))
	}

	either, err := env.service.ListAll(ctx, []string{"Action", "Comedy"}, FilterModeOR)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(either) != 3 {
		t.Fatalf("expected OR filter to keep all records, got %d", len(either))
	}
}

func TestListPublicLimitsToSixAndKeepsPickFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var oldest string
	for i := 0; i < 8; i++ {
		id := env.mustCreate(t, aliceSubject, Input{Title: "Movie", Genres: []string{"Drama"}})
		if i == 0 {
			oldest = id
		}
		env.advance(1)
	}
	// the pick is older than the six newest records but must still appear
	if _, err := env.service.MarkStaffPick(ctx, adminSubject, oldest); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	listed, err := env.service.ListPublic(ctx)
	if err != nil {
		t.Fatalf("list public failed: %v", err)
	}
	if len(listed) != 6 {
		t.Fatalf("expected public listing of 6, got %d", len(listed))
	}
	if listed[0].ID != oldest || !listed[0].IsStaffPick {
		t.Fatalf("expected the staff pick to lead the public listing")
	}
	for i := 2; i < len(listed); i++ {
		if listed[i].CreatedAtSeconds > listed[i-1].CreatedAtSeconds {
			t.Fatalf("expected newest-first ordering after the pick")
		}
	}
}

func TestListingExcludesArchivedRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	kept := env.mustCreate(t, aliceSubject, validInput())
	removed := env.mustCreate(t, aliceSubject, validInput())
	if err := env.service.Remove(ctx, aliceSubject, removed); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	listed, err := env.service.ListAll(ctx, nil, FilterModeOR)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != kept {
		t.Fatalf("expected archived record to be excluded, got %d records", len(listed))
	}
}

func TestEnrichmentResolvesOwnerIdentities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	named := env.mustCreate(t, aliceSubject, validInput())
	env.advance(1)
	anonymous := env.mustCreate(t, bobSubject, validInput())

	// seed-style record owned by the system sentinel
	env.advance(1)
	system := Recommendation{
		ID:               "system-rec",
		Title:            "Team Favorite",
		Genres:           []string{"Drama"},
		OwnerSubject:     SystemSubject,
		CreatedAtSeconds: env.nowUnix,
		UpdatedAtSeconds: env.nowUnix,
	}
	if err := env.db.Create(&system).Error; err != nil {
		t.Fatalf("failed to insert system record: %v", err)
	}

	// owner deleted at the provider after posting
	env.advance(1)
	orphan := env.mustCreate(t, aliceSubject, validInput())
	orphanOwner := "subject-ghost"
	if err := env.db.Model(&Recommendation{}).Where("id = ?", orphan).
		Update("owner_subject", orphanOwner).Error; err != nil {
		t.Fatalf("failed to reassign owner: %v", err)
	}

	listed, err := env.service.ListAll(ctx, nil, FilterModeOR)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	owners := make(map[string]Owner, len(listed))
	for _, item := range listed {
		owners[item.ID] = item.Owner
	}
	if owner := owners[named]; owner.Name != "Alice" || owner.Email != "alice@example.com" {
		t.Fatalf("unexpected named owner %#v", owner)
	}
	if owner := owners[anonymous]; owner.Name != "Anonymous" || owner.Email != "bob@example.com" {
		t.Fatalf("expected empty display name to degrade to Anonymous, got %#v", owner)
	}
	if owner := owners["system-rec"]; owner.Name != "HypeShelf Team" || owner.Email != "team@hypeshelf.com" {
		t.Fatalf("expected team identity for system records, got %#v", owner)
	}
	if owner := owners[orphan]; owner.Name != "Deleted User" || owner.Email != "" {
		t.Fatalf("expected deleted-user placeholder, got %#v", owner)
	}
}

func TestEnrichmentTreatsArchivedOwnerAsDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.mustCreate(t, bobSubject, validInput())
	if err := env.users.Archive(ctx, bobSubject); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	listed, err := env.service.ListAll(ctx, nil, FilterModeOR)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != id {
		t.Fatalf("listing must survive an archived owner")
	}
	if listed[0].Owner.Name != "Deleted User" {
		t.Fatalf("expected deleted-user placeholder, got %#v", listed[0].Owner)
	}
}

func TestGetByIDReturnsNilForMissingOrArchived(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	missing, err := env.service.GetByID(ctx, "missing-id")
	if err != nil || missing != nil {
		t.Fatalf("expected nil result for missing id, got %#v, %v", missing, err)
	}

	id := env.mustCreate(t, aliceSubject, validInput())
	if err := env.service.Remove(ctx, aliceSubject, id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	archived, err := env.service.GetByID(ctx, id)
	if err != nil || archived != nil {
		t.Fatalf("expected nil result for archived record, got %#v, %v", archived, err)
	}

	visible := env.mustCreate(t, aliceSubject, validInput())
	found, err := env.service.GetByID(ctx, visible)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found == nil || found.ID != visible || found.Owner.Name != "Alice" {
		t.Fatalf("expected enriched record, got %#v", found)
	}
}

func TestArchiveOwnedByClearsPicksAndArchives(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	picked := env.mustCreate(t, bobSubject, validInput())
	other := env.mustCreate(t, bobSubject, validInput())
	kept := env.mustCreate(t, aliceSubject, validInput())
	if _, err := env.service.MarkStaffPick(ctx, adminSubject, picked); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := env.service.ArchiveOwnedBy(ctx, bobSubject); err != nil {
		t.Fatalf("archive owned failed: %v", err)
	}

	for _, id := range []string{picked, other} {
		record := env.fetch(t, id)
		if !record.IsArchived || record.IsStaffPick {
			t.Fatalf("expected archived, unpicked record %s, got %#v", id, record)
		}
	}
	if env.fetch(t, kept).IsArchived {
		t.Fatalf("other owners' records must be untouched")
	}
	if count := env.mustPickCount(t); count != 0 {
		t.Fatalf("expected no picks after owner archive, got %d", count)
	}
}
