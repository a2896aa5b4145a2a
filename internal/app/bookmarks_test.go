package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
)

func newBookmarks(m *fakeMailer) (*app.BookmarkService, *app.RecordStore) {
	store := app.NewRecordStore(newKV(), 0)
	relay := app.NewRelayService(m, "inbox@x.io", "")
	return app.NewBookmarkService(store, relay), store
}

func TestBookmark_AddAndStatus(t *testing.T) {
	ctx := context.Background()
	m := &fakeMailer{configured: true}
	svc, store := newBookmarks(m)

	if svc.Status(ctx, 2) {
		t.Fatal("fresh store has no bookmarks")
	}
	res, err := svc.Add(ctx, 2, " guest@x.io ")
	if err != nil || !res.Bookmarked {
		t.Fatalf("got %+v %v", res, err)
	}
	if !svc.Status(ctx, 2) || m.count() != 2 {
		t.Fatalf("status or mail missing, sent=%d", m.count())
	}
	bs := store.GetBookmarks(ctx)
	if bs[0].Email != "guest@x.io" || time.Since(bs[0].Date) > time.Minute {
		t.Fatalf("bookmark: %+v", bs[0])
	}

	// same email again is kept
	_, _ = svc.Add(ctx, 2, "guest@x.io")
	if n := len(store.GetBookmarks(ctx)); n != 2 {
		t.Fatalf("want 2 bookmarks, got %d", n)
	}
}

func TestBookmark_AddRejects(t *testing.T) {
	ctx := context.Background()
	svc, store := newBookmarks(&fakeMailer{configured: true})

	_, err := svc.Add(ctx, 1, "no-at-sign")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := svc.Add(ctx, 77, "a@b.io"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown lodge: %v", err)
	}
	if len(store.GetBookmarks(ctx)) != 0 {
		t.Fatal("rejected adds must not write")
	}
}

func TestBookmark_MailFailureKeepsBookmark(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookmarks(&fakeMailer{configured: true, failTo: map[string]bool{"guest@x.io": true}})
	res, err := svc.Add(ctx, 1, "guest@x.io")
	if err != nil || !res.Bookmarked {
		t.Fatalf("got %+v %v", res, err)
	}
	if !svc.Status(ctx, 1) {
		t.Fatal("bookmark lost")
	}
}

func TestBookmark_RemoveAllForLodge(t *testing.T) {
	ctx := context.Background()
	svc, store := newBookmarks(&fakeMailer{})
	_ = store.SaveBookmarks(ctx, []domain.Bookmark{
		{LodgeID: 1, Email: "a@x.io"}, {LodgeID: 2, Email: "b@x.io"}, {LodgeID: 1, Email: "c@x.io"},
	})

	if err := svc.Remove(ctx, 1, false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("want confirmation error, got %v", err)
	}
	if err := svc.Remove(ctx, 1, true); err != nil {
		t.Fatal(err)
	}
	bs := store.GetBookmarks(ctx)
	if len(bs) != 1 || bs[0].LodgeID != 2 {
		t.Fatalf("left: %+v", bs)
	}
}
