package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
)

func newAdmin(t *testing.T) (*app.AdminService, *app.RecordStore, *fakeMailer) {
	t.Helper()
	store := app.NewRecordStore(newKV(), 0)
	m := &fakeMailer{configured: true}
	relay := app.NewRelayService(m, "inbox@lodgefinder.test", "")
	return app.NewAdminService(store, relay), store, m
}

func upload(name, body string) app.ImageInput {
	return app.ImageInput{
		Filename:    name,
		ContentType: "image/png",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func TestCreate_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAdmin(t)

	if err := svc.Delete(ctx, 2, true); err != nil {
		t.Fatal(err)
	}
	l, err := svc.CreateOrUpdate(ctx, app.LodgeForm{Name: ptr("Dune Camp"), Location: ptr("Namib"), Price: ptr("180")})
	if err != nil {
		t.Fatal(err)
	}
	if l.ID != 4 {
		t.Fatalf("want id 4, got %d", l.ID)
	}
	if l.Image.String() != domain.DefaultImage || l.Safety != 5 || l.Discount != 0 {
		t.Fatalf("defaults: %+v", l)
	}
	if n := len(store.GetLodges(ctx)); n != 3 {
		t.Fatalf("want 3 lodges, got %d", n)
	}
}

func TestCreate_EmptyStoreStartsAtOne(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAdmin(t)
	_ = store.SaveLodges(ctx, []domain.Lodge{})

	l, err := svc.CreateOrUpdate(ctx, app.LodgeForm{Name: ptr("A"), Location: ptr("B"), Price: ptr("0")})
	if err != nil || l.ID != 1 {
		t.Fatalf("got %+v %v", l, err)
	}
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		form  app.LodgeForm
		field string
	}{
		{"missing price", app.LodgeForm{Name: ptr("A"), Location: ptr("B")}, "price"},
		{"text price", app.LodgeForm{Name: ptr("A"), Location: ptr("B"), Price: ptr("cheap")}, "price"},
		{"negative price", app.LodgeForm{Name: ptr("A"), Location: ptr("B"), Price: ptr("-1")}, "price"},
		{"blank name", app.LodgeForm{Name: ptr("  "), Location: ptr("B"), Price: ptr("10")}, "name"},
		{"no location", app.LodgeForm{Name: ptr("A"), Price: ptr("10")}, "location"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc, store, _ := newAdmin(t)
			before := store.GetLodges(ctx)
			_, err := svc.CreateOrUpdate(ctx, c.form)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != c.field {
				t.Fatalf("want %s validation error, got %v", c.field, err)
			}
			if len(store.GetLodges(ctx)) != len(before) {
				t.Fatalf("store touched")
			}
		})
	}
}

func TestCreate_CoercesTextFields(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAdmin(t)
	l, err := svc.CreateOrUpdate(ctx, app.LodgeForm{
		Name:      ptr("Lake House"),
		Location:  ptr("Malawi"),
		Price:     ptr("120,50"),
		Amenities: ptr(" Wifi, ,Kayaks ,"),
		Safety:    ptr("n/a"),
		Discount:  ptr("150"),
		Lat:       ptr("-13.5"),
		Lon:       ptr(""),
	})
	if err != nil {
		t.Fatal(err)
	}
	if l.Price != 120.5 || l.Safety != 5 || l.Discount != 100 {
		t.Fatalf("numbers: %+v", l)
	}
	if len(l.Amenities) != 2 || l.Amenities[0] != "Wifi" || l.Amenities[1] != "Kayaks" {
		t.Fatalf("amenities: %q", l.Amenities)
	}
	if l.Lat == nil || *l.Lat != -13.5 || l.Lon != nil || l.Coords() != nil {
		t.Fatalf("coords: %v %v", l.Lat, l.Lon)
	}
}

func TestUpdate_RetainsImageUnlessReplaced(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAdmin(t)

	id := int64(1)
	l, err := svc.CreateOrUpdate(ctx, app.LodgeForm{ID: &id, Price: ptr("500")})
	if err != nil {
		t.Fatal(err)
	}
	if l.Name != "Alpine Sanctuary" || l.Price != 500 || l.Image.Kind != domain.ImageLocal || l.Lat == nil {
		t.Fatalf("merge lost fields: %+v", l)
	}

	l, err = svc.CreateOrUpdate(ctx, app.LodgeForm{ID: &id, Image: ptr(upload("a.png", "PNGDATA"))})
	if err != nil {
		t.Fatal(err)
	}
	if l.Image.Kind != domain.ImageEmbedded || !bytes.Equal(l.Image.Data, []byte("PNGDATA")) {
		t.Fatalf("image not replaced: %+v", l.Image)
	}
	if !strings.HasPrefix(store.GetLodges(ctx)[0].Image.String(), "data:image/png;base64,") {
		t.Fatalf("persisted form: %s", store.GetLodges(ctx)[0].Image.String())
	}
	if l.ID != 1 {
		t.Fatalf("id changed: %d", l.ID)
	}
}

func TestUpdate_InvalidSuppliedPriceRejected(t *testing.T) {
	svc, _, _ := newAdmin(t)
	id := int64(2)
	_, err := svc.CreateOrUpdate(context.Background(), app.LodgeForm{ID: &id, Price: ptr("")})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestUpdate_UnknownIDLeavesCollection(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAdmin(t)
	before := store.GetLodges(ctx)

	id := int64(999)
	_, err := svc.CreateOrUpdate(ctx, app.LodgeForm{ID: &id, Name: ptr("N"), Location: ptr("L"), Price: ptr("1")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	after := store.GetLodges(ctx)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("collection changed: %d -> %d lodges", len(before), len(after))
	}

	// the next create still gets max+1
	l, err := svc.CreateOrUpdate(ctx, app.LodgeForm{Name: ptr("N"), Location: ptr("L"), Price: ptr("1")})
	if err != nil || l.ID != 4 {
		t.Fatalf("got %+v %v", l, err)
	}
}

func TestGallery_OrderPreservedUnderParallelEncoding(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAdmin(t)
	// later items finish first
	svc.WithEncoder(func(ctx context.Context, in app.ImageInput) (domain.ImageRef, error) {
		delay := map[string]time.Duration{"a": 30, "b": 20, "c": 10, "d": 0}[in.Filename]
		time.Sleep(delay * time.Millisecond)
		return domain.Remote("https://img.test/" + in.Filename), nil
	})

	id := int64(3)
	l, err := svc.CreateOrUpdate(ctx, app.LodgeForm{ID: &id, Gallery: []app.ImageInput{
		{Filename: "a"}, {Filename: "b"}, {Filename: "c"}, {Filename: "d"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, g := range l.Gallery {
		got = append(got, g.String())
	}
	want := "https://img.test/a https://img.test/b https://img.test/c https://img.test/d"
	if strings.Join(got, " ") != want {
		t.Fatalf("order: %v", got)
	}
}

func TestGallery_OneFailureAbortsSave(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAdmin(t)
	var calls atomic.Int32
	svc.WithEncoder(func(ctx context.Context, in app.ImageInput) (domain.ImageRef, error) {
		calls.Add(1)
		if in.Filename == "bad" {
			return domain.ImageRef{}, errors.New("decode failed")
		}
		return domain.Remote("https://img.test/" + in.Filename), nil
	})
	before := store.GetLodges(ctx)

	id := int64(1)
	_, err := svc.CreateOrUpdate(ctx, app.LodgeForm{ID: &id, Name: ptr("Renamed"), Gallery: []app.ImageInput{
		{Filename: "ok"}, {Filename: "bad"},
	}})
	if err == nil {
		t.Fatal("want error")
	}
	after := store.GetLodges(ctx)
	if after[0].Name != before[0].Name || len(after[0].Gallery) != 0 {
		t.Fatalf("store changed: %+v", after[0])
	}
}

func TestEncodeImage(t *testing.T) {
	ctx := context.Background()
	ref, err := app.EncodeImage(ctx, app.ImageInput{Ref: "https://cdn.test/x.jpg"})
	if err != nil || ref.Kind != domain.ImageRemote {
		t.Fatalf("ref: %+v %v", ref, err)
	}
	ref, err = app.EncodeImage(ctx, app.ImageInput{
		Filename: "x.gif",
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("GIF89a....")), nil },
	})
	if err != nil || ref.MIME != "image/gif" {
		t.Fatalf("sniffed mime: %+v %v", ref, err)
	}
	if _, err := app.EncodeImage(ctx, upload("empty.png", "")); err == nil {
		t.Fatal("empty upload must fail")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAdmin(t)
	_ = store.SaveBookmarks(ctx, []domain.Bookmark{{LodgeID: 2, Email: "a@b.io"}})

	if err := svc.Delete(ctx, 2, false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("want confirmation error, got %v", err)
	}
	if err := svc.Delete(ctx, 99, true); err != nil {
		t.Fatalf("missing id: %v", err)
	}
	if len(store.GetLodges(ctx)) != 3 {
		t.Fatal("missing id changed the collection")
	}
	if err := svc.Delete(ctx, 2, true); err != nil {
		t.Fatal(err)
	}
	if len(store.GetLodges(ctx)) != 2 || len(store.GetBookmarks(ctx)) != 1 {
		t.Fatal("delete must not cascade to bookmarks")
	}
}

func TestList_AdminThumbs(t *testing.T) {
	svc, _, _ := newAdmin(t)
	l := svc.List(context.Background())
	if l.Total != 3 || l.Rows[0].Thumb != "../images/background.png" {
		t.Fatalf("list: %+v", l)
	}
}

func TestBroadcastToSubscribers(t *testing.T) {
	ctx := context.Background()
	svc, store, m := newAdmin(t)

	res, err := svc.BroadcastToSubscribers(ctx, 1, "Winter sale", "20% off")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || res.Success {
		t.Fatalf("no subscribers should fail validation, got %+v %v", res, err)
	}

	_ = store.SaveBookmarks(ctx, []domain.Bookmark{
		{LodgeID: 1, Email: "a@x.io"}, {LodgeID: 2, Email: "b@x.io"}, {LodgeID: 1, Email: "c@x.io"},
	})
	res, err = svc.BroadcastToSubscribers(ctx, 1, "Winter sale", "20% off")
	if err != nil || !res.Success {
		t.Fatalf("got %+v %v", res, err)
	}
	if m.count() != 2 || res.Message != "Broadcast sent successfully to 2 subscriber(s)!" {
		t.Fatalf("sent %d: %s", m.count(), res.Message)
	}
	if _, err := svc.BroadcastToSubscribers(ctx, 9, "s", "m"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown lodge: %v", err)
	}
}

func TestMapLodgeRecord(t *testing.T) {
	f := app.MapLodgeRecord(map[string]any{
		"lodgeId":    "12",
		"title":      "Baobab",
		"address":    map[string]any{"city": "Mzuzu"},
		"price_usd":  95.0,
		"facilities": []any{"Pool", "Bar"},
		"photos":     []any{map[string]any{"url": "https://p/1.jpg"}, "images/2.jpg"},
		"latitude":   "-11,46",
	})
	if f.ID == nil || *f.ID != 12 || *f.Name != "Baobab" || *f.Location != "Mzuzu" || *f.Price != "95" {
		t.Fatalf("form: %+v", f)
	}
	if *f.Amenities != "Pool, Bar" || len(f.Gallery) != 2 || f.Gallery[1].Ref != "images/2.jpg" {
		t.Fatalf("lists: %+v", f)
	}
	if f.Lon != nil || *f.Lat != "-11,46" {
		t.Fatalf("coords: %v %v", f.Lat, f.Lon)
	}
}
