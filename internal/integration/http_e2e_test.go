//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "lodge_finder/internal/adapters/http_server"
	"lodge_finder/internal/app"
	"lodge_finder/internal/domain"
	"lodge_finder/internal/shared"
	mysqlstore "lodge_finder/internal/storage/mysql"
)

type demoMailer struct{}

func (demoMailer) Configured() bool                                 { return false }
func (demoMailer) Send(ctx context.Context, m domain.Message) error { return nil }

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=lodges",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/lodges?parseTime=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHTTP_EndToEnd_AdminCreateThenBrowse(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()

	kv := mysqlstore.New(db)
	if err := kv.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := app.NewRecordStore(kv, 5<<20).WithSeed(app.SeedLodges())
	relay := app.NewRelayService(demoMailer{}, "inbox@lodges.test", "http://localhost")
	auth, err := server.NewAuth(shared.AdminConfig{Username: "admin", Password: "pw", JWTSecret: "e2e", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}

	srv := server.New(10*time.Second, false)
	srv.MountHandlers(&server.Handlers{
		Q:    app.NewQueryService(store, store, nil, app.DefaultPolicy),
		B:    app.NewBookmarkService(store, relay),
		A:    app.NewAdminService(store, relay),
		R:    relay,
		Auth: auth,
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	post := func(path, token string, body any) *http.Response {
		b, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		return res
	}

	// login
	res := post("/v1/admin/login", "", map[string]string{"username": "admin", "password": "pw"})
	var login struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(res.Body).Decode(&login)
	res.Body.Close()
	if login.Token == "" {
		t.Fatalf("login status %d", res.StatusCode)
	}

	// create
	res = post("/v1/admin/lodges", login.Token, map[string]any{
		"name": "Mulanje Retreat", "location": "Mulanje, Malawi", "price": 95, "lat": -15.95, "lon": 35.6,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", res.StatusCode)
	}
	res.Body.Close()

	// browse from Lilongwe: MWK prices, new lodge visible
	res, err = http.Get(ts.URL + "/v1/lodges?location=malawi&lat=-13.96&lon=33.78")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	var got app.Listing
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 1 || got.Currency.Code != "MWK" {
		t.Fatalf("listing = %+v", got)
	}
	if it := got.Items[0]; it.Name != "Mulanje Retreat" || it.Price.Amount != 166250 || it.Map == nil {
		t.Fatalf("item = %+v", it)
	}

	// persisted in mysql, seed included
	raw, ok, err := kv.Get(ctx, "lodges")
	if err != nil || !ok {
		t.Fatalf("kv get: ok=%v err=%v", ok, err)
	}
	var stored []domain.Lodge
	if err := json.Unmarshal(raw, &stored); err != nil || len(stored) != 4 {
		t.Fatalf("stored %d lodges, err %v", len(stored), err)
	}
}
