package system

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julianstephens/streaktoot/internal/cli"
	"github.com/julianstephens/streaktoot/internal/kvstore"
	"github.com/julianstephens/streaktoot/internal/models"
)

func sqliteDB(t *testing.T, ctx *cli.Context) *sql.DB {
	t.Helper()
	s, ok := ctx.Store.Backend().(*kvstore.SQLiteStore)
	if !ok {
		t.Fatal("expected SQLiteStore")
	}
	if s.DB() == nil {
		t.Fatal("database connection is nil")
	}
	return s.DB()
}

func TestDoctorCmd_HealthyDB(t *testing.T) {
	ctx, cleanup := setupTestDB(t)
	defer cleanup()

	if err := (&DoctorCmd{}).Run(ctx); err != nil {
		t.Errorf("doctor command failed on healthy database: %v", err)
	}
}

func TestDoctorCmd_Uninitialized(t *testing.T) {
	ctx, _, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&DoctorCmd{Offline: true}).Run(ctx); err == nil {
		t.Error("doctor should fail when the store was never initialized")
	}
}

func TestDoctorCmd_BrokenSchema(t *testing.T) {
	ctx, cleanup := setupTestDB(t)
	defer cleanup()

	db := sqliteDB(t, ctx)
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		t.Fatalf("failed to clear schema version: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (999)"); err != nil {
		t.Fatalf("failed to set schema version: %v", err)
	}

	if err := (&DoctorCmd{Offline: true}).Run(ctx); err == nil {
		t.Error("doctor should fail on a schema newer than the binary")
	}
}

func TestDoctorCmd_HabitConflicts(t *testing.T) {
	ctx, cleanup := setupTestDB(t)
	defer cleanup()
	bg := context.Background()

	habit, err := ctx.Store.AddHabit(bg, "Read")
	if err != nil {
		t.Fatalf("failed to add habit: %v", err)
	}
	habit.Records = models.Records{"2024-05-01": true}
	// TotalDone left at 0
	if err := ctx.Store.UpdateHabit(bg, habit); err != nil {
		t.Fatalf("failed to update habit: %v", err)
	}

	if err := (&DoctorCmd{Offline: true}).Run(ctx); err == nil {
		t.Error("doctor should fail on stale counters")
	}
}

func TestDoctorCmd_Credentials(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/verify_credentials" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"id":"1","username":"me","acct":"me"}`))
		} else {
			_, _ = w.Write([]byte(`{"error":"The access token is invalid"}`))
		}
	}))
	defer srv.Close()

	ctx, cleanup := setupTestDB(t)
	defer cleanup()
	bg := context.Background()

	settings, _ := ctx.Store.GetSettings(bg)
	settings.Instance = srv.URL
	if err := ctx.Store.SaveSettings(bg, settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	if err := ctx.Tokens.Save(bg, models.AccessToken{Instance: srv.URL, Token: "tok"}); err != nil {
		t.Fatalf("failed to save token: %v", err)
	}

	if err := (&DoctorCmd{}).Run(ctx); err != nil {
		t.Errorf("doctor failed with a valid token: %v", err)
	}

	status = http.StatusUnauthorized
	if err := (&DoctorCmd{}).Run(ctx); err == nil {
		t.Error("doctor should fail when the instance rejects the token")
	}
}

func TestMigrateCmd(t *testing.T) {
	ctx, cleanup := setupTestDB(t)
	defer cleanup()

	if err := (&MigrateCmd{}).Run(ctx); err != nil {
		t.Errorf("migrate on an up-to-date store failed: %v", err)
	}

	mem, memCleanup := newContext(t, "memory://")
	defer memCleanup()
	if err := (&MigrateCmd{}).Run(mem); err != nil {
		t.Errorf("migrate on a schemaless backend failed: %v", err)
	}
}
