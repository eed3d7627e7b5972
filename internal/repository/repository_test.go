package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Drim-Soft/planifika-users-api/internal/config"
	"github.com/Drim-Soft/planifika-users-api/internal/database"
	"github.com/Drim-Soft/planifika-users-api/internal/domain/model"
)

// setupTestDB запускает PostgreSQL, применяет оба набора миграций и создаёт
// таблицу справочника студентов. Все логические БД в одном контейнере.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("planifika_test"),
		postgres.WithUsername("planifika"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to stop container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	for _, name := range []string{config.DBPrimary, config.DBExtOrg} {
		db := config.DatabaseConfig{Name: name, URL: dsn, MaxConns: 4, ConnectTimeout: 20 * time.Second, Autosave: true}
		if err := database.Migrate(db, logger); err != nil {
			t.Fatalf("migrations for %s: %v", name, err)
		}
	}

	pool, err := database.Connect(ctx, config.DatabaseConfig{
		Name: config.DBPrimary, URL: dsn, MaxConns: 4, ConnectTimeout: 20 * time.Second,
	}, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, `
		CREATE TABLE usersiu (
			idusersiu      SERIAL PRIMARY KEY,
			name           VARCHAR(255),
			photourl       TEXT,
			supabaseuserid UUID UNIQUE
		)`)
	if err != nil {
		t.Fatalf("create usersiu: %v", err)
	}

	return pool
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

// --- UserRepository ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool, NewTxRunner(pool, true))

	sub := uuid.New()
	u := &model.User{
		Name:       "Ana Torres",
		PhotoURL:   strPtr("https://cdn.example.com/ana.png"),
		Status:     model.StatusActive,
		Type:       model.TypeDefault,
		ExternalID: &sub,
	}

	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if u.ID <= 0 {
		t.Fatalf("ID = %d, ожидается сгенерированный ID", u.ID)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt is not set")
	}

	got, err := repo.FindByExternalID(ctx, sub)
	if err != nil {
		t.Fatalf("FindByExternalID() ошибка: %v", err)
	}
	if got.ID != u.ID || got.Name != "Ana Torres" {
		t.Errorf("FindByExternalID() = %+v", got)
	}
	if got.ExternalID == nil || *got.ExternalID != sub {
		t.Errorf("ExternalID = %v, ожидается %s", got.ExternalID, sub)
	}

	// Тот же subject повторно
	dup := &model.User{Name: "Other", Status: model.StatusActive, Type: model.TypeDefault, ExternalID: &sub}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() duplicate = %v, ожидается ErrConflict", err)
	}

	// Save обновляет на месте
	got.Status = model.StatusDeleted
	got.Name = "Ana T."
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("Save() ошибка: %v", err)
	}
	reloaded, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID() ошибка: %v", err)
	}
	if reloaded.Status != model.StatusDeleted || reloaded.Name != "Ana T." {
		t.Errorf("after Save: status=%d name=%q", reloaded.Status, reloaded.Name)
	}
	if reloaded.ID != u.ID {
		t.Errorf("Save() changed id: %d -> %d", u.ID, reloaded.ID)
	}

	// Save с неизвестным ID
	ghost := &model.User{ID: 999999, Name: "ghost", Status: model.StatusActive, Type: model.TypeDefault}
	if err := repo.Save(ctx, ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("Save() unknown id = %v, ожидается ErrNotFound", err)
	}

	// Save без ID вставляет
	fresh := &model.User{Name: "Fresh", Status: model.StatusActive, Type: model.TypeAdmin}
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatalf("Save() insert ошибка: %v", err)
	}
	if fresh.ID == 0 {
		t.Error("Save() insert did not assign an id")
	}

	if _, err := repo.FindByID(ctx, 424242); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID() unknown = %v, ожидается ErrNotFound", err)
	}
	if _, err := repo.FindByExternalID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByExternalID() unknown = %v, ожидается ErrNotFound", err)
	}
}

func TestUserListAndCount(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool, NewTxRunner(pool, true))

	users := []*model.User{
		{Name: "a", Status: model.StatusActive, Type: model.TypeDefault, OrganizationID: intPtr(7)},
		{Name: "b", Status: model.StatusActive, Type: model.TypeAdmin, OrganizationID: intPtr(7)},
		{Name: "c", Status: model.StatusDeleted, Type: model.TypeDefault},
		{Name: "d", Status: model.StatusActive, Type: model.TypeStudent},
	}
	for _, u := range users {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create(%s) ошибка: %v", u.Name, err)
		}
	}

	active := model.StatusActive
	admin := model.TypeAdmin

	tests := []struct {
		name   string
		filter model.UserFilter
		want   int
	}{
		{"all", model.UserFilter{}, 4},
		{"active", model.UserFilter{Status: &active}, 3},
		{"admins", model.UserFilter{Type: &admin}, 1},
		{"organization", model.UserFilter{OrganizationID: intPtr(7)}, 2},
		{"active in organization", model.UserFilter{Status: &active, OrganizationID: intPtr(7)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := repo.Count(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Count() ошибка: %v", err)
			}
			if count != tt.want {
				t.Errorf("Count() = %d, ожидается %d", count, tt.want)
			}
			list, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() ошибка: %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("List() returned %d, ожидается %d", len(list), tt.want)
			}
		})
	}

	page, err := repo.List(ctx, model.UserFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() page ошибка: %v", err)
	}
	if len(page) != 2 || page[0].Name != "b" {
		t.Errorf("List() page = %d items, first %q; ожидается 2 starting at b", len(page), page[0].Name)
	}
}

// --- Autosave ---

func TestRunInTx_AutosaveKeepsTransactionUsable(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	err := NewTxRunner(pool, true).RunInTx(ctx, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `INSERT INTO ticketstatus (name) VALUES ('OPEN')`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO ticketstatus (name) VALUES ('OPEN')`)
		if !isUniqueViolation(err) {
			t.Errorf("duplicate insert = %v, ожидается нарушение уникальности", err)
		}
		// Неудачный запрос откатился только до своего savepoint.
		_, err = tx.Exec(ctx, `INSERT INTO ticketstatus (name) VALUES ('CLOSED')`)
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	statuses, err := NewTicketStatusRepository(pool).List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(statuses) != 2 {
		t.Errorf("statuses = %d, ожидается 2 (OPEN, CLOSED)", len(statuses))
	}
}

func TestRunInTx_WithoutAutosaveAborts(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	err := NewTxRunner(pool, false).RunInTx(ctx, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `INSERT INTO ticketstatus (name) VALUES ('OPEN')`); err != nil {
			return err
		}
		_, _ = tx.Exec(ctx, `INSERT INTO ticketstatus (name) VALUES ('OPEN')`)
		_, err := tx.Exec(ctx, `INSERT INTO ticketstatus (name) VALUES ('CLOSED')`)
		return err
	})
	if err == nil {
		t.Fatal("RunInTx() не вернул ошибку, ожидается прерванная транзакция")
	}

	statuses, err := NewTicketStatusRepository(pool).List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("statuses = %d, ожидается 0 after rollback", len(statuses))
	}
}

func TestRunInTx_AutosaveQueryAndQueryRow(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	err := NewTxRunner(pool, true).RunInTx(ctx, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `INSERT INTO ticketstatus (name) VALUES ('A'), ('B')`); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `SELECT name FROM ticketstatus ORDER BY name`)
		if err != nil {
			return err
		}
		var names []string
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				rows.Close()
				return err
			}
			names = append(names, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(names) != 2 {
			t.Errorf("names = %v, ожидается [A B]", names)
		}

		// Ошибка QueryRow не ломает транзакцию.
		var n int
		if err := tx.QueryRow(ctx, `SELECT 1/0`).Scan(&n); err == nil {
			t.Error("SELECT 1/0 не вернул ошибку")
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM ticketstatus`).Scan(&n)
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

// --- TicketRepository ---

func TestTicketCreateWithStatus(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(pool, NewTxRunner(pool, true))
	statuses := NewTicketStatusRepository(pool)

	first := &model.Ticket{RequesterID: 11, Title: "Login", Description: "cannot sign in"}
	if err := repo.CreateWithStatus(ctx, first, model.StatusPending); err != nil {
		t.Fatalf("CreateWithStatus() ошибка: %v", err)
	}
	second := &model.Ticket{RequesterID: 12, Title: "Photo", Description: "upload fails"}
	if err := repo.CreateWithStatus(ctx, second, model.StatusPending); err != nil {
		t.Fatalf("CreateWithStatus() second ошибка: %v", err)
	}

	if first.ID == 0 || second.ID == 0 {
		t.Fatalf("ids not assigned: %d, %d", first.ID, second.ID)
	}
	if first.StatusID != second.StatusID {
		t.Errorf("status ids differ: %d vs %d", first.StatusID, second.StatusID)
	}

	all, err := statuses.List(ctx)
	if err != nil {
		t.Fatalf("statuses.List() ошибка: %v", err)
	}
	if len(all) != 1 || all[0].Name != model.StatusPending {
		t.Errorf("catalog = %+v, ожидается единственный PENDING", all)
	}

	byName, err := statuses.GetByName(ctx, model.StatusPending)
	if err != nil || byName.ID != first.StatusID {
		t.Errorf("GetByName() = %+v, %v", byName, err)
	}
	if _, err := statuses.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() unknown = %v, ожидается ErrNotFound", err)
	}
}

func TestTicketCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTicketRepository(pool, NewTxRunner(pool, true))

	if _, err := pool.Exec(ctx, `INSERT INTO userdrimsoft (name) VALUES ('Support Agent')`); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	var closedID int
	if err := pool.QueryRow(ctx, `INSERT INTO ticketstatus (name) VALUES ('CLOSED') RETURNING idticketstatus`).Scan(&closedID); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	for i, requester := range []int{1, 1, 2} {
		tk := &model.Ticket{RequesterID: requester, Title: "t", Description: "d"}
		if err := repo.CreateWithStatus(ctx, tk, model.StatusPending); err != nil {
			t.Fatalf("CreateWithStatus(%d) ошибка: %v", i, err)
		}
	}

	byUser, err := repo.List(ctx, model.TicketFilter{RequesterID: intPtr(1)})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("List(requester=1) = %d, ожидается 2", len(byUser))
	}

	tk := byUser[0]
	tk.StatusID = closedID
	tk.Answer = strPtr("fixed")
	tk.ResolverID = intPtr(1)
	if err := repo.Update(ctx, tk); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}

	got, err := repo.Get(ctx, tk.ID)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.StatusID != closedID || got.Answer == nil || *got.Answer != "fixed" {
		t.Errorf("after Update: %+v", got)
	}

	byStatus, err := repo.List(ctx, model.TicketFilter{StatusID: &closedID})
	if err != nil || len(byStatus) != 1 {
		t.Errorf("List(status=closed) = %d, %v; ожидается 1", len(byStatus), err)
	}

	if err := repo.Delete(ctx, tk.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, tk.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice = %v, ожидается ErrNotFound", err)
	}
	if err := repo.Update(ctx, tk); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() deleted = %v, ожидается ErrNotFound", err)
	}
}

// --- Сотрудники и студенты ---

func TestStaffAndStudents(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	if _, err := pool.Exec(ctx, `INSERT INTO userdrimsoft (name, idrole) VALUES ('Agent', 1), ('Lead', 2)`); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	staff := NewStaffRepository(pool)
	list, err := staff.List(ctx, 10, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("staff.List() = %d, %v; ожидается 2", len(list), err)
	}
	if _, err := staff.GetByID(ctx, list[0].ID); err != nil {
		t.Errorf("staff.GetByID() ошибка: %v", err)
	}
	if _, err := staff.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("staff.GetByID() unknown = %v, ожидается ErrNotFound", err)
	}

	sub := uuid.New()
	if _, err := pool.Exec(ctx, `INSERT INTO usersiu (name, photourl, supabaseuserid) VALUES ('Luis', NULL, $1)`, sub); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	students := NewStudentRepository(pool)
	st, err := students.FindByExternalID(ctx, sub)
	if err != nil {
		t.Fatalf("FindByExternalID() ошибка: %v", err)
	}
	if st.Name != "Luis" || st.PhotoURL != nil || st.ExternalID != sub {
		t.Errorf("student = %+v", st)
	}
	if _, err := students.FindByExternalID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByExternalID() unknown = %v, ожидается ErrNotFound", err)
	}
}
