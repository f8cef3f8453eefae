package main

import (
	"context"
	"fmt"
	"os"
	"time"

	dbfs "github.com/coalops/minesafe/db"
	"github.com/coalops/minesafe/internal/config"
	"github.com/coalops/minesafe/internal/db"
	"github.com/coalops/minesafe/internal/repository/sqlite"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a demo workforce and a day of engagement events so the dashboard and
// predict endpoints have something to show.
func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}

	repo := sqlite.New(database, nil)
	issuer := scoring.NewIssuer(repo)
	updater := scoring.NewUpdater(repo, issuer, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash error: %v\n", err)
		os.Exit(1)
	}

	users := []models.User{
		{Name: "Asha Verma", Email: "asha@demo.mine", Role: models.RoleSupervisor},
		{Name: "Ravi Kumar", Email: "ravi@demo.mine", Role: models.RoleEmployee},
		{Name: "Sunil Patil", Email: "sunil@demo.mine", Role: models.RoleEmployee},
		{Name: "Meena Das", Email: "meena@demo.mine", Role: models.RoleWorker},
	}
	for i := range users {
		users[i].PasswordHash = string(hash)
		id, err := repo.CreateUser(ctx, &users[i])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Create user %s error: %v\n", users[i].Email, err)
			os.Exit(1)
		}
		users[i].ID = id
	}

	now := time.Now().UTC()

	// Ravi: a compliant day
	ravi := users[1]
	feed(ctx, updater, repo, &ravi, now, []demoEvent{
		{models.EventAppLogin, nil},
		{models.EventChecklistViewed, models.Metadata{"totalItems": 12}},
		{models.EventChecklistCompleted, nil},
		{models.EventPPEConfirmed, models.Metadata{"zone": "shaft-3"}},
		{models.EventVideoCompleted, models.Metadata{"durationSeconds": 900}},
		{models.EventQuizCompleted, models.Metadata{"score": 90}},
		{models.EventHazardReported, models.Metadata{"zone": "shaft-3", "category": "loose_rock"}},
	})

	// Sunil: a risky day
	sunil := users[2]
	feed(ctx, updater, repo, &sunil, now, []demoEvent{
		{models.EventAppLogin, nil},
		{models.EventChecklistViewed, models.Metadata{"totalItems": 12}},
		{models.EventPPESkipped, models.Metadata{"zone": "conveyor-1"}},
	})

	fmt.Println("Demo data seeded successfully.")
}

type demoEvent struct {
	typ  string
	meta models.Metadata
}

func feed(ctx context.Context, updater *scoring.Updater, repo *sqlite.SQLiteRepo, u *models.User, at time.Time, events []demoEvent) {
	for i, de := range events {
		e := &models.EngagementEvent{
			UserID:     u.ID,
			Type:       de.typ,
			Metadata:   de.meta,
			OccurredAt: at.Add(time.Duration(i) * time.Minute).UnixMilli(),
		}
		id, err := repo.CreateEvent(ctx, e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Create event error: %v\n", err)
			os.Exit(1)
		}
		e.ID = id
		if _, err := updater.ApplyEvent(ctx, u, e); err != nil {
			fmt.Fprintf(os.Stderr, "Apply event error: %v\n", err)
			os.Exit(1)
		}
	}
}
