package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/jgirmay/pyguide/internal/common/database"
	"github.com/jgirmay/pyguide/internal/common/errors"
	contentmodels "github.com/jgirmay/pyguide/internal/content/models"
	contentrepo "github.com/jgirmay/pyguide/internal/content/repository"
	contentservices "github.com/jgirmay/pyguide/internal/content/services"
	identitymodels "github.com/jgirmay/pyguide/internal/identity/models"
	identityrepo "github.com/jgirmay/pyguide/internal/identity/repository"
	identityservices "github.com/jgirmay/pyguide/internal/identity/services"
	learningmodels "github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/realtime"
	"github.com/jgirmay/pyguide/pkg/config"
	"github.com/jgirmay/pyguide/pkg/logger"
)

type options struct {
	AdminEmail    string
	AdminPassword string
	DemoUsers     int
	DemoPassword  string
}

var opts options

func init() {
	flag.StringVar(&opts.AdminEmail, "admin-email", "admin@pyguide.local", "Email of the bootstrap admin")
	flag.StringVar(&opts.AdminPassword, "admin-password", "change-me-please", "Password of the bootstrap admin")
	flag.IntVar(&opts.DemoUsers, "users", 5, "Number of demo learners to create")
	flag.StringVar(&opts.DemoPassword, "demo-password", "learner-password", "Password shared by demo learners")
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.L()

	db, err := database.InitWithType(cfg.Database.Type, cfg.Database.DSN, false)
	if err != nil {
		lg.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(db,
		&identitymodels.User{},
		&identitymodels.Role{},
		&identitymodels.AdminAudit{},
		&contentmodels.Section{},
		&contentmodels.Subject{},
		&contentmodels.Content{},
		&learningmodels.Attempt{},
		&learningmodels.QuestioningSession{},
		&learningmodels.SubjectProgress{},
	); err != nil {
		lg.Fatal("migration failed", zap.Error(err))
	}

	bus := realtime.NewMemoryBus(0)
	defer bus.Close()

	ctx := context.Background()
	users := identityrepo.NewUserRepository(db)
	tokens := identityservices.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	auth := identityservices.NewAuthService(users, tokens, bus, lg)

	adminID, err := ensureUser(ctx, auth, users, opts.AdminEmail, opts.AdminPassword, "Admin")
	if err != nil {
		lg.Fatal("seed admin", zap.Error(err))
	}
	if err := users.SetAdmin(ctx, "seed", adminID, true); err != nil {
		lg.Fatal("grant admin role", zap.Error(err))
	}
	lg.Info("admin ready", zap.String("email", opts.AdminEmail))

	for i := 1; i <= opts.DemoUsers; i++ {
		email := fmt.Sprintf("learner%d@pyguide.local", i)
		if _, err := ensureUser(ctx, auth, users, email, opts.DemoPassword, fmt.Sprintf("Learner %d", i)); err != nil {
			lg.Fatal("seed learner", zap.String("email", email), zap.Error(err))
		}
	}
	lg.Info("demo learners ready", zap.Int("count", opts.DemoUsers))

	catalog := contentservices.NewCatalogService(contentrepo.NewContentRepository(db), bus, lg)
	created, err := seedCatalog(ctx, catalog)
	if err != nil {
		lg.Fatal("seed catalog", zap.Error(err))
	}
	if created {
		lg.Info("python basics catalog created")
	} else {
		lg.Info("catalog already present, skipped")
	}
}

// ensureUser registers the account, or returns the existing id when the email is taken.
func ensureUser(ctx context.Context, auth *identityservices.AuthService, users *identityrepo.UserRepository, email, password, name string) (string, error) {
	resp, err := auth.Register(ctx, identitymodels.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: name,
	})
	if err == nil {
		return resp.User.ID, nil
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) || appErr.Code != errors.CodeConflict {
		return "", err
	}
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return existing.ID, nil
}

type seedSubject struct {
	id, title, description string
	minPoints              int
	items                  []contentmodels.Item
}

func seedCatalog(ctx context.Context, catalog *contentservices.CatalogService) (bool, error) {
	const sectionID = "python-basics"
	if _, err := catalog.GetSection(ctx, sectionID, true); err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, err
	}

	if _, err := catalog.CreateSection(ctx, contentmodels.CreateSectionRequest{
		ID:          sectionID,
		Title:       "Python Basics",
		Description: "Values, names and control flow.",
	}); err != nil {
		return false, err
	}

	for _, s := range pythonBasics() {
		if _, err := catalog.CreateSubject(ctx, sectionID, contentmodels.CreateSubjectRequest{
			ID:                s.id,
			Title:             s.title,
			Description:       s.description,
			MinPointsRequired: s.minPoints,
		}); err != nil {
			return false, fmt.Errorf("subject %s: %w", s.id, err)
		}
		for _, item := range s.items {
			if _, err := catalog.CreateItem(ctx, sectionID, s.id, item); err != nil {
				return false, fmt.Errorf("item in %s: %w", s.id, err)
			}
		}
		if err := catalog.PublishSubject(ctx, sectionID, s.id, true); err != nil {
			return false, err
		}
	}
	return true, catalog.PublishSection(ctx, sectionID, true)
}

func isNotFound(err error) bool {
	var appErr *errors.AppError
	return stderrors.As(err, &appErr) && appErr.Code == errors.CodeNotFound
}

func pythonBasics() []seedSubject {
	return []seedSubject{
		{
			id:          "variables",
			title:       "Variables",
			description: "Binding names to values.",
			items: []contentmodels.Item{
				&contentmodels.Theory{
					Title: "Names and values",
					Body:  "A variable is a name bound to an object. Assignment never copies the object.",
				},
				&contentmodels.Code{
					Title:    "Assignment",
					Language: "python",
					Snippet:  "greeting = \"hello\"\ncount = 3\nprint(greeting * count)",
				},
				&contentmodels.MultipleChoice{
					Title:            "Valid names",
					Question:         "Which of these is a valid Python variable name?",
					Options:          []string{"2nd_place", "second-place", "second_place", "class"},
					CorrectIndex:     2,
					Explanation:      "Names cannot start with a digit, contain hyphens or be keywords.",
					MaxPoints:        10,
					TimeLimitSeconds: 30,
				},
				&contentmodels.TrueFalse{
					Title:            "Dynamic typing",
					Statement:        "A name bound to an int can later be bound to a str.",
					Answer:           true,
					MaxPoints:        10,
					TimeLimitSeconds: 20,
				},
				&contentmodels.MultipleChoice{
					Title:        "Multiple assignment",
					Question:     "After `a, b = 1, 2` then `a, b = b, a`, what is a?",
					Options:      []string{"1", "2", "(2, 1)", "an error"},
					CorrectIndex: 1,
					MaxPoints:    10,
				},
			},
		},
		{
			id:          "conditionals",
			title:       "Conditionals",
			description: "Branching with if, elif and else.",
			minPoints:   20,
			items: []contentmodels.Item{
				&contentmodels.Theory{
					Title: "Truthiness",
					Body:  "Empty containers, zero and None are falsy. Everything else is truthy.",
				},
				&contentmodels.TrueFalse{
					Title:     "Empty list",
					Statement: "`if []:` executes its body.",
					Answer:    false,
					MaxPoints: 10,
				},
				&contentmodels.MultipleChoice{
					Title:            "elif",
					Question:         "How many branches of an if/elif/else chain run at most?",
					Options:          []string{"0", "1", "all matching", "2"},
					CorrectIndex:     1,
					MaxPoints:        10,
					TimeLimitSeconds: 20,
				},
			},
		},
		{
			id:          "loops",
			title:       "Loops",
			description: "Iterating with for and while.",
			minPoints:   40,
			items: []contentmodels.Item{
				&contentmodels.Code{
					Title:    "range",
					Language: "python",
					Snippet:  "for i in range(3):\n    print(i)",
				},
				&contentmodels.MultipleChoice{
					Title:        "range bounds",
					Question:     "What does `list(range(2, 5))` return?",
					Options:      []string{"[2, 3, 4, 5]", "[2, 3, 4]", "[3, 4, 5]", "[2, 5]"},
					CorrectIndex: 1,
					MaxPoints:    10,
				},
				&contentmodels.TrueFalse{
					Title:       "for/else",
					Statement:   "The else block of a for loop runs when the loop ends without break.",
					Answer:      true,
					Explanation: "else on a loop means no break happened.",
					MaxPoints:   10,
				},
			},
		},
	}
}
