package storage

import (
	"context"
	"errors"

	"github.com/julianstephens/streaktoot/internal/kvstore"
	"github.com/julianstephens/streaktoot/internal/models"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrHabitLimit    = errors.New("habit limit reached")
	ErrAmbiguousRef  = errors.New("habit reference matches more than one habit")
	ErrTokenNotFound = errors.New("no access token stored")
)

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error

	// Habits, kept as one ordered list
	AddHabit(ctx context.Context, title string) (models.Habit, error)
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	ResolveHabit(ctx context.Context, ref string) (models.Habit, error)
	GetAllHabits(ctx context.Context) ([]models.Habit, error)
	UpdateHabit(ctx context.Context, habit models.Habit) error
	DeleteHabit(ctx context.Context, id string) error
	MoveHabit(ctx context.Context, id string, delta int) error
	AssignShortcut(ctx context.Context, id string, slot int, action string) error
	HabitForSlot(ctx context.Context, slot int) (models.Habit, error)

	// OAuth client registrations, keyed by normalized instance
	GetClient(ctx context.Context, instance string) (models.ClientCredential, bool, error)
	SaveClient(ctx context.Context, instance string, cred models.ClientCredential) error

	// Access token fallback when the OS keyring is disabled
	GetAccessToken(ctx context.Context) (models.AccessToken, error)
	SaveAccessToken(ctx context.Context, token models.AccessToken) error
	DeleteAccessToken(ctx context.Context) error

	// Utils
	GetConfigPath() string
	Backend() kvstore.Store
}
