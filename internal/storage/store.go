package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/streaktoot/internal/constants"
	"github.com/julianstephens/streaktoot/internal/kvstore"
	"github.com/julianstephens/streaktoot/internal/logger"
	"github.com/julianstephens/streaktoot/internal/models"
)

// Store implements Provider on top of a key-value backend. Each logical
// record lives under one key as JSON; updates are read-modify-write with
// last-writer-wins semantics.
type Store struct {
	kv  kvstore.Store
	now func() time.Time
}

var _ Provider = (*Store)(nil)

func New(kv kvstore.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Open resolves location to a backend and wraps it.
func Open(location string) (*Store, error) {
	kv, err := kvstore.Open(location)
	if err != nil {
		return nil, err
	}
	return New(kv), nil
}

func (s *Store) Init() error {
	if err := s.kv.Init(); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := s.kv.Get(ctx, constants.KeySettings); errors.Is(err, kvstore.ErrNotFound) {
		if err := s.SaveSettings(ctx, models.DefaultSettings()); err != nil {
			return fmt.Errorf("failed to save default settings: %w", err)
		}
	} else if err != nil {
		return err
	}
	return nil
}

func (s *Store) Load() error  { return s.kv.Load() }
func (s *Store) Close() error { return s.kv.Close() }

func (s *Store) GetConfigPath() string {
	return s.kv.Location()
}

// Backend is the key-value store underneath.
func (s *Store) Backend() kvstore.Store {
	return s.kv
}

func (s *Store) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, data)
}

// Settings

func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	if _, err := s.getJSON(ctx, constants.KeySettings, &settings); err != nil {
		return models.Settings{}, err
	}
	models.ApplyDefaultSettings(&settings)
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	return s.setJSON(ctx, constants.KeySettings, settings)
}

// Habits

func (s *Store) GetAllHabits(ctx context.Context) ([]models.Habit, error) {
	var habits []models.Habit
	if _, err := s.getJSON(ctx, constants.KeyHabits, &habits); err != nil {
		return nil, err
	}
	for i := range habits {
		if habits[i].Records == nil {
			habits[i].Records = models.Records{}
		}
	}
	return habits, nil
}

func (s *Store) saveHabits(ctx context.Context, habits []models.Habit) error {
	if habits == nil {
		habits = []models.Habit{}
	}
	return s.setJSON(ctx, constants.KeyHabits, habits)
}

// AddHabit appends a new habit. While fewer than MaxShortcutSlots habits
// exist the new one takes the first free shortcut slot with the check-in
// action.
func (s *Store) AddHabit(ctx context.Context, title string) (models.Habit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Habit{}, fmt.Errorf("habit title cannot be empty")
	}

	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	if len(habits) >= constants.MaxHabits {
		return models.Habit{}, fmt.Errorf("%w: at most %d habits", ErrHabitLimit, constants.MaxHabits)
	}

	habit := models.Habit{
		ID:        uuid.New().String(),
		Title:     title,
		Records:   models.Records{},
		CreatedAt: s.now().UTC(),
	}
	if len(habits) < constants.MaxShortcutSlots {
		if slot := firstFreeSlot(habits); slot > 0 {
			habit.ShortcutSlot = slot
			habit.ShortcutAction = constants.ShortcutActionCheckIn
		}
	}

	habits = append(habits, habit)
	if err := s.saveHabits(ctx, habits); err != nil {
		return models.Habit{}, err
	}
	logger.Debug("Habit added", "id", habit.ID, "slot", habit.ShortcutSlot)
	return habit, nil
}

func firstFreeSlot(habits []models.Habit) int {
	used := map[int]bool{}
	for _, h := range habits {
		used[h.ShortcutSlot] = true
	}
	for slot := 1; slot <= constants.MaxShortcutSlots; slot++ {
		if !used[slot] {
			return slot
		}
	}
	return 0
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	i := models.FindHabit(habits, id)
	if i < 0 {
		return models.Habit{}, fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}
	return habits[i], nil
}

// ResolveHabit finds a habit by exact id, unique id prefix, 1-based list
// position or case-insensitive title.
func (s *Store) ResolveHabit(ctx context.Context, ref string) (models.Habit, error) {
	ref = strings.TrimSpace(ref)
	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	if ref == "" {
		return models.Habit{}, fmt.Errorf("%w: empty reference", ErrHabitNotFound)
	}

	if i := models.FindHabit(habits, ref); i >= 0 {
		return habits[i], nil
	}

	if pos, err := strconv.Atoi(ref); err == nil && pos >= 1 && pos <= len(habits) {
		return habits[pos-1], nil
	}

	var matches []models.Habit
	for _, h := range habits {
		if strings.EqualFold(h.Title, ref) {
			matches = append(matches, h)
		}
	}
	if len(matches) == 0 {
		for _, h := range habits {
			if strings.HasPrefix(h.ID, ref) {
				matches = append(matches, h)
			}
		}
	}

	switch len(matches) {
	case 0:
		return models.Habit{}, fmt.Errorf("%w: %s", ErrHabitNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Habit{}, fmt.Errorf("%w: %s", ErrAmbiguousRef, ref)
	}
}

func (s *Store) UpdateHabit(ctx context.Context, habit models.Habit) error {
	if err := habit.Validate(); err != nil {
		return err
	}
	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return err
	}
	i := models.FindHabit(habits, habit.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrHabitNotFound, habit.ID)
	}
	habits[i] = habit
	return s.saveHabits(ctx, habits)
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return err
	}
	i := models.FindHabit(habits, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}
	habits = append(habits[:i], habits[i+1:]...)
	return s.saveHabits(ctx, habits)
}

// MoveHabit shifts a habit delta positions in the list, clamped to the ends.
func (s *Store) MoveHabit(ctx context.Context, id string, delta int) error {
	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return err
	}
	from := models.FindHabit(habits, id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}
	to := from + delta
	if to < 0 {
		to = 0
	}
	if to > len(habits)-1 {
		to = len(habits) - 1
	}
	if to == from {
		return nil
	}

	habit := habits[from]
	habits = append(habits[:from], habits[from+1:]...)
	habits = append(habits[:to], append([]models.Habit{habit}, habits[to:]...)...)
	return s.saveHabits(ctx, habits)
}

// AssignShortcut binds slot to the habit, taking it away from any other habit.
// Slot 0 clears the habit's shortcut.
func (s *Store) AssignShortcut(ctx context.Context, id string, slot int, action string) error {
	if slot < 0 || slot > constants.MaxShortcutSlots {
		return fmt.Errorf("shortcut slot must be between 1 and %d", constants.MaxShortcutSlots)
	}
	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return err
	}
	i := models.FindHabit(habits, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}

	if slot == 0 {
		habits[i].ShortcutSlot = 0
		habits[i].ShortcutAction = ""
		return s.saveHabits(ctx, habits)
	}

	if action == "" {
		action = constants.ShortcutActionCheckIn
	}
	for j := range habits {
		if habits[j].ShortcutSlot == slot {
			habits[j].ShortcutSlot = 0
			habits[j].ShortcutAction = ""
		}
	}
	habits[i].ShortcutSlot = slot
	habits[i].ShortcutAction = action
	if err := habits[i].Validate(); err != nil {
		return err
	}
	return s.saveHabits(ctx, habits)
}

func (s *Store) HabitForSlot(ctx context.Context, slot int) (models.Habit, error) {
	habits, err := s.GetAllHabits(ctx)
	if err != nil {
		return models.Habit{}, err
	}
	for _, h := range habits {
		if slot > 0 && h.ShortcutSlot == slot {
			return h, nil
		}
	}
	return models.Habit{}, fmt.Errorf("%w: no habit on shortcut %d", ErrHabitNotFound, slot)
}

// Clients

func (s *Store) getClients(ctx context.Context) (map[string]models.ClientCredential, error) {
	clients := map[string]models.ClientCredential{}
	if _, err := s.getJSON(ctx, constants.KeyClients, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) GetClient(ctx context.Context, instance string) (models.ClientCredential, bool, error) {
	clients, err := s.getClients(ctx)
	if err != nil {
		return models.ClientCredential{}, false, err
	}
	cred, ok := clients[instance]
	return cred, ok, nil
}

func (s *Store) SaveClient(ctx context.Context, instance string, cred models.ClientCredential) error {
	clients, err := s.getClients(ctx)
	if err != nil {
		return err
	}
	clients[instance] = cred
	return s.setJSON(ctx, constants.KeyClients, clients)
}

// Access token

func (s *Store) GetAccessToken(ctx context.Context) (models.AccessToken, error) {
	var token models.AccessToken
	found, err := s.getJSON(ctx, constants.KeyAccessToken, &token)
	if err != nil {
		return models.AccessToken{}, err
	}
	if !found || token.Token == "" {
		return models.AccessToken{}, ErrTokenNotFound
	}
	return token, nil
}

func (s *Store) SaveAccessToken(ctx context.Context, token models.AccessToken) error {
	return s.setJSON(ctx, constants.KeyAccessToken, token)
}

func (s *Store) DeleteAccessToken(ctx context.Context) error {
	return s.kv.Delete(ctx, constants.KeyAccessToken)
}
