// Package praise picks the message shown when a Do is achieved.
package praise

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

// ErrNoMessages is returned by Pick when neither the selected nor the default set has messages.
var ErrNoMessages = errors.New("no praise messages available")

// Picker draws a random message from the user's selected set, then the default set.
type Picker struct {
	store   storage.Provider
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker(store storage.Provider, timeout time.Duration) *Picker {
	seed := uint64(time.Now().UnixNano())
	return &Picker{store: store, timeout: timeout, rng: rand.New(rand.NewPCG(seed, seed>>1))}
}

// WithSeed makes picks reproducible.
func (p *Picker) WithSeed(seed uint64) *Picker {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng = rand.New(rand.NewPCG(seed, seed>>1))
	return p
}

// Pick returns a message for the user. Callers fall back to a fixed message on error.
func (p *Picker) Pick(ctx context.Context, userID string) (string, error) {
	ctx, cancel := storage.WithTimeout(ctx, p.timeout)
	defer cancel()

	if setID := p.selectedSet(ctx, userID); setID != "" {
		msgs, err := p.store.ListPraiseMessages(ctx, setID)
		if err != nil {
			return "", fmt.Errorf("failed to list praise messages: %w", err)
		}
		if len(msgs) > 0 {
			return p.choose(msgs), nil
		}
		logger.Debug("selected message set is empty, using default", "set_id", setID)
	}

	def, err := p.store.GetMessageSetByName(ctx, constants.DefaultMessageSetName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNoMessages
		}
		return "", fmt.Errorf("failed to load default message set: %w", err)
	}
	msgs, err := p.store.ListPraiseMessages(ctx, def.ID)
	if err != nil {
		return "", fmt.Errorf("failed to list praise messages: %w", err)
	}
	if len(msgs) == 0 {
		return "", ErrNoMessages
	}
	return p.choose(msgs), nil
}

func (p *Picker) selectedSet(ctx context.Context, userID string) string {
	profile, err := p.store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("failed to load profile for praise", "user_id", userID, "error", err)
		}
		return ""
	}
	if profile.SelectedMessageSetID == nil {
		return ""
	}
	return *profile.SelectedMessageSetID
}

func (p *Picker) choose(msgs []models.PraiseMessage) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return msgs[p.rng.IntN(len(msgs))].Message
}

// Sets lists every message set.
func (p *Picker) Sets(ctx context.Context) ([]models.MessageSet, error) {
	ctx, cancel := storage.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.store.ListMessageSets(ctx)
}

// Messages lists the messages of a set, resolved by id or name.
func (p *Picker) Messages(ctx context.Context, ref string) (models.MessageSet, []models.PraiseMessage, error) {
	ctx, cancel := storage.WithTimeout(ctx, p.timeout)
	defer cancel()

	set, err := p.resolve(ctx, ref)
	if err != nil {
		return models.MessageSet{}, nil, err
	}
	msgs, err := p.store.ListPraiseMessages(ctx, set.ID)
	if err != nil {
		return models.MessageSet{}, nil, err
	}
	return set, msgs, nil
}

func (p *Picker) resolve(ctx context.Context, ref string) (models.MessageSet, error) {
	set, err := p.store.GetMessageSet(ctx, ref)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.MessageSet{}, err
	}
	return p.store.GetMessageSetByName(ctx, ref)
}

// AddSet creates a custom message set. Names are unique.
func (p *Picker) AddSet(ctx context.Context, name, description string) (models.MessageSet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.MessageSet{}, apperrors.Validation("メッセージセット名を入力してください。")
	}
	ctx, cancel := storage.WithTimeout(ctx, p.timeout)
	defer cancel()

	set := models.MessageSet{
		ID:          uuid.NewString(),
		Name:        name,
		Description: models.OptionalText(description),
		CreatedAt:   time.Now(),
	}
	if err := p.store.AddMessageSet(ctx, set); err != nil {
		return models.MessageSet{}, fmt.Errorf("failed to add message set: %w", err)
	}
	return set, nil
}

// AddMessage appends a message to the set resolved by id or name.
func (p *Picker) AddMessage(ctx context.Context, ref, message string) (models.PraiseMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return models.PraiseMessage{}, apperrors.Validation("メッセージを入力してください。")
	}
	ctx, cancel := storage.WithTimeout(ctx, p.timeout)
	defer cancel()

	set, err := p.resolve(ctx, ref)
	if err != nil {
		return models.PraiseMessage{}, err
	}
	msg := models.PraiseMessage{
		ID:        uuid.NewString(),
		SetID:     set.ID,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := p.store.AddPraiseMessage(ctx, msg); err != nil {
		return models.PraiseMessage{}, fmt.Errorf("failed to add praise message: %w", err)
	}
	return msg, nil
}
