package validation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

// ConflictType represents the type of integrity problem
type ConflictType string

const (
	ConflictTooManyDos         ConflictType = "too_many_dos"
	ConflictBlankDoTitle       ConflictType = "blank_do_title"
	ConflictDuplicateDoTitle   ConflictType = "duplicate_do_title"
	ConflictMissingProfile     ConflictType = "missing_profile"
	ConflictInvalidDate        ConflictType = "invalid_date"
	ConflictFutureAchievement  ConflictType = "future_achievement"
	ConflictMemoTooLong        ConflictType = "memo_too_long"
	ConflictForeignAchievement ConflictType = "foreign_achievement"
	ConflictUnknownMessageSet  ConflictType = "unknown_message_set"
	ConflictNoDefaultMessages  ConflictType = "no_default_messages"
)

// Conflict represents one detected problem in stored data
type Conflict struct {
	Type        ConflictType
	Description string
	UserID      string
	Date        string   // YYYY-MM-DD format (if applicable)
	Items       []string // Do titles involved
	DoIDs       []string // IDs of Dos involved (for auto-fixing)
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// FixAction represents an action taken during auto-fix
type FixAction struct {
	Action         string
	SourceConflict Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}
	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}
	return b.String()
}

// Validator checks a store snapshot against the domain rules
type Validator struct {
	today string
}

// New creates a Validator that treats dates after today as future dates.
func New(today string) *Validator {
	return &Validator{today: today}
}

// ValidateSnapshot runs every check over snap.
func (v *Validator) ValidateSnapshot(snap storage.Snapshot) ValidationResult {
	var result ValidationResult
	add := func(c Conflict) { result.Conflicts = append(result.Conflicts, c) }

	profiles := make(map[string]models.Profile, len(snap.Profiles))
	for _, p := range snap.Profiles {
		profiles[p.ID] = p
	}
	sets := make(map[string]bool, len(snap.MessageSets))
	for _, s := range snap.MessageSets {
		sets[s.ID] = true
	}

	for _, u := range snap.Users {
		p, ok := profiles[u.ID]
		if !ok {
			add(Conflict{
				Type:        ConflictMissingProfile,
				Description: fmt.Sprintf("User %s has no profile", u.Email),
				UserID:      u.ID,
			})
			continue
		}
		if p.SelectedMessageSetID != nil && !sets[*p.SelectedMessageSetID] {
			add(Conflict{
				Type:        ConflictUnknownMessageSet,
				Description: fmt.Sprintf("User %s selected a message set that does not exist", u.Email),
				UserID:      u.ID,
			})
		}
	}

	for _, c := range v.validateDos(snap.Dos) {
		add(c)
	}
	for _, c := range v.validateAchievements(snap.Dos, snap.Achievements) {
		add(c)
	}

	if !hasDefaultMessages(snap) {
		add(Conflict{
			Type:        ConflictNoDefaultMessages,
			Description: fmt.Sprintf("Message set %q is missing or empty", constants.DefaultMessageSetName),
		})
	}
	return result
}

func (v *Validator) validateDos(dos []models.Do) []Conflict {
	var conflicts []Conflict
	byUser := make(map[string][]models.Do)
	for _, d := range dos {
		byUser[d.UserID] = append(byUser[d.UserID], d)
		if strings.TrimSpace(d.Title) == "" {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictBlankDoTitle,
				Description: fmt.Sprintf("Do %s has a blank title", d.ID),
				UserID:      d.UserID,
				DoIDs:       []string{d.ID},
			})
		}
	}

	for _, userID := range sortedKeys(byUser) {
		userDos := byUser[userID]
		if len(userDos) > constants.MaxDosPerUser {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictTooManyDos,
				Description: fmt.Sprintf("User %s has %d Dos (limit %d)", userID, len(userDos), constants.MaxDosPerUser),
				UserID:      userID,
				Items:       titles(userDos),
				DoIDs:       ids(userDos),
			})
		}

		byTitle := make(map[string][]models.Do)
		for _, d := range userDos {
			key := strings.ToLower(strings.TrimSpace(d.Title))
			if key != "" {
				byTitle[key] = append(byTitle[key], d)
			}
		}
		for _, key := range sortedKeys(byTitle) {
			dups := byTitle[key]
			if len(dups) < 2 {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Type:        ConflictDuplicateDoTitle,
				Description: fmt.Sprintf("User %s has %d Dos titled %q", userID, len(dups), dups[0].Title),
				UserID:      userID,
				Items:       titles(dups),
				DoIDs:       ids(dups),
			})
		}
	}
	return conflicts
}

func (v *Validator) validateAchievements(dos []models.Do, achievements []models.Achievement) []Conflict {
	owner := make(map[string]string, len(dos))
	for _, d := range dos {
		owner[d.ID] = d.UserID
	}

	var conflicts []Conflict
	for _, a := range achievements {
		if uid, ok := owner[a.DoID]; !ok || uid != a.UserID {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictForeignAchievement,
				Description: fmt.Sprintf("Achievement %s points at a Do the user does not own", a.ID),
				UserID:      a.UserID,
				Date:        a.AchievedDate,
				DoIDs:       []string{a.DoID},
			})
		}
		if _, err := time.Parse(constants.DateFormat, a.AchievedDate); err != nil {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictInvalidDate,
				Description: fmt.Sprintf("Achievement %s has an invalid date %q", a.ID, a.AchievedDate),
				UserID:      a.UserID,
				Date:        a.AchievedDate,
			})
		} else if v.today != "" && a.AchievedDate > v.today {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictFutureAchievement,
				Description: fmt.Sprintf("Achievement %s is dated in the future (%s)", a.ID, a.AchievedDate),
				UserID:      a.UserID,
				Date:        a.AchievedDate,
			})
		}
		if n := utf8.RuneCountInString(a.MemoText()); n > constants.MemoMaxLength {
			conflicts = append(conflicts, Conflict{
				Type:        ConflictMemoTooLong,
				Description: fmt.Sprintf("Achievement %s has a %d character memo (limit %d)", a.ID, n, constants.MemoMaxLength),
				UserID:      a.UserID,
				Date:        a.AchievedDate,
			})
		}
	}
	return conflicts
}

func hasDefaultMessages(snap storage.Snapshot) bool {
	for _, s := range snap.MessageSets {
		if s.Name != constants.DefaultMessageSetName {
			continue
		}
		for _, m := range snap.PraiseMessages {
			if m.SetID == s.ID {
				return true
			}
		}
	}
	return false
}

// AutoFixDuplicateDos keeps the oldest Do of each duplicate group and deletes the rest.
// deleteFunc removes one Do of userID; achievements go with it.
func AutoFixDuplicateDos(conflicts []Conflict, dos []models.Do, deleteFunc func(userID, id string) error) []FixAction {
	byID := make(map[string]models.Do, len(dos))
	for _, d := range dos {
		byID[d.ID] = d
	}

	var actions []FixAction
	for _, conflict := range conflicts {
		if conflict.Type != ConflictDuplicateDoTitle {
			continue
		}
		var group []models.Do
		for _, id := range conflict.DoIDs {
			if d, ok := byID[id]; ok {
				group = append(group, d)
			}
		}
		if len(group) <= 1 {
			continue
		}
		slices.SortFunc(group, func(a, b models.Do) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		keep := group[0]
		var deleted, failed []string
		for _, d := range group[1:] {
			if err := deleteFunc(d.UserID, d.ID); err != nil {
				failed = append(failed, d.ID)
				continue
			}
			deleted = append(deleted, d.ID)
		}

		switch {
		case len(deleted) > 0:
			msg := fmt.Sprintf("Removed %d duplicate Do(s) titled %q (kept ID: %s, removed: %v)", len(deleted), keep.Title, keep.ID, deleted)
			if len(failed) > 0 {
				msg += fmt.Sprintf(" (failed to remove: %v)", failed)
			}
			actions = append(actions, FixAction{Action: msg, SourceConflict: conflict})
		case len(failed) > 0:
			actions = append(actions, FixAction{
				Action:         fmt.Sprintf("Failed to remove duplicates of %q: %v", keep.Title, failed),
				SourceConflict: conflict,
			})
		}
	}
	return actions
}

func titles(dos []models.Do) []string {
	out := make([]string, len(dos))
	for i, d := range dos {
		out[i] = d.Title
	}
	return out
}

func ids(dos []models.Do) []string {
	out := make([]string, len(dos))
	for i, d := range dos {
		out[i] = d.ID
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
