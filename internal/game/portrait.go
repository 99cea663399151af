package game

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// GeneratePortrait renders a portrait for a person. It does nothing when the
// person already has one or a generation for them is running.
func (gm *Manager) GeneratePortrait(ctx context.Context, personID string) error {
	if gm.portraits == nil {
		return ErrPortraitsDisabled
	}

	gm.stateLock.Lock()
	idx := gm.personIndex(personID)
	if idx < 0 {
		gm.stateLock.Unlock()
		return ErrPersonNotFound
	}
	person := gm.persons[idx]
	if _, busy := gm.generating[personID]; busy || person.PortraitURL != "" {
		gm.stateLock.Unlock()
		return nil
	}
	gm.generating[personID] = struct{}{}
	gm.stateLock.Unlock()

	defer func() {
		gm.stateLock.Lock()
		delete(gm.generating, personID)
		gm.stateLock.Unlock()
	}()

	url, err := gm.portraits.Generate(ctx, person)
	if err != nil {
		return fmt.Errorf("failed to generate portrait: %w", err)
	}
	if url == "" {
		gm.Logger.Warn("No portrait produced", zap.String("person_id", personID))
		return nil
	}

	gm.stateLock.Lock()
	// The roster may have been replaced by a turn meanwhile
	if idx := gm.personIndex(personID); idx >= 0 {
		gm.persons[idx].PortraitURL = url
	}
	gm.stateLock.Unlock()

	gm.Logger.Info("Portrait generated", zap.String("person_id", personID))
	gm.markDirty()
	return nil
}

// IsGeneratingPortrait reports whether a portrait is being generated
func (gm *Manager) IsGeneratingPortrait(personID string) bool {
	gm.stateLock.RLock()
	defer gm.stateLock.RUnlock()
	_, busy := gm.generating[personID]
	return busy
}

// personIndex finds a person by id. The caller holds the lock.
func (gm *Manager) personIndex(personID string) int {
	for i, p := range gm.persons {
		if p.ID == personID {
			return i
		}
	}
	return -1
}
