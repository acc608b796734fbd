package models

import (
	"fmt"
	"strings"
)

// Action is a closed enumeration of enforcement kinds.
type Action string

const (
	ActionNone           Action = "none"
	ActionTombstone      Action = "tombstone"
	ActionRemove         Action = "remove"
	ActionShadowHide     Action = "shadow_hide"
	ActionMute           Action = "mute"
	ActionBan            Action = "ban"
	ActionWarn           Action = "warn"
	ActionRestrictCreate Action = "restrict_create"
)

var knownActions = map[Action]struct{}{
	ActionNone:           {},
	ActionTombstone:      {},
	ActionRemove:         {},
	ActionShadowHide:     {},
	ActionMute:           {},
	ActionBan:            {},
	ActionWarn:           {},
	ActionRestrictCreate: {},
}

// ParseAction converts a configured string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if a == "" {
		return ActionNone, nil
	}
	if _, ok := knownActions[a]; !ok {
		return "", fmt.Errorf("unknown moderation action %q", s)
	}
	return a, nil
}

// Valid reports whether the action is part of the enumeration.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// IsMembership reports whether the action targets a group membership.
func (a Action) IsMembership() bool {
	return a == ActionMute || a == ActionBan
}

// IsContent reports whether the action hides or removes the subject itself.
func (a Action) IsContent() bool {
	return a == ActionTombstone || a == ActionRemove || a == ActionShadowHide
}
