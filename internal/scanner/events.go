// Package scanner consumes the moderation ingress stream: the safety
// worker scans media attachments and the text consumer feeds text events
// through the moderation pipeline.
package scanner

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"warden/internal/detectors"
	"warden/internal/models"
	"warden/internal/thresholds"
)

// Ingress event types.
const (
	TypeImage = "image"
	TypeFile  = "file"
	TypeText  = "text"
)

// Ingress and result field names.
const (
	FieldType         = "type"
	FieldAttachmentID = "attachment_id"
	FieldStorageKey   = "storage_key"
	FieldEventID      = "event_id"
	FieldActorID      = "actor_id"
	FieldSubjectType  = "subject_type"
	FieldSubjectID    = "subject_id"
	FieldText         = "text"
	FieldTrustScore   = "trust_score"
	FieldSurface      = "surface"
	FieldCreatedAt    = "created_at"
	FieldScores       = "scores"
	FieldURLRisk      = "url_risk"
)

// TextEventFields encodes a content event for the ingress stream.
func TextEventFields(ev detectors.ContentEvent) map[string]string {
	fields := map[string]string{
		FieldType:        TypeText,
		FieldEventID:     ev.ID,
		FieldActorID:     ev.ActorID,
		FieldSubjectType: ev.SubjectType,
		FieldSubjectID:   ev.SubjectID,
		FieldText:        ev.Text,
	}
	if ev.Surface != "" {
		fields[FieldSurface] = ev.Surface
	}
	if ev.TrustScore != nil {
		fields[FieldTrustScore] = strconv.Itoa(*ev.TrustScore)
	}
	if !ev.CreatedAt.IsZero() {
		fields[FieldCreatedAt] = ev.CreatedAt.UTC().Format(time.RFC3339)
	}
	putScores(fields, FieldScores, ev.Scores)
	putScores(fields, FieldURLRisk, ev.URLRisk)
	return fields
}

func putScores(fields map[string]string, key string, scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	if raw, err := json.Marshal(scores); err == nil {
		fields[key] = string(raw)
	}
}

func readScores(fields map[string]string, key string) map[string]float64 {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return nil
	}
	var out map[string]float64
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// ParseTextEvent decodes an ingress text entry. Malformed optional fields
// are ignored.
func ParseTextEvent(fields map[string]string) detectors.ContentEvent {
	ev := detectors.ContentEvent{
		ID:          fields[FieldEventID],
		ActorID:     fields[FieldActorID],
		SubjectType: fields[FieldSubjectType],
		SubjectID:   fields[FieldSubjectID],
		Text:        fields[FieldText],
		Surface:     fields[FieldSurface],
	}
	if raw, ok := fields[FieldTrustScore]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			ev.TrustScore = &v
		}
	}
	if raw, ok := fields[FieldCreatedAt]; ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			ev.CreatedAt = t
		}
	}
	ev.Scores = readScores(fields, FieldScores)
	ev.URLRisk = readScores(fields, FieldURLRisk)
	return ev
}

func resultFields(a *models.Attachment, res thresholds.Result) map[string]string {
	return map[string]string{
		FieldAttachmentID:  a.ID,
		FieldStorageKey:    a.StorageKey,
		"owner_id":         a.OwnerID,
		"status":           string(res.Status),
		"level":            res.Level,
		"suggested_action": string(res.SuggestedAction),
		"reasons":          strings.Join(res.Reasons, ","),
		"nsfw":             strconv.FormatFloat(a.NSFWScore, 'f', 4, 64),
		"gore":             strconv.FormatFloat(a.GoreScore, 'f', 4, 64),
		"phash":            a.PHash,
		"hash_label":       a.HashLabel,
	}
}
