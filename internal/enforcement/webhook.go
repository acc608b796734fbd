package enforcement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"warden/internal/models"
)

// WebhookHooks forwards content hooks and their reversals to the content
// domain over HTTP.
type WebhookHooks struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewWebhookHooks posts to {baseURL}/moderation/{action}.
func NewWebhookHooks(client *http.Client, baseURL, token string) *WebhookHooks {
	return &WebhookHooks{client: client, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

type hookRequest struct {
	Action      string         `json:"action"`
	CaseID      string         `json:"case_id,omitempty"`
	SubjectType string         `json:"subject_type,omitempty"`
	SubjectID   string         `json:"subject_id,omitempty"`
	GroupID     string         `json:"group_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Payload     models.Payload `json:"payload,omitempty"`
}

func (w *WebhookHooks) post(ctx context.Context, path string, body hookRequest) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/moderation/"+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s hook: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s hook: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (w *WebhookHooks) content(ctx context.Context, action models.Action, c *models.ModerationCase, p models.Payload) error {
	return w.post(ctx, string(action), hookRequest{
		Action:      string(action),
		CaseID:      c.ID,
		SubjectType: c.SubjectType,
		SubjectID:   c.SubjectID,
		GroupID:     p.String("group_id"),
		UserID:      p.String("user_id"),
		Payload:     p,
	})
}

func (w *WebhookHooks) Tombstone(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return w.content(ctx, models.ActionTombstone, c, p)
}

func (w *WebhookHooks) Remove(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return w.content(ctx, models.ActionRemove, c, p)
}

func (w *WebhookHooks) ShadowHide(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return w.content(ctx, models.ActionShadowHide, c, p)
}

func (w *WebhookHooks) Mute(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return w.content(ctx, models.ActionMute, c, p)
}

func (w *WebhookHooks) Ban(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return w.content(ctx, models.ActionBan, c, p)
}

// RestoreContent undoes a tombstone, remove or shadow_hide.
func (w *WebhookHooks) RestoreContent(ctx context.Context, subjectType, subjectID string, action models.Action) error {
	return w.post(ctx, "restore", hookRequest{Action: string(action), SubjectType: subjectType, SubjectID: subjectID})
}

// RestoreMembership lifts a mute or ban.
func (w *WebhookHooks) RestoreMembership(ctx context.Context, groupID, userID string, action models.Action) error {
	return w.post(ctx, "restore_membership", hookRequest{Action: string(action), GroupID: groupID, UserID: userID})
}
