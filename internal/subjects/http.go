package subjects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotFound is returned when the content domain does not know a subject
// or handle.
var ErrNotFound = errors.New("subject not found")

// HTTPResolver asks the content API for subject owners and handles:
//
//	GET {base}/subjects/{type}/{id}/owner -> {"owner_id": "..."}
//	GET {base}/handles/{handle}           -> {"user_id": "..."}
type HTTPResolver struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPResolver returns a resolver for the content API at baseURL.
func NewHTTPResolver(client *http.Client, baseURL, token string) *HTTPResolver {
	return &HTTPResolver{client: client, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

func (r *HTTPResolver) ResolveOwner(ctx context.Context, subjectType, subjectID string) (string, error) {
	var out struct {
		OwnerID string `json:"owner_id"`
	}
	path := "/subjects/" + url.PathEscape(subjectType) + "/" + url.PathEscape(subjectID) + "/owner"
	if err := r.get(ctx, path, &out); err != nil {
		return "", err
	}
	if out.OwnerID == "" {
		return "", ErrNotFound
	}
	return out.OwnerID, nil
}

func (r *HTTPResolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	var out struct {
		UserID string `json:"user_id"`
	}
	if err := r.get(ctx, "/handles/"+url.PathEscape(handle), &out); err != nil {
		return "", err
	}
	if out.UserID == "" {
		return "", ErrNotFound
	}
	return out.UserID, nil
}

func (r *HTTPResolver) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("content api %s: %w", path, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("content api %s: status %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(out); err != nil {
		return fmt.Errorf("decode content api response: %w", err)
	}
	return nil
}
