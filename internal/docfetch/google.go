package docfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const googleTokenEndpoint = "https://oauth2.googleapis.com/token"

// googleCredentials is the on-disk credential file for authenticated
// shared-document fetches. A refreshed access token is written back to the
// same file for reuse.
type googleCredentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// fetchGoogleDoc retrieves a shared document as plain text. The
// unauthenticated export endpoint is tried first; on a non-success status the
// fetch falls back to the stored credential, refreshing it once if rejected.
func (f *Fetcher) fetchGoogleDoc(ctx context.Context, link string) (string, error) {
	docID, ok := ExtractDocID(link)
	if !ok || !strings.Contains(link, "/document/d/") {
		return "", fmt.Errorf("%w: %s", ErrResolutionFailed, link)
	}
	exportURL := fmt.Sprintf("https://docs.google.com/document/d/%s/export?format=txt", docID)

	status, body, err := f.get(ctx, exportURL, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		slog.Debug("docfetch: public export succeeded", "doc_id", docID, "bytes", len(body))
		return string(body), nil
	}
	slog.Debug("docfetch: public export unavailable, trying authenticated fetch", "doc_id", docID, "status", status)

	if f.googleCredPath == "" {
		return "", ErrAuthRequired
	}
	creds, err := loadGoogleCredentials(f.googleCredPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	status, body, err = f.get(ctx, exportURL, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	})
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized && creds.RefreshToken != "" {
		if err := f.refreshGoogleToken(ctx, creds); err != nil {
			return "", err
		}
		status, body, err = f.get(ctx, exportURL, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		})
		if err != nil {
			return "", err
		}
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("authenticated export of document %s failed with status %d", docID, status)
	}
	slog.Debug("docfetch: authenticated export succeeded", "doc_id", docID, "bytes", len(body))
	return string(body), nil
}

func loadGoogleCredentials(path string) (*googleCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}
	var creds googleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credential file: %w", err)
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, fmt.Errorf("credential file %s has no tokens", path)
	}
	return &creds, nil
}

// refreshGoogleToken exchanges the refresh token for a fresh access token and
// persists it. The credential file is opened, written, and closed
// immediately; no long-lived handle is held.
func (f *Fetcher) refreshGoogleToken(ctx context.Context, creds *googleCredentials) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("refreshing access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return fmt.Errorf("decoding token refresh response: %w", err)
	}
	if refreshed.AccessToken == "" {
		return fmt.Errorf("token refresh response carried no access token")
	}

	creds.AccessToken = refreshed.AccessToken
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling refreshed credentials: %w", err)
	}
	if err := os.WriteFile(f.googleCredPath, data, 0600); err != nil {
		slog.Error("docfetch: failed to persist refreshed credentials", "error", err, "path", f.googleCredPath)
		return fmt.Errorf("persisting refreshed credentials: %w", err)
	}
	slog.Debug("docfetch: refreshed credential persisted", "path", f.googleCredPath)
	return nil
}
