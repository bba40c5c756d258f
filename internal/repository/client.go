// Package repository provides PocketBase REST API implementations
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// pbTimeLayout is the timestamp format PocketBase stores and filters on.
const pbTimeLayout = "2006-01-02 15:04:05.000Z"

// pbClient is the shared PocketBase REST API client the stores build on
type pbClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func newPBClient(baseURL string) *pbClient {
	return &pbClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  os.Getenv("POCKETBASE_TOKEN"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *pbClient) addAuthHeader(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}
}

// list queries a collection with an optional filter/sort and decodes the
// "items" array into out (a pointer to a slice of row structs).
func (c *pbClient) list(ctx context.Context, collection, filter, sort string, limit int, out any) error {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records?perPage=%d", c.baseURL, collection, limit)
	if filter != "" {
		apiURL += "&filter=" + url.QueryEscape(filter)
	}
	if sort != "" {
		apiURL += "&sort=" + url.QueryEscape(sort)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	c.addAuthHeader(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to list %s: %s - %s", collection, resp.Status, string(body))
	}

	var envelope struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Items, out)
}

// getOne fetches a record by id. Returns found=false on 404.
func (c *pbClient) getOne(ctx context.Context, collection, id string, out any) (bool, error) {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return false, err
	}
	c.addAuthHeader(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("failed to get %s/%s: %s - %s", collection, id, resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// create inserts a record and returns the new record id
func (c *pbClient) create(ctx context.Context, collection string, data map[string]any) (string, error) {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records", c.baseURL, collection)
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create %s: %s - %s", collection, resp.Status, string(body))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// patch partially updates a record. PocketBase applies "field+" keys as
// atomic increments server-side.
func (c *pbClient) patch(ctx context.Context, collection, id string, data map[string]any) error {
	apiURL := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, url.PathEscape(id))
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to update %s/%s: %s - %s", collection, id, resp.Status, string(body))
	}
	return nil
}

// pbTime formats a timestamp the way PocketBase expects in fields/filters
func pbTime(t time.Time) string {
	return t.UTC().Format(pbTimeLayout)
}

// parsePBTime reads a PocketBase timestamp; empty strings yield nil
func parsePBTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{pbTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
