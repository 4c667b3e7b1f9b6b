package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/morgansundqvist/mbacklog/internal/domain"
)

const defaultTrackerTimeout = 30 * time.Second

func newTrackerHTTPClient(httpClient *http.Client) *http.Client {
	if httpClient != nil {
		return httpClient
	}
	return &http.Client{Timeout: defaultTrackerTimeout}
}

func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func trimBaseURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

// doJSON sends body (if any) as JSON and returns the response. The caller closes the body.
func doJSON(ctx context.Context, client *http.Client, method, url, contentType, auth string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// trackerErrorBody covers the error payloads of both Jira and Azure DevOps.
type trackerErrorBody struct {
	ErrorMessages []string        `json:"errorMessages"`
	Errors        json.RawMessage `json:"errors"`
	Message       string          `json:"message"`
}

// newTrackerError reads the response body and builds a status-coded error.
// An unreadable body falls back to the HTTP status text.
func newTrackerError(resp *http.Response, platform domain.Platform, op string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	messages := extractErrorMessages(data)
	if len(messages) == 0 {
		if text := http.StatusText(resp.StatusCode); text != "" {
			messages = []string{text}
		}
	}
	return &domain.TrackerError{
		Platform:   platform,
		Op:         op,
		StatusCode: resp.StatusCode,
		Messages:   messages,
	}
}

func extractErrorMessages(data []byte) []string {
	var body trackerErrorBody
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &body) != nil {
		return nil
	}

	var messages []string
	// Jira: "errors" is either a field->message map or, for bulk calls, a list of element errors.
	if len(body.Errors) > 0 {
		var fields map[string]string
		if json.Unmarshal(body.Errors, &fields) == nil {
			messages = append(messages, sortedValues(fields)...)
		} else {
			var bulk []jiraBulkError
			if json.Unmarshal(body.Errors, &bulk) == nil {
				for _, e := range bulk {
					messages = append(messages, e.messages()...)
				}
			}
		}
	}
	if len(messages) == 0 {
		messages = append(messages, body.ErrorMessages...)
	}
	if len(messages) == 0 && body.Message != "" {
		messages = append(messages, body.Message)
	}
	return messages
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(m))
	for _, k := range keys {
		values = append(values, fmt.Sprintf("%s: %s", k, m[k]))
	}
	return values
}
