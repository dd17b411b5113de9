package jira_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intakekit/intakekit/jira"
)

func testConfig(baseURL string) jira.Config {
	return jira.Config{
		BaseURL: baseURL,
		Email:   "pm@example.com",
		Project: "INTAKE",
	}
}

func TestCreateIssue(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "10001", "key": "INTAKE-42"}`))
	}))
	defer srv.Close()

	client := jira.NewClient(testConfig(srv.URL), "api-token", nil)
	key, err := client.CreateIssue(context.Background(), "Invoice Portal PRD", "First paragraph.\n\nSecond paragraph.")
	require.NoError(t, err)

	assert.Equal(t, "INTAKE-42", key)
	assert.Equal(t, "/rest/api/3/issue", gotPath)
	assert.Equal(t, "pm@example.com", gotUser)
	assert.Equal(t, "api-token", gotPass)

	fields := gotPayload["fields"].(map[string]any)
	assert.Equal(t, "Invoice Portal PRD", fields["summary"])
	assert.Equal(t, "INTAKE", fields["project"].(map[string]any)["key"])
	// Issue type defaults to Task when unset.
	assert.Equal(t, "Task", fields["issuetype"].(map[string]any)["name"])

	desc := fields["description"].(map[string]any)
	assert.Equal(t, "doc", desc["type"])
	assert.Equal(t, float64(1), desc["version"])
	// One paragraph node per blank-line-separated block.
	assert.Len(t, desc["content"].([]any), 2)
}

func TestCreateIssue_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors": {"summary": "required"}}`))
	}))
	defer srv.Close()

	client := jira.NewClient(testConfig(srv.URL), "api-token", nil)
	_, err := client.CreateIssue(context.Background(), "", "body")
	require.Error(t, err)

	var submitErr *jira.SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, http.StatusBadRequest, submitErr.Status)
	assert.Contains(t, submitErr.Detail, "summary")
}

func TestCreateIssue_MissingKeyInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "10001"}`))
	}))
	defer srv.Close()

	client := jira.NewClient(testConfig(srv.URL), "api-token", nil)
	_, err := client.CreateIssue(context.Background(), "summary", "body")
	assert.ErrorContains(t, err, "missing issue key")
}

func TestConfigured(t *testing.T) {
	assert.True(t, jira.NewClient(testConfig("https://example.atlassian.net"), "tok", nil).Configured())

	// Any missing piece means unconfigured, and unconfigured clients refuse
	// to submit.
	noToken := jira.NewClient(testConfig("https://example.atlassian.net"), "", nil)
	assert.False(t, noToken.Configured())
	_, err := noToken.CreateIssue(context.Background(), "s", "d")
	assert.ErrorContains(t, err, "not configured")

	cfg := testConfig("https://example.atlassian.net")
	cfg.Project = ""
	assert.False(t, jira.NewClient(cfg, "tok", nil).Configured())
}
