// Package jira submits finished requirement documents to Jira as issues.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds Jira connection settings. The API token is taken from the
// environment by the caller, never from config files.
type Config struct {
	BaseURL   string `yaml:"base_url"`
	Email     string `yaml:"email"`
	Project   string `yaml:"project"`
	IssueType string `yaml:"issue_type"`
}

// Client is a minimal Jira Cloud REST client.
type Client struct {
	cfg    Config
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Jira client. token is the API token paired with the
// configured account email.
func NewClient(cfg Config, token string, logger *slog.Logger) *Client {
	if cfg.IssueType == "" {
		cfg.IssueType = "Task"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Configured reports whether the client has enough settings to submit.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.Email != "" && c.cfg.Project != "" && c.token != ""
}

// SubmitError is a failed issue creation.
type SubmitError struct {
	Status int
	Detail string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("jira issue creation failed (status %d): %s", e.Status, e.Detail)
}

// createIssueRequest is the Jira Cloud v3 issue creation payload.
// Descriptions use Atlassian Document Format.
type createIssueRequest struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Project     projectRef  `json:"project"`
	IssueType   issueType   `json:"issuetype"`
	Summary     string      `json:"summary"`
	Description adfDocument `json:"description"`
}

type projectRef struct {
	Key string `json:"key"`
}

type issueType struct {
	Name string `json:"name"`
}

type adfDocument struct {
	Type    string    `json:"type"`
	Version int       `json:"version"`
	Content []adfNode `json:"content"`
}

type adfNode struct {
	Type    string    `json:"type"`
	Content []adfText `json:"content,omitempty"`
}

type adfText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CreateIssue creates an issue with the given summary and markdown body and
// returns the new issue key.
func (c *Client) CreateIssue(ctx context.Context, summary, description string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("jira client is not configured")
	}

	payload := createIssueRequest{
		Fields: issueFields{
			Project:     projectRef{Key: c.cfg.Project},
			IssueType:   issueType{Name: c.cfg.IssueType},
			Summary:     summary,
			Description: adfFromText(description),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal issue payload: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/rest/api/3/issue"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("jira request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(respBody)
		if len(detail) > 300 {
			detail = detail[:300] + "..."
		}
		return "", &SubmitError{Status: resp.StatusCode, Detail: detail}
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("parse jira response: %w", err)
	}
	if created.Key == "" {
		return "", fmt.Errorf("jira response missing issue key")
	}

	c.logger.Info("jira issue created", "key", created.Key, "project", c.cfg.Project)
	return created.Key, nil
}

// adfFromText wraps plain text in a one-paragraph-per-block ADF document.
func adfFromText(text string) adfDocument {
	var nodes []adfNode
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		nodes = append(nodes, adfNode{
			Type:    "paragraph",
			Content: []adfText{{Type: "text", Text: para}},
		})
	}
	if len(nodes) == 0 {
		nodes = append(nodes, adfNode{Type: "paragraph", Content: []adfText{{Type: "text", Text: " "}}})
	}
	return adfDocument{Type: "doc", Version: 1, Content: nodes}
}
