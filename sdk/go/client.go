package questforgesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal QuestForge HTTP API client covering team quest work and review.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base path, e.g. http://host/v1.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// TeamSubmission is a project's progress on one quest (partial).
type TeamSubmission struct {
	ID                string `json:"id"`
	ProjectID         string `json:"project_id"`
	QuestID           string `json:"quest_id"`
	State             string `json:"state"`
	Progress          int    `json:"progress"`
	SubmissionLink    string `json:"submission_link,omitempty"`
	SubmissionText    string `json:"submission_text,omitempty"`
	VerificationNotes string `json:"verification_notes,omitempty"`
}

// Advancement reports whether a project may move to its next stage.
type Advancement struct {
	ProjectID           string   `json:"project_id"`
	CurrentStage        string   `json:"current_stage"`
	NextStage           string   `json:"next_stage,omitempty"`
	CanAdvance          bool     `json:"can_advance"`
	MissingRequirements []string `json:"missing_requirements"`
	QuestsCompleted     int      `json:"quests_completed"`
	TeamMemberCount     int      `json:"team_member_count"`
	Reason              string   `json:"reason,omitempty"`
}

// Project is the stage-bearing team entity (partial).
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stage string `json:"stage"`
}

// APIError wraps non-2xx responses. Code and Message come from the error envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Apply starts a quest for the project.
func (c *Client) Apply(ctx context.Context, projectID, questID string) (TeamSubmission, error) {
	var resp TeamSubmission
	err := c.do(ctx, http.MethodPost, c.teamQuestPath(projectID, questID, "apply"), nil, &resp)
	return resp, err
}

// UpdateProgress records team progress; text and urls are optional.
func (c *Client) UpdateProgress(ctx context.Context, projectID, questID string, progress int, text string, urls ...string) (TeamSubmission, error) {
	body := map[string]any{"progress": progress}
	if text != "" {
		body["text"] = text
	}
	if len(urls) > 0 {
		body["urls"] = urls
	}
	var resp TeamSubmission
	err := c.do(ctx, http.MethodPatch, c.teamQuestPath(projectID, questID, "progress"), body, &resp)
	return resp, err
}

// Submit hands finished work to the review queue.
func (c *Client) Submit(ctx context.Context, projectID, questID, link, text string) (TeamSubmission, error) {
	body := map[string]any{"link": link, "text": text}
	var resp TeamSubmission
	err := c.do(ctx, http.MethodPost, c.teamQuestPath(projectID, questID, "submit"), body, &resp)
	return resp, err
}

// Submissions lists a project's team submissions.
func (c *Client) Submissions(ctx context.Context, projectID string) ([]TeamSubmission, error) {
	var resp struct {
		Items []TeamSubmission `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("projects/%s/quests", url.PathEscape(projectID)), nil, &resp)
	return resp.Items, err
}

// Verify accepts a submission (platform admin token).
func (c *Client) Verify(ctx context.Context, submissionID, notes, paymentRef string) (TeamSubmission, error) {
	body := map[string]any{"notes": notes, "payment_ref": paymentRef}
	var resp TeamSubmission
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("admin/submissions/%s/verify", url.PathEscape(submissionID)), body, &resp)
	return resp, err
}

// Reject sends a submission back with notes (platform admin token).
func (c *Client) Reject(ctx context.Context, submissionID, notes string) (TeamSubmission, error) {
	var resp TeamSubmission
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("admin/submissions/%s/reject", url.PathEscape(submissionID)), map[string]any{"notes": notes}, &resp)
	return resp, err
}

// CheckAdvancement reports the next stage's requirements without changing anything.
func (c *Client) CheckAdvancement(ctx context.Context, projectID string) (Advancement, error) {
	var resp Advancement
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("projects/%s/advancement", url.PathEscape(projectID)), nil, &resp)
	return resp, err
}

// Advance moves the project one stage. A manual override needs a platform admin token.
func (c *Client) Advance(ctx context.Context, projectID string, manualOverride bool) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("projects/%s/advance", url.PathEscape(projectID)),
		map[string]any{"manual_override": manualOverride}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func (c *Client) teamQuestPath(projectID, questID, action string) string {
	return fmt.Sprintf("projects/%s/quests/%s/%s", url.PathEscape(projectID), url.PathEscape(questID), action)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
