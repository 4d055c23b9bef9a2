// Package httpsource talks to the upstream academic REST API.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/mind-engage/mindengage-gradebook/internal/gradebook"
)

// ErrWrite wraps every rejected write.
var ErrWrite = errors.New("upstream rejected write")

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type Client struct {
	base string
	http *http.Client
}

var _ gradebook.Source = (*Client)(nil)

// New builds a client. Without a token URL requests go out unauthenticated.
func New(cfg Config) *Client {
	h := &http.Client{}
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{base: strings.TrimSuffix(cfg.BaseURL, "/"), http: h}
}

func sectionPath(sectionID int64, rest string, args ...any) string {
	return fmt.Sprintf("/sections/%d", sectionID) + fmt.Sprintf(rest, args...)
}

func (c *Client) AssignmentGrades(ctx context.Context, sectionID, assignmentID int64) ([]byte, error) {
	return c.get(ctx, "fetch assignment grades", sectionPath(sectionID, "/assignments/%d/grades", assignmentID))
}

func (c *Client) QuizGrades(ctx context.Context, sectionID, quizID int64) ([]byte, error) {
	return c.get(ctx, "fetch quiz grades", sectionPath(sectionID, "/quizzes/%d/grades", quizID))
}

func (c *Client) Assignments(ctx context.Context, sectionID int64) ([]gradebook.AssessmentItem, error) {
	return c.items(ctx, "list assignments", sectionPath(sectionID, "/assignments"))
}

func (c *Client) Quizzes(ctx context.Context, sectionID int64) ([]gradebook.AssessmentItem, error) {
	return c.items(ctx, "list quizzes", sectionPath(sectionID, "/quizzes"))
}

func (c *Client) AssignmentProblems(ctx context.Context, sectionID, assignmentID int64) ([]gradebook.ProblemSpec, error) {
	body, err := c.get(ctx, "fetch assignment problems", sectionPath(sectionID, "/assignments/%d/problems", assignmentID))
	if err != nil {
		return nil, err
	}
	out := []gradebook.ProblemSpec{}
	for _, el := range gradebook.Unwrap(body) {
		var p gradebook.ProblemSpec
		if err := json.Unmarshal(el, &p); err != nil {
			return nil, fmt.Errorf("fetch assignment problems: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// items accepts the same bare-or-wrapped shapes as the grade payloads.
func (c *Client) items(ctx context.Context, op, path string) ([]gradebook.AssessmentItem, error) {
	body, err := c.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	var out []gradebook.AssessmentItem
	for _, el := range gradebook.Unwrap(body) {
		var it gradebook.AssessmentItem
		if err := json.Unmarshal(el, &it); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (c *Client) SaveGrade(ctx context.Context, sectionID, assignmentID int64, in gradebook.GradeInput) error {
	return c.write(ctx, http.MethodPost, "save grade", sectionPath(sectionID, "/assignments/%d/grades", assignmentID), in)
}

func (c *Client) SaveBulkGrades(ctx context.Context, sectionID, assignmentID int64, grades []gradebook.GradeInput) error {
	return c.write(ctx, http.MethodPost, "save bulk grades", sectionPath(sectionID, "/assignments/%d/grades/bulk", assignmentID),
		map[string]any{"grades": grades})
}

func (c *Client) SetBulkProblemPoints(ctx context.Context, sectionID, assignmentID int64, points map[int64]float64) error {
	return c.write(ctx, http.MethodPut, "set problem points", sectionPath(sectionID, "/assignments/%d/problems/points", assignmentID),
		map[string]any{"points": points})
}

func (c *Client) AcceptedCode(ctx context.Context, sectionID, assignmentID, userID, problemID int64) (string, error) {
	body, err := c.get(ctx, "fetch accepted code",
		sectionPath(sectionID, "/assignments/%d/students/%d/problems/%d/code", assignmentID, userID, problemID))
	if err != nil {
		return "", err
	}
	var res struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("fetch accepted code: %w", err)
	}
	return res.Code, nil
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, &StatusError{Op: op, Code: res.StatusCode}
	}
	return io.ReadAll(res.Body)
}

func (c *Client) write(ctx context.Context, method, op, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, op, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("%w: %w", ErrWrite, &StatusError{Op: op, Code: res.StatusCode})
	}
	return nil
}
