// Package catalog talks to the exam and question catalog services over HTTP.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mind-engage/mindengage-grading/internal/exam"
)

type Config struct {
	BaseURL string

	// Service credentials. When TokenURL is empty the caller's own bearer
	// token (see Config.CallerToken) is forwarded instead.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// CallerToken returns the inbound request's bearer token, if any.
	CallerToken func(ctx context.Context) string

	Timeout time.Duration
}

// Client implements both the exam and the question catalog.
type Client struct {
	base        string
	http        *http.Client
	callerToken func(ctx context.Context) string
}

func New(cfg Config) *Client {
	var h *http.Client
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// token fetches get the same timeout as catalog calls
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
		h = cc.Client(tokenCtx)
	} else {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	c := &Client{base: strings.TrimSuffix(cfg.BaseURL, "/"), http: h}
	if cfg.TokenURL == "" {
		c.callerToken = cfg.CallerToken
	}
	return c
}

func (c *Client) GetExam(ctx context.Context, examID int64) (exam.ExamSnapshot, error) {
	var out exam.ExamSnapshot
	err := c.getJSON(ctx, fmt.Sprintf("/api/exams/%d", examID), &out)
	if errors.Is(err, errNotFound) {
		return exam.ExamSnapshot{}, exam.ErrExamNotFound
	}
	if err != nil {
		return exam.ExamSnapshot{}, fmt.Errorf("get exam %d: %w", examID, err)
	}
	return out, nil
}

func (c *Client) ListExams(ctx context.Context) ([]exam.ExamSnapshot, error) {
	out := make([]exam.ExamSnapshot, 0)
	err := c.getJSON(ctx, "/api/exams", &out)
	if err != nil && !errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return out, nil
}

func (c *Client) GetQuestion(ctx context.Context, questionID int64) (exam.QuestionSnapshot, error) {
	var out exam.QuestionSnapshot
	err := c.getJSON(ctx, fmt.Sprintf("/api/questions/%d", questionID), &out)
	if errors.Is(err, errNotFound) {
		return exam.QuestionSnapshot{}, exam.ErrQuestionNotFound
	}
	if err != nil {
		return exam.QuestionSnapshot{}, fmt.Errorf("get question %d: %w", questionID, err)
	}
	return out, nil
}

var errNotFound = errors.New("catalog: not found")

// maxBodyBytes caps how much of a catalog response is read.
const maxBodyBytes = 4 << 20

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.callerToken != nil {
		if tok := c.callerToken(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return errNotFound
	case res.StatusCode/100 != 2:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s: %s", res.Status, strings.TrimSpace(string(b)))
	}
	// some catalog builds answer 200 with an empty body for unknown ids
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("response body over %d bytes", maxBodyBytes)
	}
	if len(strings.TrimSpace(string(body))) == 0 || strings.TrimSpace(string(body)) == "null" {
		return errNotFound
	}
	return json.Unmarshal(body, v)
}
