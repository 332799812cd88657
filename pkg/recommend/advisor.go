// Package recommend resolves contested master-record choices within a
// duplicate group. A chat-completion advisor proposes the keeper; when
// it is unavailable or returns garbage the deterministic ranking wins.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/CBPFGMS/GOmapping/pkg/httpclient"
	"github.com/CBPFGMS/GOmapping/pkg/knowledgebase"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

// Member is one organization inside a duplicate group under review
type Member struct {
	ID            int64  `json:"id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	UsageCount    int    `json:"usage_count"`
	KBMatch       bool   `json:"kb_match"`
	IsRecommended bool   `json:"is_recommended"`
}

// Request asks which member of a duplicate group to keep
type Request struct {
	GroupName string   `json:"group_name"`
	Members   []Member `json:"members" validate:"required,min=1,dive"`
}

// Advice is the resolved keeper recommendation
type Advice struct {
	RecommendedID   int64    `json:"recommended_id"`
	RecommendedName string   `json:"recommended_name"`
	Reasoning       []string `json:"reasoning"`
	Analysis        string   `json:"analysis"`
	Source          string   `json:"source"`
}

// Advice sources
const (
	SourceAdvisor  = "advisor"
	SourceFallback = "fallback"
)

// Advisor proposes which group member to keep
type Advisor interface {
	Advise(ctx context.Context, req Request) (*Advice, error)
}

// ChatConfig holds chat-completion advisor configuration
type ChatConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatAdvisor asks an OpenAI-compatible chat completion endpoint
type ChatAdvisor struct {
	cfg    ChatConfig
	http   *httpclient.Client
	logger logging.Logger
}

// NewChatAdvisor creates a chat-completion backed advisor. Returns nil
// when no endpoint is configured so the caller degrades cleanly.
func NewChatAdvisor(cfg ChatConfig, client *httpclient.Client, logger logging.Logger) *ChatAdvisor {
	if cfg.Endpoint == "" {
		return nil
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &ChatAdvisor{cfg: cfg, http: client, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are a data quality expert analyzing duplicate organizations in a humanitarian aid registry.\n")
	groupName := req.GroupName
	if groupName == "" {
		groupName = "N/A"
	}
	fmt.Fprintf(&sb, "Group: %s\n", groupName)
	sb.WriteString("Members in this duplicate group:\n")
	for _, m := range req.Members {
		keep := "MERGE"
		if m.IsRecommended {
			keep = "KEEP"
		}
		kb := "No"
		if m.KBMatch {
			kb = "Yes"
		}
		fmt.Fprintf(&sb, "- ID: %d, Name: %s, Usage: %d instances, KB Match: %s, Current System Recommendation: %s\n",
			m.ID, m.Name, m.UsageCount, kb, keep)
	}
	sb.WriteString("Recommend ONE organization to keep as the master record.\n")
	sb.WriteString("Return strict JSON only:\n")
	sb.WriteString(`{"recommended_id": <int>, "recommended_name": "<string>", "reasoning": ["<reason1>", "<reason2>"], "analysis": "<short explanation>"}`)
	return sb.String()
}

// Advise posts the group to the completion endpoint and parses the reply
func (a *ChatAdvisor) Advise(ctx context.Context, req Request) (*Advice, error) {
	ctx, span := tracing.StartSpan(ctx, "recommend.ChatAdvisor.Advise")
	defer span.End()

	payload, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "Respond with valid JSON only."},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode advisor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create advisor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("api-key", a.cfg.APIKey)
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.http.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisor returned status %d", resp.StatusCode)
	}

	var completion chatResponse
	if err := json.Unmarshal(resp.Body, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode advisor response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("advisor returned no choices")
	}

	advice, err := parseAdvice(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	advice.Source = SourceAdvisor
	return advice, nil
}

var fencedJSON = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// parseAdvice extracts the advice JSON from free-form model output,
// trying a fenced block, then the outermost braces, then the raw text.
func parseAdvice(text string) (*Advice, error) {
	candidates := []string{}
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first != -1 && last != -1 && first < last {
		candidates = append(candidates, strings.TrimSpace(text[first:last+1]))
	}
	candidates = append(candidates, strings.TrimSpace(text))

	var lastErr error
	for _, candidate := range candidates {
		var raw struct {
			RecommendedID   int64           `json:"recommended_id"`
			RecommendedName string          `json:"recommended_name"`
			Reasoning       json.RawMessage `json:"reasoning"`
			Analysis        string          `json:"analysis"`
		}
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			lastErr = err
			continue
		}
		if raw.RecommendedID == 0 {
			lastErr = fmt.Errorf("advisor response missing recommended_id")
			continue
		}
		return &Advice{
			RecommendedID:   raw.RecommendedID,
			RecommendedName: raw.RecommendedName,
			Reasoning:       parseReasoning(raw.Reasoning),
			Analysis:        raw.Analysis,
		}, nil
	}

	return nil, fmt.Errorf("failed to parse advisor response: %w", lastErr)
}

func parseReasoning(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}
	return []string{string(raw)}
}

// Service answers advice requests, degrading to the deterministic
// knowledge-base ranking when the advisor fails.
type Service struct {
	advisor Advisor
	kb      *knowledgebase.KnowledgeBase
	logger  logging.Logger
}

// NewService creates an advice service. advisor may be nil.
func NewService(advisor Advisor, kb *knowledgebase.KnowledgeBase, logger logging.Logger) *Service {
	return &Service{advisor: advisor, kb: kb, logger: logger}
}

// Advise resolves the keeper for a duplicate group
func (s *Service) Advise(ctx context.Context, req Request) (*Advice, error) {
	ctx, span := tracing.StartSpan(ctx, "recommend.Service.Advise")
	defer span.End()

	if len(req.Members) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "no members provided in the group")
	}

	if s.advisor != nil {
		advice, err := s.advisor.Advise(ctx, req)
		if err == nil {
			if s.validMember(req, advice.RecommendedID) {
				return advice, nil
			}
			s.logger.WithContext(ctx).Warnf("Advisor recommended id %d outside the group, falling back", advice.RecommendedID)
		} else {
			s.logger.WithContext(ctx).WithError(err).Warn("Advisor unavailable, falling back to ranking")
		}
	}

	return s.fallback(req), nil
}

func (s *Service) validMember(req Request, id int64) bool {
	for _, m := range req.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// fallback ranks members with the knowledge-base scoring and keeps the
// highest, breaking ties on the lowest id.
func (s *Service) fallback(req Request) *Advice {
	best := req.Members[0]
	bestScore := s.kb.Recommend(best.Name, best.UsageCount).Score
	for _, m := range req.Members[1:] {
		score := s.kb.Recommend(m.Name, m.UsageCount).Score
		if score > bestScore || (score == bestScore && m.ID < best.ID) {
			best = m
			bestScore = score
		}
	}

	reasoning := []string{
		fmt.Sprintf("Highest ranking score (%.1f) among %d members", bestScore, len(req.Members)),
		fmt.Sprintf("Used by %d fund instances", best.UsageCount),
	}
	if rec := s.kb.Recommend(best.Name, best.UsageCount); rec.KBMatch {
		reasoning = append(reasoning, fmt.Sprintf("Matches known organization %q", rec.StandardName))
	}

	return &Advice{
		RecommendedID:   best.ID,
		RecommendedName: best.Name,
		Reasoning:       reasoning,
		Analysis:        "Deterministic ranking based on registry usage and the curated organization list.",
		Source:          SourceFallback,
	}
}
