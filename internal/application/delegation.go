package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
	"github.com/google/uuid"
)

const (
	stdoutSynthesisLimit = 500
	recursionLimitNote   = "recursion limit reached: delegation ceiling hit, no sub-agent spawned"
)

// DelegationService spawns the external reasoning process for sub-queries and
// records every result both on the server and in a local accumulator that the
// exec service folds into the namespace snapshot.
type DelegationService struct {
	client      ports.IndexClient
	runner      ports.AgentRunner
	dctx        domain.DelegationContext
	promptPaths []string
	timeout     time.Duration
	logger      *slog.Logger

	recorded []domain.SubcallResult
}

var _ ports.Delegator = (*DelegationService)(nil)

func NewDelegationService(
	client ports.IndexClient,
	runner ports.AgentRunner,
	dctx domain.DelegationContext,
	promptPaths []string,
	timeout time.Duration,
	logger *slog.Logger,
) *DelegationService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DelegationService{
		client:      client,
		runner:      runner,
		dctx:        dctx,
		promptPaths: promptPaths,
		timeout:     timeout,
		logger:      logger,
	}
}

// Delegate runs one sub-query. At the depth ceiling no process is spawned:
// the synthesized result is recorded exactly like a success so the caller's
// bookkeeping stays uniform.
func (s *DelegationService) Delegate(ctx context.Context, query, contextText, chunkID string) (domain.SubcallResult, error) {
	delegateID := uuid.Must(uuid.NewV7()).String()
	logger := s.logger.With("delegate_id", delegateID, "depth", s.dctx.Depth)

	if s.dctx.AtCeiling() {
		logger.Info("delegation ceiling reached", "ceiling", s.dctx.Ceiling)
		result := domain.SubcallResult{
			ChunkID:          ensureChunkID(chunkID, ""),
			Query:            query,
			Findings:         []domain.Finding{},
			SuggestedQueries: []string{},
			Depth:            s.dctx.Depth,
			Error:            recursionLimitNote,
		}
		if err := s.record(ctx, &result); err != nil {
			return domain.SubcallResult{}, err
		}
		return result, nil
	}

	instructions, err := s.readInstructions()
	if err != nil {
		return domain.SubcallResult{}, err
	}

	child := s.dctx.Child()
	req := ports.AgentRequest{
		Prompt:  composePrompt(instructions, query, contextText, chunkID),
		Timeout: s.timeout,
		ExtraEnv: []string{
			"SCOUT_DEPTH=" + strconv.Itoa(child.Depth),
			"SCOUT_NESTED=1",
		},
	}

	logger.Info("delegating sub-query", "chunk_id", chunkID, "child_depth", child.Depth)
	agentResult, err := s.runner.Run(ctx, req)
	if err != nil {
		logger.Warn("delegation failed", "error", err)
		return domain.SubcallResult{}, err
	}

	result := parseAgentOutput(agentResult.Stdout, chunkID)
	result.Query = query
	result.Depth = s.dctx.Depth

	if err := s.record(ctx, &result); err != nil {
		return domain.SubcallResult{}, err
	}
	logger.Info("delegation complete", "chunk_id", result.ChunkID, "findings", len(result.Findings))
	return result, nil
}

// Recorded drains results accumulated since the last call.
func (s *DelegationService) Recorded() []domain.SubcallResult {
	out := s.recorded
	s.recorded = nil
	return out
}

// record pushes the result to the server's subcall collection, mirrors it
// locally, and caches a pretty-printed copy in a buffer. The buffer write is
// best effort only.
func (s *DelegationService) record(ctx context.Context, result *domain.SubcallResult) error {
	_, err := s.client.Post(ctx, "/subcall_results", map[string]any{
		"chunk_id":           result.ChunkID,
		"query":              result.Query,
		"findings":           result.Findings,
		"suggested_queries":  result.SuggestedQueries,
		"answer_if_complete": nullableString(result.AnswerIfComplete),
	})
	if err != nil {
		return fmt.Errorf("record subcall result: %w", err)
	}

	pretty, marshalErr := json.MarshalIndent(result, "", "  ")
	if marshalErr == nil {
		_, bufErr := s.client.Post(ctx, "/buffers", map[string]any{
			"name":        "subcall_" + result.ChunkID,
			"content":     string(pretty),
			"description": "subcall result for: " + truncateString(result.Query, 100),
		})
		result.CacheErr = bufErr
	} else {
		result.CacheErr = marshalErr
	}

	s.recorded = append(s.recorded, *result)
	return nil
}

// readInstructions returns the sub-agent instruction document from the first
// candidate path that exists.
func (s *DelegationService) readInstructions() (string, error) {
	candidates := s.promptPaths
	if override := os.Getenv("SCOUT_AGENT_PROMPT"); override != "" {
		candidates = append([]string{override}, candidates...)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
	}
	return "", &domain.AgentPromptNotFoundError{Searched: candidates}
}

func composePrompt(instructions, query, contextText, chunkID string) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	if !strings.HasSuffix(instructions, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuery: ")
	sb.WriteString(query)
	sb.WriteString("\n")
	if chunkID != "" {
		sb.WriteString("Chunk ID: ")
		sb.WriteString(chunkID)
		sb.WriteString("\n")
	}
	if contextText != "" {
		sb.WriteString("\n--- CONTEXT ---\n")
		sb.WriteString(contextText)
		sb.WriteString("\n--- END CONTEXT ---\n")
	}
	return sb.String()
}

// parseAgentOutput recovers a structured result from whatever the sub-agent
// printed: direct JSON, a JSON object embedded in surrounding prose, or, as a
// last resort, a synthesized low-confidence finding from the raw text.
func parseAgentOutput(output, chunkID string) domain.SubcallResult {
	trimmed := strings.TrimSpace(output)

	if result, ok := decodeResult(trimmed, chunkID); ok {
		return result
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if result, ok := decodeResult(trimmed[start:end+1], chunkID); ok {
			return result
		}
	}

	return domain.SubcallResult{
		ChunkID: ensureChunkID(chunkID, ""),
		Findings: []domain.Finding{
			{Point: truncateString(trimmed, stdoutSynthesisLimit), Confidence: "low"},
		},
		SuggestedQueries: []string{},
	}
}

func decodeResult(text, chunkID string) (domain.SubcallResult, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.SubcallResult{}, false
	}

	result := domain.SubcallResult{
		ChunkID:          ensureChunkID(chunkID, stringField(raw, "chunk_id")),
		Findings:         decodeFindings(firstPresent(raw, "findings", "relevant")),
		SuggestedQueries: decodeStrings(firstPresent(raw, "suggested_queries", "suggested_next_queries")),
		AnswerIfComplete: stringField(raw, "answer_if_complete"),
	}
	return result, true
}

func decodeFindings(raw any) []domain.Finding {
	items, ok := raw.([]any)
	if !ok {
		return []domain.Finding{}
	}
	findings := make([]domain.Finding, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case map[string]any:
			findings = append(findings, domain.Finding{
				Point:      stringField(t, "point"),
				Evidence:   stringField(t, "evidence"),
				Confidence: stringField(t, "confidence"),
			})
		case string:
			findings = append(findings, domain.Finding{Point: t})
		}
	}
	return findings
}

func decodeStrings(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstPresent(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			return v
		}
	}
	return nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func ensureChunkID(caller, response string) string {
	if caller != "" {
		return caller
	}
	if response != "" {
		return response
	}
	return domain.UnknownChunkID
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func truncateString(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
