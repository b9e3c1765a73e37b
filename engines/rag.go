package engines

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	ragChatPath        = "/api/v1/rag/chat/multiple_kb/"
	ragStageOneMessage = "stage1_message"
	sseDataPrefix      = "data: "
	maxSSELineSize     = 4 * 1024 * 1024
)

type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

type ragHistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ragChatRequest struct {
	History []ragHistoryMessage `json:"history"`
	KBIDs   []string            `json:"kb_ids"`
	Query   string              `json:"query"`
}

type ragEvent struct {
	SSEType       string `json:"sse_type"`
	ChatSessionID string `json:"chatSessionId"`
	Message       struct {
		Role    string `json:"role"`
		Type    string `json:"type"`
		Content string `json:"content"`
	} `json:"message"`
}

// RAG queries a knowledge-base chat service that streams its answer as
// server-sent events.
type RAG struct {
	model      Model
	httpClient *http.Client
}

func NewRAGEngine(model Model, httpClient *http.Client) (*RAG, error) {
	if model.BaseURL == "" {
		return nil, fmt.Errorf("rag model %q requires a base url", model.Name)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: model.Timeout}
	}
	return &RAG{
		model:      model,
		httpClient: httpClient,
	}, nil
}

func (r *RAG) sessionID() string {
	if r.model.SessionID != "" {
		return r.model.SessionID
	}
	return uuid.New().String()
}

func (r *RAG) buildRequest(prompt *ChatPrompt) ragChatRequest {
	req := ragChatRequest{
		History: []ragHistoryMessage{},
		KBIDs:   r.model.KnowledgeBases,
	}
	if req.KBIDs == nil {
		req.KBIDs = []string{}
	}
	last := prompt.LastUserMessage()
	for i, msg := range prompt.History {
		if i == last {
			req.Query = msg.Text
			continue
		}
		req.History = append(req.History, ragHistoryMessage{Role: string(msg.Role), Content: msg.Text})
	}
	return req
}

func (r *RAG) Chat(ctx context.Context, prompt *ChatPrompt) (*ChatMessage, error) {
	body, err := json.Marshal(r.buildRequest(prompt))
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(r.model.BaseURL, "/") + ragChatPath + r.sessionID()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	if r.model.APIKey != "" {
		req.Header.Add("Authorization", "Bearer "+r.model.APIKey)
	}
	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(msg)}
	}
	text, err := r.parseStream(res.Body)
	if err != nil {
		return nil, err
	}
	return &ChatMessage{
		Role: ConvRoleAssistant,
		Text: text,
	}, nil
}

func (r *RAG) parseStream(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	var sb strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, sseDataPrefix)
		var event ragEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			log.WithField("model", r.model.Name).Debugf("skipping malformed event: %s", line)
			continue
		}
		if event.SSEType == ragStageOneMessage {
			sb.WriteString(event.Message.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading event stream: %w", err)
	}
	return sb.String(), nil
}
