// Package gateway is the sole client of the Strategos worker-spawning HTTP
// service, treated as a black box: spawn / status / output / delete.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohankatakam/strategos-engine/internal/errors"
)

// Default retry/poll constants.
const (
	spawnBackoffBase  = 3 * time.Second
	spawnMaxRetries   = 3
	statusPollInterval = 5 * time.Second
	defaultWaitTimeout = 30 * time.Minute
	statusCallTimeout  = 30 * time.Second
)

// nonTransientPattern matches validation rejections the Strategos service
// returns for malformed requests — these fail immediately, no retry.
var nonTransientPattern = regexp.MustCompile(`(?i)label too long|invalid template|control character|validation`)

// Gateway is a thin HTTP client over the Strategos worker API.
type Gateway struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a Gateway. requestsPerSecond shapes outbound call rate
// independent of the spawn retry/backoff contract.
func New(baseURL, apiToken string, requestsPerSecond float64, logger *slog.Logger) *Gateway {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: statusCallTimeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:     logger.With("component", "gateway"),
	}
}

// SpawnRequest is the body of POST /spawn-from-template.
type SpawnRequest struct {
	Template       string `json:"template"`
	Label          string `json:"label"`
	ProjectPath    string `json:"projectPath"`
	ParentWorkerID string `json:"parentWorkerId,omitempty"`
	Task           struct {
		Description string `json:"description"`
	} `json:"task"`
}

// Spawn starts a worker from a template and returns its id. Transient
// failures (network errors, missing id in response, unclassified errors)
// retry with exponential backoff (base 3s, x2, up to 3 retries);
// non-transient failures (label too long, invalid template, control
// characters, validation rejections) fail immediately.
func (g *Gateway) Spawn(ctx context.Context, template, label, workingDir, parentID, taskDescription string) (string, error) {
	req := SpawnRequest{
		Template:       template,
		Label:          label,
		ProjectPath:    workingDir,
		ParentWorkerID: parentID,
	}
	req.Task.Description = taskDescription

	delay := spawnBackoffBase
	var lastErr error

	for attempt := 0; attempt <= spawnMaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying spawn", "attempt", attempt, "label", label, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		id, err := g.trySpawn(ctx, req)
		if err == nil {
			return id, nil
		}
		if isNonTransient(err) {
			return "", err
		}
		lastErr = err
	}

	return "", errors.NetworkErrorf(lastErr, "spawn failed after %d attempts", spawnMaxRetries+1)
}

func (g *Gateway) trySpawn(ctx context.Context, req SpawnRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("non-transient: failed to marshal spawn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/spawn-from-template", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	g.authorize(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transient: spawn request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", fmt.Errorf("non-transient: spawn rejected (%d): %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("transient: spawn server error (%d): %s", resp.StatusCode, string(data))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.ID == "" {
		return "", fmt.Errorf("transient: spawn response missing id")
	}

	return parsed.ID, nil
}

func isNonTransient(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "non-transient") || nonTransientPattern.MatchString(err.Error())
}

func (g *Gateway) authorize(req *http.Request) {
	if g.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiToken)
	}
}

// Status returns the raw status line for a worker: "status health progress% step".
func (g *Gateway) Status(ctx context.Context, id string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/status/"+id, nil)
	if err != nil {
		return "", err
	}
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", errors.NetworkError(err, "status request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NetworkError(err, "failed to read status body")
	}
	return strings.TrimSpace(string(data)), nil
}

// Output returns the worker's output text, optionally limited to the last
// lines lines (0 means unlimited).
func (g *Gateway) Output(ctx context.Context, id string, lines int) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	url := g.baseURL + "/output/" + id + "?strip_ansi=true"
	if lines > 0 {
		url += fmt.Sprintf("&lines=%d", lines)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", errors.NetworkError(err, "output request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NetworkError(err, "failed to read output body")
	}
	return string(data), nil
}

// Delete removes a worker. Best-effort: the Strategos API is assumed
// idempotent for delete, so any error is logged and swallowed.
func (g *Gateway) Delete(ctx context.Context, id string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/workers/"+id, nil)
	if err != nil {
		g.logger.Warn("failed to build delete request", "id", id, "error", err)
		return
	}
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug("worker delete failed, ignoring", "id", id, "error", err)
		return
	}
	resp.Body.Close()
}

// terminalSuccess and terminalFailure classify a status line's leading
// status word.
var terminalSuccess = map[string]bool{
	"done": true, "completed": true, "awaiting_review": true, "not_found": true,
}
var terminalFailure = map[string]bool{
	"error": true, "failed": true, "blocked": true,
}

// statusWord extracts the leading status token from a status line of the
// form "status health progress% step".
func statusWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// WaitForDone polls Status at a 5s interval until a terminal status is
// reached or timeout elapses. Network blips during polling re-poll without
// counting as a failure; only a terminal-failure word or timeout ends the
// wait unsuccessfully.
func (g *Gateway) WaitForDone(ctx context.Context, id string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		line, err := g.Status(ctx, id)
		if err == nil {
			word := statusWord(line)
			if terminalSuccess[word] {
				return line, nil
			}
			if terminalFailure[word] {
				return line, fmt.Errorf("worker %s terminated with status %q", id, word)
			}
		} else {
			g.logger.Debug("status poll failed, retrying", "id", id, "error", err)
		}

		if time.Now().After(deadline) {
			return "", errors.New(errors.ErrorTypeNetwork, errors.SeverityHigh, fmt.Sprintf("worker %s timed out after %s", id, timeout))
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
