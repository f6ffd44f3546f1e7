// Package transport provides a RemoteExecutor implementation that
// dispatches a Spawn to a remote execution service over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nsbuild/dynexec/scheduler"
)

// Result is what RemoteClient decodes a remote execution service's
// response into.
type Result struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	// OutputDigest identifies the produced outputs in whatever
	// content-addressed store the remote service uses; this client
	// never interprets it, only carries it through.
	OutputDigest string `json:"output_digest"`
}

// RemoteClient implements scheduler.RemoteExecutor[Result] by POSTing a
// spawn description to a remote execution endpoint and decoding its
// JSON response.
//
// Example:
//
//	client := transport.NewRemoteClient("https://rex.example.com/v1/execute")
//	registry := &scheduler.Registry[transport.Result]{Remote: client, Local: localExec}
type RemoteClient struct {
	endpoint string
	client   *http.Client
}

// NewRemoteClient creates a RemoteClient targeting endpoint. Request
// timeouts are governed entirely by the context passed to ExecRemotely,
// matching how the rest of the scheduler threads cancellation.
func NewRemoteClient(endpoint string) *RemoteClient {
	return &RemoteClient{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

type execRequest struct {
	SpawnID  string   `json:"spawn_id"`
	Mnemonic string   `json:"mnemonic"`
	Inputs   []string `json:"inputs"`
}

// ExecRemotely sends spawn to the configured endpoint and decodes the
// response into a Result. A non-2xx HTTP status is reported as an
// error carrying the response body for diagnosis.
func (r *RemoteClient) ExecRemotely(ctx context.Context, spawn scheduler.Spawn) (Result, error) {
	var zero Result

	reqBody := execRequest{
		SpawnID:  spawn.ID(),
		Mnemonic: spawn.Mnemonic(),
		Inputs:   spawn.Inputs().ToList(),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return zero, fmt.Errorf("encode spawn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return zero, fmt.Errorf("build remote execution request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("remote execution request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("read remote execution response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, fmt.Errorf("remote execution service returned %d: %s", resp.StatusCode, body)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return zero, fmt.Errorf("decode remote execution response: %w", err)
	}
	return result, nil
}
