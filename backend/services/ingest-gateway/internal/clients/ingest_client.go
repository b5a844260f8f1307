package clients

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// IngestClient relays device frames to the tracking-service ingest endpoint.
type IngestClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// IngestRequest payload for POST /positions/ingest.
type IngestRequest struct {
	RawHex   string `json:"raw_hex"`
	SourceIP string `json:"source_ip"`
}

type ingestResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	IMEI   string `json:"imei"`
	ID     int64  `json:"id"`
}

// NewIngestClient returns client wrapper. An empty baseURL disables it.
func NewIngestClient(baseURL string, timeout time.Duration, logger *zap.Logger) *IngestClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IngestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Enabled reports whether a primary destination is configured.
func (c *IngestClient) Enabled() bool {
	return c.baseURL != ""
}

// Forward posts one frame hex encoded.
func (c *IngestClient) Forward(ctx context.Context, frame []byte, sourceIP string) error {
	if !c.Enabled() {
		c.logger.Debug("ingest client disabled, skipping frame")
		return nil
	}
	data, err := json.Marshal(IngestRequest{RawHex: hex.EncodeToString(frame), SourceIP: sourceIP})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/positions/ingest", c.baseURL), bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ingest request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingest returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Debug("ingest response not decodable", zap.Error(err))
		return nil
	}
	c.logger.Debug("frame ingested",
		zap.String("status", out.Status),
		zap.String("reason", out.Reason),
		zap.String("imei", out.IMEI),
		zap.Int64("position_id", out.ID),
	)
	return nil
}
