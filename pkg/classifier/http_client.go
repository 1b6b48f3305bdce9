package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type httpClient struct {
	endpoint string
	hc       *http.Client
}

// NewHTTP returns a client for the detector service at endpoint. Timeouts are
// taken from the request context, so hc should not set one.
func NewHTTP(endpoint string, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &httpClient{endpoint: strings.TrimRight(endpoint, "/"), hc: hc}
}

type detectReq struct {
	Images []string `json:"images"`
	Conf   float64  `json:"conf"`
}

type detectResp struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Results []ImagePrediction `json:"results"`
}

func (c *httpClient) Predict(ctx context.Context, absPaths []string, confThreshold float64) ([]ImagePrediction, error) {
	b, err := json.Marshal(detectReq{Images: absPaths, Conf: confThreshold})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/detect", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out detectResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("detector error %s: %s", out.Error, out.Message)
	}
	return out.Results, nil
}

// Close releases pooled connections.
func (c *httpClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}
