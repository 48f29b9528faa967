package charger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jameshartig/chargeplan/pkg/common"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/types"
)

// Gateway implements the System interface over the REST API of a charging
// gateway that holds the OCPP connections to the stations.
type Gateway struct {
	client    *http.Client
	baseURL   string
	token     string
	stationID string
}

func newGateway(baseURL, token, stationID string) *Gateway {
	return &Gateway{
		client:    common.HTTPClient(30 * time.Second),
		baseURL:   baseURL,
		token:     token,
		stationID: stationID,
	}
}

type gatewayResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (g *Gateway) connectorURL(connectorID int, elem ...string) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", err
	}
	parts := append([]string{"stations", g.stationID, "connectors", strconv.Itoa(connectorID)}, elem...)
	u.Path, err = url.JoinPath(u.Path, parts...)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// do sends the request built by newReq and decodes the result into dest. It
// retries once when the gateway is temporarily unavailable.
func (g *Gateway) do(ctx context.Context, newReq func() (*http.Request, error), dest any) error {
	for attempt := 0; attempt < 2; attempt++ {
		req, err := newReq()
		if err != nil {
			return err
		}
		if g.token != "" {
			req.Header.Set("Authorization", "Bearer "+g.token)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			log.Ctx(ctx).WarnContext(ctx, "charging gateway unavailable", slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt))
			continue
		default:
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		var gr gatewayResponse
		if err := json.Unmarshal(body, &gr); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to decode gateway response", slog.Any("error", err), slog.String("body", string(body)))
			return err
		}
		if !gr.Success {
			if gr.Message == "" {
				return fmt.Errorf("gateway unknown error")
			}
			return fmt.Errorf("gateway error: %s", gr.Message)
		}
		if dest != nil {
			if err := json.Unmarshal(gr.Result, dest); err != nil {
				return fmt.Errorf("failed to decode gateway result: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("gateway unavailable for station %s", g.stationID)
}

// GetStatus fetches the connector's status from the gateway.
func (g *Gateway) GetStatus(ctx context.Context, connectorID int) (types.ConnectorStatus, error) {
	u, err := g.connectorURL(connectorID)
	if err != nil {
		return types.ConnectorStatus{}, err
	}
	var status types.ConnectorStatus
	err = g.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, &status)
	if err != nil {
		return types.ConnectorStatus{}, fmt.Errorf("failed to get connector %d status: %w", connectorID, err)
	}
	status.ConnectorID = connectorID
	return status, nil
}

// SetLimit asks the gateway to apply limit to the connector.
func (g *Gateway) SetLimit(ctx context.Context, connectorID int, limit types.AppliedLimit) error {
	u, err := g.connectorURL(connectorID, "limit")
	if err != nil {
		return err
	}
	body, err := json.Marshal(limit)
	if err != nil {
		return err
	}
	err = g.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to set connector %d limit: %w", connectorID, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "gateway limit applied",
		slog.String("stationID", g.stationID),
		slog.Int("connectorID", connectorID),
		slog.Bool("unlimited", limit.Unlimited),
		slog.Float64("limit", limit.Limit),
	)
	return nil
}
