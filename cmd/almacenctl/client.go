package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// apiClient — тонкий клиент REST API витрины для административных команд.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("api: %s (HTTP %d)", e.Message, e.Status)
}

type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type orderItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type orderContact struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

type order struct {
	ID           string       `json:"id"`
	Contact      orderContact `json:"contact"`
	Items        []orderItem  `json:"items"`
	Subtotal     int64        `json:"subtotal"`
	ShippingCost int64        `json:"shipping_cost"`
	Total        int64        `json:"total"`
	Status       string       `json:"status"`
	Read         bool         `json:"read"`
	CreatedAt    time.Time    `json:"created_at"`
}

type timelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}

type shippingConfig struct {
	BaseCost      int64     `json:"base_cost"`
	FreeThreshold int64     `json:"free_threshold"`
	FreeEnabled   bool      `json:"free_enabled"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *apiClient) ListOrders(email string) ([]order, error) {
	path := "/api/v1/orders"
	if email != "" {
		path += "?email=" + url.QueryEscape(email)
	}
	var out []order
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) GetOrder(id string) (order, error) {
	var out order
	err := c.do(http.MethodGet, "/api/v1/orders/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *apiClient) OrderTimeline(id string) ([]timelineEvent, error) {
	var out []timelineEvent
	if err := c.do(http.MethodGet, "/api/v1/orders/"+url.PathEscape(id)+"/timeline", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) SetOrderStatus(id, status, reason string) (order, error) {
	body := map[string]string{"status": status}
	if reason != "" {
		body["reason"] = reason
	}
	var out order
	err := c.do(http.MethodPost, "/api/v1/admin/orders/"+url.PathEscape(id)+"/status", body, &out)
	return out, err
}

func (c *apiClient) MarkOrdersRead(ids []string) (int, error) {
	var out struct {
		Marked int `json:"marked"`
	}
	err := c.do(http.MethodPost, "/api/v1/admin/orders/read", map[string][]string{"order_ids": ids}, &out)
	return out.Marked, err
}

func (c *apiClient) UnreadCount() (int, error) {
	var out struct {
		Unread int `json:"unread"`
	}
	err := c.do(http.MethodGet, "/api/v1/admin/orders/unread-count", nil, &out)
	return out.Unread, err
}

func (c *apiClient) GetShipping() (shippingConfig, error) {
	var out shippingConfig
	err := c.do(http.MethodGet, "/api/v1/shipping", nil, &out)
	return out, err
}

func (c *apiClient) SetShipping(cfg shippingConfig) (shippingConfig, error) {
	body := map[string]interface{}{
		"base_cost":      cfg.BaseCost,
		"free_threshold": cfg.FreeThreshold,
		"free_enabled":   cfg.FreeEnabled,
	}
	var out shippingConfig
	err := c.do(http.MethodPut, "/api/v1/admin/shipping", body, &out)
	return out, err
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return &apiError{Status: resp.StatusCode, Code: envelope.Code, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
