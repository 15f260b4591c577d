package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, server *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", server.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func jsonResponse(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func sampleOrder(id, status string) order {
	return order{
		ID:      id,
		Contact: orderContact{Name: "Ana", Surname: "Rojas", Email: "ana@example.cl"},
		Items: []orderItem{
			{ProductID: 1, Name: "Pan integral", UnitPrice: 1890, Quantity: 2, Subtotal: 3780},
		},
		Subtotal:     3780,
		ShippingCost: 3990,
		Total:        7770,
		Status:       status,
		CreatedAt:    time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestOrdersList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		jsonResponse(t, w, http.StatusOK, []order{
			sampleOrder("PED-17100000000001", "confirmado"),
			sampleOrder("PED-17100000000002", "enviado"),
		})
	}))
	defer server.Close()

	out, err := runCommand(t, server, "orders", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "PED-17100000000001")
	assert.Contains(t, out, "confirmado")
	assert.Contains(t, out, "$7.770")
	assert.Contains(t, out, "ana@example.cl")
	assert.Contains(t, out, "new")
}

func TestOrdersListEmailFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ana@example.cl", r.URL.Query().Get("email"))
		jsonResponse(t, w, http.StatusOK, []order{})
	}))
	defer server.Close()

	_, err := runCommand(t, server, "orders", "list", "--email", "ana@example.cl")
	require.NoError(t, err)
}

func TestOrdersGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/PED-17100000000001", r.URL.Path)
		jsonResponse(t, w, http.StatusOK, sampleOrder("PED-17100000000001", "confirmado"))
	}))
	defer server.Close()

	out, err := runCommand(t, server, "orders", "get", "PED-17100000000001")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana Rojas")
	assert.Contains(t, out, "2x Pan integral")
	assert.Contains(t, out, "total:    $7.770")
}

func TestOrdersGetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(t, w, http.StatusNotFound, errorEnvelope{Error: "order not found", Code: "not_found"})
	}))
	defer server.Close()

	_, err := runCommand(t, server, "orders", "get", "PED-999")
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Contains(t, err.Error(), "order not found")
}

func TestOrdersTimeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/PED-1/timeline", r.URL.Path)
		jsonResponse(t, w, http.StatusOK, []timelineEvent{
			{Type: "OrderCreated", Occurred: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)},
			{Type: "OrderStatusChanged", Reason: "sin stock", Occurred: time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)},
		})
	}))
	defer server.Close()

	out, err := runCommand(t, server, "orders", "timeline", "PED-1")
	require.NoError(t, err)
	assert.Contains(t, out, "OrderCreated")
	assert.Contains(t, out, "OrderStatusChanged  (sin stock)")
}

func TestOrdersSetStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/admin/orders/PED-1/status", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cancelado", req["status"])
		assert.Equal(t, "cliente se arrepintió", req["reason"])

		jsonResponse(t, w, http.StatusOK, sampleOrder("PED-1", "cancelado"))
	}))
	defer server.Close()

	out, err := runCommand(t, server, "orders", "set-status", "PED-1", "cancelado", "--reason", "cliente se arrepintió")
	require.NoError(t, err)
	assert.Contains(t, out, "PED-1 -> cancelado")
}

func TestOrdersSetStatusConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(t, w, http.StatusConflict, errorEnvelope{Error: "invalid order status transition", Code: "invalid_transition"})
	}))
	defer server.Close()

	_, err := runCommand(t, server, "orders", "set-status", "PED-1", "entregado")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_transition")
}

func TestOrdersMarkRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admin/orders/read", r.URL.Path)

		var req map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"PED-1", "PED-2"}, req["order_ids"])

		jsonResponse(t, w, http.StatusOK, map[string]int{"marked": 2})
	}))
	defer server.Close()

	out, err := runCommand(t, server, "orders", "mark-read", "PED-1", "PED-2")
	require.NoError(t, err)
	assert.Contains(t, out, "marked 2 of 2")
}

func TestOrdersUnread(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admin/orders/unread-count", r.URL.Path)
		jsonResponse(t, w, http.StatusOK, map[string]int{"unread": 7})
	}))
	defer server.Close()

	out, err := runCommand(t, server, "orders", "unread")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestShippingGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/shipping", r.URL.Path)
		jsonResponse(t, w, http.StatusOK, shippingConfig{
			BaseCost:      3990,
			FreeThreshold: 30000,
			FreeEnabled:   true,
			UpdatedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		})
	}))
	defer server.Close()

	out, err := runCommand(t, server, "shipping", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "base cost:      $3.990")
	assert.Contains(t, out, "free threshold: $30.000")
	assert.Contains(t, out, "free enabled:   true")
}

func TestShippingSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/admin/shipping", r.URL.Path)

		var req shippingConfig
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(2500), req.BaseCost)
		assert.Equal(t, int64(25000), req.FreeThreshold)
		assert.True(t, req.FreeEnabled)

		req.UpdatedAt = time.Now().UTC()
		jsonResponse(t, w, http.StatusOK, req)
	}))
	defer server.Close()

	out, err := runCommand(t, server, "shipping", "set",
		"--base-cost", "2500", "--free-threshold", "25000", "--free-enabled")
	require.NoError(t, err)
	assert.Contains(t, out, "base cost:      $2.500")
}

func TestFormatCLP(t *testing.T) {
	assert.Equal(t, "$0", formatCLP(0))
	assert.Equal(t, "$990", formatCLP(990))
	assert.Equal(t, "$3.990", formatCLP(3990))
	assert.Equal(t, "$1.234.567", formatCLP(1234567))
	assert.Equal(t, "-$500", formatCLP(-500))
}
