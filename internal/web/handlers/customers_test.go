package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/averma/kyc-verify/internal/customer"
)

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var response map[string]string
	parseJSONResponse(t, recorder, &response)
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %q", response["status"])
	}
}

func TestCreateCustomer(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, jsonRequest(t, http.MethodPost, "/customers", map[string]string{
		"name":        "Asha Verma",
		"dob":         "1990-05-04",
		"national_id": "123456789012",
	}))

	assertStatusCode(t, recorder, http.StatusCreated)

	var created customer.Customer
	parseJSONResponse(t, recorder, &created)
	if created.ID == "" || created.Name != "Asha Verma" {
		t.Errorf("unexpected response: %+v", created)
	}
	if created.State != customer.StateCreated {
		t.Errorf("expected Created state, got %s", created.State)
	}
}

func TestCreateCustomer_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad dob format", map[string]string{"name": "Asha", "dob": "04/05/1990", "national_id": "123456789012"}},
		{"missing name", map[string]string{"dob": "1990-05-04", "national_id": "123456789012"}},
		{"bad national id", map[string]string{"name": "Asha", "dob": "1990-05-04", "national_id": "12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := env.do(t, jsonRequest(t, http.MethodPost, "/customers", tt.body))
			assertStatusCode(t, recorder, http.StatusBadRequest)
		})
	}
}

func TestCreateCustomer_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader("{not json"))
	recorder := env.do(t, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestGetCustomer(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCustomer(t, "Asha", "123456789012")

	recorder := env.do(t, httptest.NewRequest(http.MethodGet, "/customers/"+c.ID, nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var got customer.Customer
	parseJSONResponse(t, recorder, &got)
	if got.ID != c.ID {
		t.Errorf("expected customer %s, got %s", c.ID, got.ID)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, httptest.NewRequest(http.MethodGet, "/customers/does-not-exist", nil))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestListCustomers(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomer(t, "Asha Verma", "123456789012")
	env.createCustomer(t, "Rahul Gupta", "123456789013")

	recorder := env.do(t, httptest.NewRequest(http.MethodGet, "/customers", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var response struct {
		Customers []customer.Customer `json:"customers"`
		Count     int                 `json:"count"`
	}
	parseJSONResponse(t, recorder, &response)
	if response.Count != 2 || len(response.Customers) != 2 {
		t.Errorf("expected 2 customers, got %+v", response)
	}
}

func TestListCustomers_NameFilter(t *testing.T) {
	env := newTestEnv(t)
	env.createCustomer(t, "Amélie Poulain", "123456789012")
	env.createCustomer(t, "Rahul Gupta", "123456789013")

	recorder := env.do(t, httptest.NewRequest(http.MethodGet, "/customers?name=amelie", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var response struct {
		Customers []customer.Customer `json:"customers"`
		Count     int                 `json:"count"`
	}
	parseJSONResponse(t, recorder, &response)
	if response.Count != 1 || response.Customers[0].Name != "Amélie Poulain" {
		t.Errorf("unexpected filter result: %+v", response)
	}
}

func TestBlacklistCustomer(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCustomer(t, "Asha", "123456789012")

	recorder := env.do(t, httptest.NewRequest(http.MethodPost, "/customers/"+c.ID+"/blacklist", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	// The record is gone for good.
	recorder = env.do(t, httptest.NewRequest(http.MethodGet, "/customers/"+c.ID, nil))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestBlacklistCustomer_NotFound(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, httptest.NewRequest(http.MethodPost, "/customers/nope/blacklist", nil))
	assertStatusCode(t, recorder, http.StatusNotFound)
}
