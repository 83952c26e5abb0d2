package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPayments_Range(t *testing.T) {
	env := newHandlerEnv()
	for _, due := range []string{"2024-01-10", "2024-02-10", "2024-03-10"} {
		bill := createBill(t, env, `{"name": "Bill `+due+`", "amount": "10", "dueDate": "`+due+`"}`)
		id := itoa(bill.ID)
		c, rec := env.newContext(http.MethodPost, "/api/v1/bills/"+id+"/pay", `{"paymentDate": "`+due+`"}`, "id", id)
		asOwner(c, 1)
		require.NoError(t, env.obligations.PayBill(c))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"all", "", []string{"2024-01-10", "2024-02-10", "2024-03-10"}},
		{"from only", "?from=2024-02-10", []string{"2024-02-10", "2024-03-10"}},
		{"to is exclusive", "?to=2024-02-10", []string{"2024-01-10"}},
		{"both", "?from=2024-02-01&to=2024-03-01", []string{"2024-02-10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := env.newContext(http.MethodGet, "/api/v1/payments"+tt.query, "")
			asOwner(c, 1)
			require.NoError(t, env.payments.ListPayments(c))
			require.Equal(t, http.StatusOK, rec.Code)

			var response PaymentListResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			var dates []string
			for _, p := range response.Data {
				dates = append(dates, p.PaidDate)
			}
			assert.ElementsMatch(t, tt.expected, dates)
		})
	}
}

func TestListPayments_InvalidRange(t *testing.T) {
	env := newHandlerEnv()
	c, rec := env.newContext(http.MethodGet, "/api/v1/payments?from=jan&to=2024-13-01", "")
	asOwner(c, 1)
	require.NoError(t, env.payments.ListPayments(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Len(t, problem.Errors, 2)
}

func TestListCategories(t *testing.T) {
	env := newHandlerEnv()
	env.categoryRepo.AddCategory(1, "Utilities")
	env.categoryRepo.AddCategory(2, "Other owner")

	c, rec := env.newContext(http.MethodGet, "/api/v1/categories", "")
	asOwner(c, 1)
	require.NoError(t, env.categories.ListCategories(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response []CategoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "Utilities", response[0].Name)
}
