package listing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_NamesRoundTrip(t *testing.T) {
	for _, status := range Statuses() {
		parsed, err := ParseStatus(status.String())
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}
}

func TestParseStatus_RejectsFreeText(t *testing.T) {
	for _, name := range []string{"", "available", "DECLINED", "SOLD"} {
		_, err := ParseStatus(name)
		assert.Error(t, err, name)
	}
}

func TestStatus_ZeroValueInvalid(t *testing.T) {
	var s Status
	assert.False(t, s.Valid())
	_, err := s.MarshalText()
	assert.Error(t, err)
}

func TestStatus_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusDeclined})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"DECLINE"}`, string(b))

	var out struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"PENDING"}`), &out))
	assert.Equal(t, StatusPending, out.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"pending"}`), &out))
}

func TestSaleTransitions(t *testing.T) {
	assert.True(t, SaleTransitionAllowed(StatusAvailable, StatusUnavailable))

	assert.False(t, SaleTransitionAllowed(StatusUnavailable, StatusAvailable))
	assert.False(t, SaleTransitionAllowed(StatusAvailable, StatusPending))
	assert.False(t, SaleTransitionAllowed(StatusUnavailable, StatusUnavailable))
}

func TestExchangeTransitions(t *testing.T) {
	assert.True(t, ExchangeTransitionAllowed(StatusAvailable, StatusPending))
	assert.True(t, ExchangeTransitionAllowed(StatusPending, StatusAccepted))
	assert.True(t, ExchangeTransitionAllowed(StatusPending, StatusDeclined))

	assert.False(t, ExchangeTransitionAllowed(StatusAvailable, StatusAccepted))
	assert.False(t, ExchangeTransitionAllowed(StatusAccepted, StatusDeclined))
	assert.False(t, ExchangeTransitionAllowed(StatusDeclined, StatusAccepted))
	assert.False(t, ExchangeTransitionAllowed(StatusPending, StatusUnavailable))
}

func TestExchangeOpen(t *testing.T) {
	assert.True(t, ExchangeOpen(StatusAvailable))
	assert.True(t, ExchangeOpen(StatusPending))
	assert.False(t, ExchangeOpen(StatusAccepted))
	assert.False(t, ExchangeOpen(StatusDeclined))
}
