package boltwood

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reading = `{
	"ClientTransactionID": 1,
	"ServerTransactionID": 42,
	"ErrorNumber": 0,
	"ErrorMessage": "",
	"Value": {
		"cloudcover": 25.0,
		"dewpoint": 3.5,
		"humidity": 68.0,
		"rainrate": 0.0,
		"skytemperature": -28.5,
		"temperature": 11.2,
		"windgust": 6.1,
		"windspeed": 4.2
	}
}`

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reading))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Get()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), resp.ServerTransactionID)
	require.NotNil(t, resp.Value.CloudCover)
	assert.Equal(t, 25.0, *resp.Value.CloudCover)
	assert.Nil(t, resp.Value.Pressure)
}

func TestGetDeviceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ErrorNumber": 1025, "ErrorMessage": "Invalid value", "Value": {}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Get()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "1025")
}

func TestFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reading))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Get()
	require.NoError(t, err)
	fields := resp.Value.Fields()
	assert.Equal(t, 4.2, fields["windspeed"])
	assert.Equal(t, -28.5, fields["skytemp"])
	_, ok := fields["pressure"]
	assert.False(t, ok)
}

func TestRow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reading))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Get()
	require.NoError(t, err)
	row := resp.Row()
	require.Equal(t, len(Columns), len(row))
	assert.Equal(t, 42.0, row[1])
	assert.Equal(t, 25.0, row[5])
	assert.Nil(t, row[8]) // pressure not reported
}
