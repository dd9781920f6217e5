package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPassesWindow(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"limit":       r.URL.Query().Get("limit"),
			"from_number": r.URL.Query().Get("from_number"),
			"to_number":   r.URL.Query().Get("to_number"),
		}
		w.Write([]byte(`{"total":2,"results":[
			{"number":101,"tx_id":"aa","content_type":"image/png","content_length":10,
			 "genesis_fee":"550","genesis_block_height":780000,"value":"10000","timestamp":1675351200000},
			{"number":102,"tx_id":"bb","content_type":"text/plain","content_length":5,
			 "genesis_fee":"300","genesis_block_height":780001,"value":"546","timestamp":1675351260000}
		]}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).List(context.Background(), 60, 101, 160)
	require.NoError(t, err)

	assert.Equal(t, "60", gotQuery["limit"])
	assert.Equal(t, "101", gotQuery["from_number"])
	assert.Equal(t, "160", gotQuery["to_number"])

	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Results, 2)
	assert.Equal(t, uint64(101), page.Results[0].Number)
	assert.Equal(t, "image/png", page.Results[0].ContentType)
	fee, err := page.Results[0].GenesisFee.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(550), fee)
}

func TestRemaining(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "1001", r.URL.Query().Get("from_number"))
		assert.Empty(t, r.URL.Query().Get("to_number"))
		w.Write([]byte(`{"total":77,"results":[]}`))
	}))
	defer srv.Close()

	remaining, err := New(srv.URL).Remaining(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 77, remaining)
}

func TestContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/42/content", r.URL.Path)
		w.Write([]byte("raw image bytes"))
	}))
	defer srv.Close()

	data, err := New(srv.URL).Content(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw image bytes"), data)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		notFound  bool
		transient bool
	}{
		{"NotFound", http.StatusNotFound, true, false},
		{"RateLimited", http.StatusTooManyRequests, false, true},
		{"ServerError", http.StatusInternalServerError, false, true},
		{"BadGateway", http.StatusBadGateway, false, true},
		{"ClientError", http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(srv.URL).Content(context.Background(), 1)
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	_, err := New(srv.URL).Content(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
