package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenTDB(t *testing.T, handler http.HandlerFunc) *OpenTDBClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenTDBClient(OpenTDBOptions{BaseURL: srv.URL, MinInterval: time.Millisecond})
}

func TestOpenTDBFetchSendsCategory(t *testing.T) {
	var gotQuery string
	client := newTestOpenTDB(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"response_code":0,"results":[{"category":"Science & Nature","type":"multiple","difficulty":"easy","question":"Q","correct_answer":"A","incorrect_answers":["B","C","D"]}]}`)
	})

	qs, err := client.Fetch(context.Background(), 5, 17, "")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Contains(t, gotQuery, "category=17")
	assert.Contains(t, gotQuery, "amount=5")
	assert.Contains(t, gotQuery, "type=multiple")
}

func TestOpenTDBFetchClassifiesResponseCodes(t *testing.T) {
	cases := map[int]error{
		1: ErrNoResults,
		2: ErrInvalidParameter,
		3: ErrTokenNotFound,
		4: ErrTokenEmpty,
		5: ErrRateLimited,
	}
	for code, want := range cases {
		code, want := code, want
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			client := newTestOpenTDB(t, func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprintf(w, `{"response_code":%d,"results":[]}`, code)
			})
			_, err := client.Fetch(context.Background(), 1, 0, "")
			assert.True(t, errors.Is(err, want), "got %v", err)
		})
	}
}

func TestOpenTDBFetchRateLimitedStatus(t *testing.T) {
	client := newTestOpenTDB(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.Fetch(context.Background(), 1, 0, "")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestOpenTDBFetchMalformedPayload(t *testing.T) {
	client := newTestOpenTDB(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `not json`)
	})
	_, err := client.Fetch(context.Background(), 1, 0, "")
	assert.ErrorIs(t, err, ErrEmptyResults)
}

func TestOpenTDBCategoryID(t *testing.T) {
	id, ok := OpenTDBCategoryID("Technology")
	assert.True(t, ok)
	assert.Equal(t, 18, id)

	_, ok = OpenTDBCategoryID("Cooking")
	assert.False(t, ok)
}
