package recipegen

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barflow/barflow/internal/domain/recipe"
)

var negroni = recipe.Request{Ingredients: []string{"gin", "campari", "vermouth"}, Servings: 2}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	opts = append([]Option{WithRetryInterval(time.Millisecond)}, opts...)
	c, err := New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c, &calls
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestGenerate_PassesDocumentThrough(t *testing.T) {
	const doc = `{"name":"Negroni","steps":["stir","strain"],"extra":{"garnish":"orange"}}`
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "req-42", r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var ingredients []string
		assert.NoError(t, jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "ingredients" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				ingredients = append(ingredients, s)
				return err
			})
		}))
		assert.Equal(t, negroni.Ingredients, ingredients)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, doc)
	})

	got, err := c.Generate(context.Background(), negroni, "req-42")
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(got))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerate_RetriesThrottling(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}, WithMaxRetries(2))

			_, err := c.Generate(context.Background(), negroni, "")
			var upErr *UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, status, upErr.Status)
			assert.EqualValues(t, 3, calls.Load())
		})
	}
}

func TestGenerate_RecoversAfterRetry(t *testing.T) {
	var n atomic.Int32
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"name":"Paloma"}`)
	})

	got, err := c.Generate(context.Background(), negroni, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Paloma"}`, string(got))
	assert.EqualValues(t, 2, calls.Load())
}

func TestGenerate_DoesNotRetryOtherFailures(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Generate(context.Background(), negroni, "")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusInternalServerError, upErr.Status)
	assert.False(t, upErr.Retryable())
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := c.Generate(context.Background(), negroni, "")
	var timeoutErr *UpstreamTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerate_MalformedResponse(t *testing.T) {
	for name, body := range map[string]string{
		"not json":  `<html>oops</html>`,
		"array":     `[{"name":"Negroni"}]`,
		"string":    `"Negroni"`,
		"truncated": `{"name":`,
		"empty":     ``,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			_, err := c.Generate(context.Background(), negroni, "")
			var malformed *MalformedResponseError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}

func TestGenerate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, WithMaxRetries(0))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), negroni, "")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Zero(t, upErr.Status)
}
