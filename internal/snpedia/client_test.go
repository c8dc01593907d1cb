package snpedia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wikiServer serves pages from a map keyed by page name and counts requests.
func wikiServer(t *testing.T, pages map[string]string, categories map[string][]string, hits map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "parse", q.Get("action"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "wikitext|categories", q.Get("prop"))

		name := q.Get("page")
		if hits != nil {
			hits[name]++
		}
		text, ok := pages[name]
		if !ok {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "missingtitle", "info": "The page you specified doesn't exist."},
			})
			return
		}
		var cats []map[string]string
		for _, c := range categories[name] {
			cats = append(cats, map[string]string{"*": c})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"parse": map[string]any{
				"title":      name,
				"wikitext":   map[string]string{"*": text},
				"categories": cats,
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetchPage(t *testing.T) {
	srv := wikiServer(t,
		map[string]string{"rs1801133": mthfrPage},
		map[string][]string{"rs1801133": {"Is a snp", "Metabolism"}},
		nil)

	c := NewClient(srv.URL)
	p, err := c.FetchPage(context.Background(), "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, "rs1801133", p.Name)
	assert.Equal(t, mthfrPage, p.Wikitext)
	assert.Equal(t, []string{"Is a snp", "Metabolism"}, p.Categories)
}

func TestClientFetchPage_NotFound(t *testing.T) {
	srv := wikiServer(t, nil, nil, nil)

	_, err := NewClient(srv.URL).FetchPage(context.Background(), "rs404")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestClientFetchPage_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchPage(context.Background(), "rs1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPageNotFound)
	assert.Contains(t, err.Error(), "503")
}

func TestNewClientDefaultURL(t *testing.T) {
	assert.Equal(t, DefaultAPIURL, NewClient("").baseURL)
}
