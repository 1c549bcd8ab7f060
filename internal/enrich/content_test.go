package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/venue"
)

const venuePage = `<!doctype html><html><body>
<h1>Château Fleuri</h1>
<p>Notre domaine dispose de 12 salles de réunion, d'un parking privé et
d'un restaurant gastronomique. WiFi gratuit dans tout l'établissement.</p>
<a href="mailto:contact@chateaufleuri.fr?subject=devis">Contact</a>
<a href="tel:+33140506070">Appelez-nous</a>
<img src="/photos/salle-1.jpg">
<img src="/assets/logo.png">
<img src="data:image/png;base64,iVBORw0KGgo=">
<img src="/assets/sprite-icons.svg">
<img data-src="https://cdn.example.com/photos/jardin.jpg">
</body></html>`

func newContentClient(t *testing.T) *ContentClient {
	t.Helper()
	c, err := NewContentClient(ContentOptions{
		RPS:         1000,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}, NewMemoryCache(), zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestContentClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, venuePage)
	}))
	defer srv.Close()

	c := newContentClient(t)
	got, err := c.Lookup(context.Background(), srv.URL)
	require.NoError(t, err)

	require.NotNil(t, got.RoomCount)
	require.Equal(t, 12, *got.RoomCount)
	require.NotNil(t, got.Parking)
	require.True(t, *got.Parking)
	require.NotNil(t, got.Restaurant)
	require.True(t, *got.Restaurant)
	require.NotNil(t, got.WiFi)
	require.True(t, *got.WiFi)
	require.NotNil(t, got.Spa)
	require.False(t, *got.Spa, "absent amenity is false, not nil: the page was read")

	require.NotNil(t, got.Email)
	require.Equal(t, "contact@chateaufleuri.fr", *got.Email)
	require.NotNil(t, got.Phone)
	require.Equal(t, "+33140506070", *got.Phone)

	require.Len(t, got.Images, 2, "logo, icon, and data URIs are chrome, not photography")
	require.Equal(t, srv.URL+"/photos/salle-1.jpg", got.Images[0])
	require.Equal(t, "https://cdn.example.com/photos/jardin.jpg", got.Images[1])
}

func TestContentClientCapsImages(t *testing.T) {
	var page strings.Builder
	page.WriteString("<html><body>")
	for i := 0; i < venue.MaxImages+10; i++ {
		fmt.Fprintf(&page, `<img src="/photos/room-%d.jpg">`, i)
	}
	page.WriteString("</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page.String())
	}))
	defer srv.Close()

	c := newContentClient(t)
	got, err := c.Lookup(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, got.Images, venue.MaxImages)
}

func TestContentClientRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, venuePage)
	}))
	defer srv.Close()

	c := newContentClient(t)
	got, err := c.Lookup(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, got.RoomCount)
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestContentClientCachesByURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, venuePage)
	}))
	defer srv.Close()

	c := newContentClient(t)
	ctx := context.Background()
	first, err := c.Lookup(ctx, srv.URL)
	require.NoError(t, err)
	second, err := c.Lookup(ctx, srv.URL)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestContentClientCollapsesConcurrentLookups(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		<-release
		fmt.Fprint(w, venuePage)
	}))
	defer srv.Close()

	c := newContentClient(t)
	ctx := context.Background()

	const callers = 4
	var wg sync.WaitGroup
	results := make([]venue.ContentResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Lookup(ctx, srv.URL)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i])
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&hits),
		"concurrent lookups for one website must share a single fetch")
}
