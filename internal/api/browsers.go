package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"golang.org/x/sync/singleflight"
)

// cookieName is the name of the cookie holding the browser id.
const cookieName = "leapcomplete"

// browsers holds the completion session of each browser. The least
// recently used session is dropped when the registry is full; a browser
// coming back afterwards starts over with a fresh session.
type browsers struct {
	cache  *lru.Cache[string, *session.Session]
	group  singleflight.Group
	create func(ctx context.Context, id string) (*session.Session, error)
}

func newBrowsers(size int, create func(context.Context, string) (*session.Session, error)) (*browsers, error) {
	cache, err := lru.New[string, *session.Session](size)
	if err != nil {
		return nil, err
	}
	return &browsers{cache: cache, create: create}, nil
}

// get returns the session of a browser, creating it on first use.
// Concurrent first requests of one browser share a single session.
func (b *browsers) get(ctx context.Context, id string) (*session.Session, error) {
	if sess, ok := b.cache.Get(id); ok {
		return sess, nil
	}
	v, err, _ := b.group.Do(id, func() (any, error) {
		if sess, ok := b.cache.Get(id); ok {
			return sess, nil
		}
		sess, err := b.create(ctx, id)
		if err != nil {
			return nil, err
		}
		b.cache.Add(id, sess)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

// wait blocks until the fetches of every live session have settled.
func (b *browsers) wait() {
	for _, sess := range b.cache.Values() {
		sess.Wait()
	}
}

// browserID returns the id stored in the browser's cookie, issuing one
// when the cookie is missing or cannot be decoded.
func (s *Server) browserID(w http.ResponseWriter, r *http.Request) (string, error) {
	// A decode error still yields a fresh session.
	cs, _ := s.sessionStore.Get(r, cookieName)
	if id, ok := cs.Values["id"].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	cs.Values["id"] = id
	if err := cs.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

// sessionFor returns the completion session of the requesting browser.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	id, err := s.browserID(w, r)
	if err != nil {
		return nil, err
	}
	return s.browsers.get(r.Context(), id)
}
