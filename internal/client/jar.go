package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// storedCookie is the on-disk form of one cookie
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires"`
}

// FileJar is a cookie jar for one API origin that survives between CLI runs
type FileJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	base    *url.URL
	path    string
	cookies map[string]storedCookie
	now     func() time.Time
}

// NewFileJar loads the jar stored at path for base. A missing file yields an
// empty jar.
func NewFileJar(base *url.URL, path string) (*FileJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &FileJar{
		jar:     inner,
		base:    base,
		path:    path,
		cookies: map[string]storedCookie{},
		now:     time.Now,
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *FileJar) load() error {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cookie jar: %w", err)
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode cookie jar %s: %w", j.path, err)
	}
	now := j.now()
	var live []*http.Cookie
	for _, c := range stored {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		j.cookies[c.Name] = c
		live = append(live, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	j.jar.SetCookies(j.base, live)
	return nil
}

// SetCookies implements http.CookieJar and records cookies of the API origin
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if u.Host != j.base.Host {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for _, c := range cookies {
		expires := c.Expires
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, c.Name)
			continue
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if !expires.IsZero() && !expires.After(now) {
			delete(j.cookies, c.Name)
			continue
		}
		j.cookies[c.Name] = storedCookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: expires}
	}
}

// Cookies implements http.CookieJar
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Value returns the stored value of cookie name
func (j *FileJar) Value(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	return c.Value, ok
}

// Remove expires cookie name locally
func (j *FileJar) Remove(name string) {
	j.SetCookies(j.base, []*http.Cookie{{Name: name, Path: "/", MaxAge: -1}})
}

// Save writes the jar to disk with owner-only permissions
func (j *FileJar) Save() error {
	j.mu.Lock()
	stored := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		stored = append(stored, c)
	}
	j.mu.Unlock()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(j.path, data, 0o600)
}
