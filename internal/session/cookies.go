package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const cookieTTL = 30 * 24 * time.Hour

// cookie is one mirrored auth entry with browser-cookie attributes, so a
// session survives a wiped primary store. Any reader of the file sees it.
type cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Expires  time.Time `json:"expires"`
	SameSite string    `json:"same_site"`
	Secure   bool      `json:"secure"`
}

type cookieFile struct {
	path    string
	cookies map[string]cookie
}

func openCookieFile(path string, now time.Time) (*cookieFile, error) {
	f := &cookieFile{path: path, cookies: map[string]cookie{}}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed reading cookie file with error=%w", err)
	}
	stored := []cookie{}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed unmarshaling cookie file with error=%w", err)
	}
	for _, ck := range stored {
		if ck.Expires.Before(now) {
			continue
		}
		f.cookies[ck.Name] = ck
	}
	return f, nil
}

func (f *cookieFile) get(name string, now time.Time) (string, bool) {
	ck, ok := f.cookies[name]
	if !ok || ck.Expires.Before(now) {
		return "", false
	}
	return ck.Value, true
}

func (f *cookieFile) set(name, value string, now time.Time, secure bool) {
	f.cookies[name] = cookie{
		Name:     name,
		Value:    value,
		Expires:  now.Add(cookieTTL),
		SameSite: "Lax",
		Secure:   secure,
	}
}

func (f *cookieFile) delete(name string) {
	delete(f.cookies, name)
}

func (f *cookieFile) save() error {
	stored := make([]cookie, 0, len(f.cookies))
	for _, ck := range f.cookies {
		stored = append(stored, ck)
	}
	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed marshaling cookie file with error=%w", err)
	}
	return writeFileAtomic(f.path, raw)
}

func writeFileAtomic(path string, raw []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed writing %s with error=%w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed renaming %s with error=%w", tmp, err)
	}
	return nil
}
