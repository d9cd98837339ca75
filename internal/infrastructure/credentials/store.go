// Package credentials loads per-platform authentication material. Cookie
// files live on disk in Netscape format, one file per platform, and are
// exposed to downloaders only as disposable copies so the canonical store is
// never mutated.
package credentials

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"RecipeSnap/internal/platform"
	"RecipeSnap/internal/ports"
)

const httpOnlyPrefix = "#HttpOnly_"

// Store resolves cookie files scoped by platform host.
type Store struct {
	dir      string
	registry *platform.Registry
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore points the store at a directory holding <platform>.txt files.
func NewStore(dir string, registry *platform.Registry) *Store {
	if registry == nil {
		registry = platform.NewRegistry()
	}
	return &Store{dir: dir, registry: registry}
}

// CredentialsFor returns the credential set for the URL's platform, or nil
// when the platform is unknown or carries no material. Material belonging to
// a different platform is never substituted.
func (s *Store) CredentialsFor(rawURL string) (*ports.CredentialSet, error) {
	p, ok := s.registry.Resolve(rawURL)
	if !ok {
		return nil, nil
	}

	path := filepath.Join(s.dir, p.Name+".txt")
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat cookie file: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	return &ports.CredentialSet{Platform: p.Name, CookieFile: path}, nil
}

// DisposableCopy duplicates the set's cookie file into a temp file the
// caller may hand to tooling that rewrites session state. The cleanup
// function removes the copy; the canonical file is left untouched.
func (s *Store) DisposableCopy(set *ports.CredentialSet) (string, func(), error) {
	if set == nil {
		return "", nil, fmt.Errorf("no credential set")
	}

	src, err := os.Open(set.CookieFile)
	if err != nil {
		return "", nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer src.Close()

	copyPath := filepath.Join(os.TempDir(), fmt.Sprintf("cookies-%s-%s.txt", set.Platform, uuid.NewString()))
	dst, err := os.OpenFile(copyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", nil, fmt.Errorf("create cookie copy: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(copyPath)
		return "", nil, fmt.Errorf("copy cookie file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(copyPath)
		return "", nil, fmt.Errorf("close cookie copy: %w", err)
	}

	cleanup := func() { os.Remove(copyPath) }
	return copyPath, cleanup, nil
}

// Cookie is one parsed browser cookie.
type Cookie struct {
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	Expires  int64
	Name     string
	Value    string
}

// Cookies parses the set's file for injection into a browser session.
func (s *Store) Cookies(set *ports.CredentialSet) ([]Cookie, error) {
	if set == nil {
		return nil, nil
	}

	f, err := os.Open(set.CookieFile)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()

	return parseNetscapeCookies(f)
}

// parseNetscapeCookies reads the Netscape cookies.txt format: seven
// tab-separated fields per line. Lines starting with # are comments, except
// the #HttpOnly_ prefix which marks a live cookie.
func parseNetscapeCookies(r io.Reader) ([]Cookie, error) {
	var cookies []Cookie

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}

		expires, _ := strconv.ParseInt(fields[4], 10, 64)
		cookies = append(cookies, Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HTTPOnly: httpOnly,
			Expires:  expires,
			Name:     fields[5],
			Value:    fields[6],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	return cookies, nil
}
