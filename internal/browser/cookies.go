package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/stagehand/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cookie is the on-disk representation of a browser cookie. The field set
// matches what browser extensions export, so profiles produced by hand or by
// an export tool load the same way as profiles this program wrote itself.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expirationDate,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// cookieFile tolerates the wrapped export format {"cookies": [...]}.
type cookieFile struct {
	Cookies []Cookie `json:"cookies"`
}

// LoadCookies reads a cookie profile from disk. Both a bare JSON array and
// the {"cookies": [...]} wrapper are accepted.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, workflow.Errorf(workflow.ErrFileNotFound, "cookie profile %q: %v", path, err)
		}
		return nil, workflow.Errorf(workflow.ErrPersistence, "read cookie profile %q: %v", path, err)
	}
	return ParseCookies(data)
}

// ParseCookies decodes cookie JSON in either accepted shape.
func ParseCookies(data []byte) ([]Cookie, error) {
	var bare []Cookie
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var wrapped cookieFile
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, workflow.Errorf(workflow.ErrPersistence, "cookie profile is not valid JSON: %v", err)
	}
	if wrapped.Cookies == nil {
		return nil, workflow.Errorf(workflow.ErrPersistence, "cookie profile has no cookie list")
	}
	return wrapped.Cookies, nil
}

// SaveCookies writes the cookie profile as indented JSON, creating parent
// directories as needed.
func SaveCookies(path string, cookies []Cookie) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return workflow.Errorf(workflow.ErrPersistence, "create profile directory %q: %v", dir, err)
		}
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return workflow.Errorf(workflow.ErrPersistence, "encode cookie profile: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return workflow.Errorf(workflow.ErrPersistence, "write cookie profile %q: %v", path, err)
	}
	return nil
}

// normalizeSameSite maps the loose values seen in exported profiles onto the
// CDP enum. Unknown values return an empty string, which means the attribute
// is dropped rather than rejected.
func normalizeSameSite(value string) network.CookieSameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none", "no_restriction":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}

// toCookieParams converts stored cookies into CDP set-cookie parameters.
func toCookieParams(cookies []Cookie) ([]*network.CookieParam, error) {
	params := make([]*network.CookieParam, 0, len(cookies))
	for i, c := range cookies {
		if c.Name == "" || c.Domain == "" {
			return nil, workflow.Errorf(workflow.ErrPersistence,
				"cookie %d is missing a name or domain", i)
		}

		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Path == "" {
			param.Path = "/"
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(epochFloatToTime(c.Expires))
			param.Expires = &expires
		}
		if sameSite := normalizeSameSite(c.SameSite); sameSite != "" {
			param.SameSite = sameSite
		}
		params = append(params, param)
	}
	return params, nil
}

// fromNetworkCookies converts live browser cookies into the storage shape.
func fromNetworkCookies(cookies []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		stored := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			stored.Expires = c.Expires
		}
		switch c.SameSite {
		case network.CookieSameSiteStrict:
			stored.SameSite = "Strict"
		case network.CookieSameSiteLax:
			stored.SameSite = "Lax"
		case network.CookieSameSiteNone:
			stored.SameSite = "None"
		}
		out = append(out, stored)
	}
	return out
}

// epochFloatToTime converts a fractional unix timestamp to time.Time.
func epochFloatToTime(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// DescribeProfile returns a short summary used in log lines, never an error.
func DescribeProfile(cookies []Cookie) string {
	domains := make(map[string]struct{}, len(cookies))
	for _, c := range cookies {
		domains[c.Domain] = struct{}{}
	}
	return fmt.Sprintf("%d cookies across %d domains", len(cookies), len(domains))
}
