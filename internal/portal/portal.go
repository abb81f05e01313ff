// Package portal knows the fixed page structure of the university student portal and turns
// its server-rendered HTML into profile, grade, progress and semester summary records.
package portal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"

	"golang.org/x/text/unicode/norm"
)

const DefaultBaseUrl = "https://daotao.vku.udn.vn"

const (
	PathLogin    = "/sv"
	PathProfile  = "/sv/hoso"
	PathGrades   = "/sv/diem"
	PathProgress = "/sv/hoc-phan-con-lai"
)

// selectors the browser waits for before the page is considered loaded
const (
	SelectorProfile  = "div.profile-usertitle"
	SelectorGrades   = "table tr.even.pointer"
	SelectorProgress = "table tr"
)

const (
	markerSemester          = "Học kỳ"
	markerConvertedSemester = "Học kỳ riêng - Quy đổi"
	markerScoreUnavailable  = "chưa có"
	markerElective          = "Học phần tự chọn"
	markerNotYetTaken       = "Chưa học"

	ConvertedSemesterScore = 10.0
)

var (
	// ErrLayoutChanged is returned when a page no longer has the structure the extractors depend on.
	ErrLayoutChanged = errors.New("portal layout changed")
)

// RowParseError describes a single table row that could not be interpreted.
type RowParseError struct {
	Table string
	Row   int
	Err   error
}

func (e RowParseError) Error() string {
	return fmt.Sprintf("%s row %d: %s", e.Table, e.Row, e.Err)
}

func (e RowParseError) Unwrap() error {
	return e.Err
}

// Pages resolves the fixed portal paths against a base url.
type Pages struct {
	Base *url.URL
}

func NewPages(baseUrl string) (Pages, error) {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return Pages{}, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Pages{}, fmt.Errorf("portal base url must be absolute: %q", baseUrl)
	}
	return Pages{Base: parsed}, nil
}

func (p Pages) resolve(path string) string {
	return p.Base.ResolveReference(&url.URL{Path: path}).String()
}

func (p Pages) Login() string    { return p.resolve(PathLogin) }
func (p Pages) Profile() string  { return p.resolve(PathProfile) }
func (p Pages) Grades() string   { return p.resolve(PathGrades) }
func (p Pages) Progress() string { return p.resolve(PathProgress) }

// IsLoggedIn reports whether a browser that landed on rawUrl has completed the interactive
// login, meaning it is somewhere below /sv/ on the portal host other than the login page.
func (p Pages) IsLoggedIn(rawUrl string) bool {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return false
	}
	if parsed.Host != p.Base.Host || p.IsLoginPage(rawUrl) {
		return false
	}
	rest, ok := strings.CutPrefix(parsed.Path, PathLogin+"/")
	return ok && rest != ""
}

// IsLoginPage reports whether rawUrl is the portal's login page, which is where the portal
// redirects requests that carry an expired session.
func (p Pages) IsLoginPage(rawUrl string) bool {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return false
	}
	path := strings.TrimSuffix(parsed.Path, "/")
	return parsed.Host == p.Base.Host && (path == PathLogin || strings.HasSuffix(path, "/login"))
}

// Extractor implements the three page extraction procedures plus the semester summary table.
type Extractor struct {
	tel telemetry.API
}

func NewExtractor(tel telemetry.API) Extractor {
	assert.NotNil(tel, "tel")
	return Extractor{tel: telemetry.NewScopedAPI("portal", tel)}
}

// nfc normalizes text to the composed unicode form the markers are written in.
func nfc(s string) string {
	return norm.NFC.String(s)
}
