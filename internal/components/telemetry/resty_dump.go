package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

const report_resty_dump = "resty.dump"

// RestyDump writes every http exchange of a client to its own file, for looking at what the
// portal actually served.
type RestyDump struct {
	dir     string
	counter *uint64
	tel     API
}

// NewRestyDump empties dir and dumps into it.
func NewRestyDump(dir string, tel API) (RestyDump, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return RestyDump{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return RestyDump{}, err
	}
	var counter uint64
	return RestyDump{dir: dir, counter: &counter, tel: tel}, nil
}

func (d RestyDump) write(res *resty.Response) {
	id := atomic.AddUint64(d.counter, 1)
	name := fmt.Sprintf("%04d-%s.txt", id, strings.ToLower(res.Request.Method))
	err := os.WriteFile(filepath.Join(d.dir, name), []byte(formatExchange(res)), 0600)
	if err != nil {
		d.tel.ReportWarning(report_resty_dump, name, err)
	}
}

// DumpResty makes client write every response it receives to dump.
func DumpResty(client *resty.Client, dump RestyDump) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		dump.write(res)
		return nil
	})
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{}
	for _, k := range keys {
		for _, v := range headers[k] {
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(lines, "\n")
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<failed to get request body: %s>", err)
	}
	defer body.Close()
	read, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<failed to read request body: %s>", err)
	}
	return string(read)
}

const exchangeTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%d %s

%s

%s`

func formatExchange(res *resty.Response) string {
	raw := res.Request.RawRequest

	landed := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		landed = res.RawResponse.Request.URL.String()
	}

	return fmt.Sprintf(
		exchangeTemplate,
		res.Request.Method, res.Request.URL,
		formatHeaders(raw.Header),
		formatRequestBody(raw),
		res.StatusCode(), landed,
		formatHeaders(res.Header()),
		res.String(),
	)
}
