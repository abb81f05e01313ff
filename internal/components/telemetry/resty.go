package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_status   = "resty.status"
)

type restyReqKeyType int

var restyReqKey restyReqKeyType

type restyReq struct {
	id    uint64
	start time.Time
}

// InstrumentResty reports every request made by the client: a debug line when the request
// starts and ends, a warning on a non-2xx status and a broken report on transport errors.
func InstrumentResty(client *resty.Client, tel API) {
	var idcounter uint64

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		id := atomic.AddUint64(&idcounter, 1)
		req.SetContext(context.WithValue(req.Context(), restyReqKey, restyReq{
			id:    id,
			start: time.Now(),
		}))
		tel.ReportDebug(report_resty_request, id, req.Method, req.URL)
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		info, _ := res.Request.Context().Value(restyReqKey).(restyReq)
		tel.ReportDebug(
			report_resty_response,
			info.id,
			time.Since(info.start).String(),
			res.Status(),
		)
		if res.IsError() {
			tel.ReportWarning(report_resty_status, res.Request.Method, res.Request.URL, res.StatusCode())
		}
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		info, _ := req.Context().Value(restyReqKey).(restyReq)
		tel.ReportBroken(
			report_resty_response,
			err,
			req.Method,
			req.URL,
			time.Since(info.start),
		)
	})
}
