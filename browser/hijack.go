package browser

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps human-readable config strings to Rod protocol
// resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// mountHijack installs the page's single request interceptor. It serves
// two jobs that must share one router (the CDP Fetch domain tolerates only
// one interceptor per page): rewriting the document request of a POST
// navigation, and blocking the configured resource types.
func (d *Page) mountHijack(blockedTypes []string) error {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}

	router := d.p.HijackRequests()
	err := router.Add("*", "", func(ctx *rod.Hijack) {
		if d.pending != nil && !d.pending.loaded &&
			ctx.Request.Type() == proto.NetworkResourceTypeDocument &&
			ctx.Request.URL().String() == d.pending.url {
			d.loadAsPost(ctx)
			return
		}

		if _, shouldBlock := blocked[ctx.Request.Type()]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return err
	}

	// router.Run() blocks until router.Stop().
	go router.Run()
	d.router = router
	return nil
}

// loadAsPost rewrites the intercepted document request into a POST with
// the pending body, performs it, and records the response status for the
// navigation result.
func (d *Page) loadAsPost(ctx *rod.Hijack) {
	req := ctx.Request.Req()
	req.Method = http.MethodPost
	req.Body = io.NopCloser(strings.NewReader(d.pending.body))
	req.ContentLength = int64(len(d.pending.body))
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if err := ctx.LoadResponse(http.DefaultClient, true); err != nil {
		ctx.Response.Fail(proto.NetworkErrorReasonFailed)
		return
	}
	d.pending.status = ctx.Response.Payload().ResponseCode
	d.pending.loaded = true
}

func (d *Page) stopHijack() {
	if d.router != nil {
		_ = d.router.Stop()
		d.router = nil
	}
}
