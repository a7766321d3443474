package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "ablab/internal/db"
	"ablab/internal/experiment"
)

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		log.Printf("%s %s -> %d (%s) ip=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr())
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, data any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// experimentError maps registry lookup failures onto status codes and
// reports whether it handled the error.
func experimentError(ctx *fasthttp.RequestCtx, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, experiment.ErrNotFound):
		errResponse(ctx, fasthttp.StatusNotFound, "experiment not found")
	case errors.Is(err, experiment.ErrDisabled):
		errResponse(ctx, fasthttp.StatusForbidden, "experiment disabled")
	default:
		errResponse(ctx, fasthttp.StatusInternalServerError, "experiment lookup failed")
	}
	return true
}

// recordError maps event recorder failures onto status codes.
func recordError(ctx *fasthttp.RequestCtx, err error) {
	if errors.Is(err, dbpkg.ErrVariantMismatch) {
		errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	errResponse(ctx, fasthttp.StatusInternalServerError, "failed to record event")
}
