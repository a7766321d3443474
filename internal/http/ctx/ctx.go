package ctx

import (
	"github.com/valyala/fasthttp"

	dbpkg "ablab/internal/db"
)

const (
	ServiceKeyKey = "serviceKey"
	OperatorKey   = "operator"
)

func SetServiceKey(ctx *fasthttp.RequestCtx, key *dbpkg.ServiceKey) {
	ctx.SetUserValue(ServiceKeyKey, key)
}

func ServiceKeyFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.ServiceKey, bool) {
	v := ctx.UserValue(ServiceKeyKey)
	if v == nil {
		return nil, false
	}
	k, ok := v.(*dbpkg.ServiceKey)
	return k, ok
}

func SetOperator(ctx *fasthttp.RequestCtx, op *dbpkg.Operator) {
	ctx.SetUserValue(OperatorKey, op)
}

func OperatorFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.Operator, bool) {
	v := ctx.UserValue(OperatorKey)
	if v == nil {
		return nil, false
	}
	op, ok := v.(*dbpkg.Operator)
	return op, ok
}
