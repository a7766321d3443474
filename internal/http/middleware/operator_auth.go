package middleware

import (
	"bytes"
	"encoding/base64"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	dbpkg "ablab/internal/db"
	httpctx "ablab/internal/http/ctx"
)

// OperatorAuth guards the ops-facing endpoints (decision, recent events,
// experiment listing) with HTTP Basic credentials checked against the
// bcrypt hash stored on the operator row.
func OperatorAuth(db *gorm.DB) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			username, password, ok := basicCredentials(ctx)
			if !ok {
				requireAuth(ctx)
				return
			}

			var op dbpkg.Operator
			if err := db.Where("username = ?", username).First(&op).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					requireAuth(ctx)
					return
				}
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("database error")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
				requireAuth(ctx)
				return
			}

			httpctx.SetOperator(ctx, &op)
			next(ctx)
		}
	}
}

func basicCredentials(ctx *fasthttp.RequestCtx) (username, password string, ok bool) {
	auth := ctx.Request.Header.Peek("Authorization")
	const prefix = "Basic "
	if !bytes.HasPrefix(auth, []byte(prefix)) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(string(auth[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	sep := bytes.IndexByte(decoded, ':')
	if sep < 0 {
		return "", "", false
	}
	return string(decoded[:sep]), string(decoded[sep+1:]), true
}

func requireAuth(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("WWW-Authenticate", `Basic realm="ablab"`)
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBodyString("unauthorized")
}
