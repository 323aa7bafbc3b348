package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Name string `form:"name" json:"name"`
}

type echoResponse struct {
	Greeting string `json:"greeting"`
	UserID   string `json:"user_id,omitempty"`
}

func echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Name == "" {
		return nil, errorx.New(errorx.BadRequest, "Empty name")
	}

	if req.Name == "boom" {
		return nil, errors.New("database is down")
	}

	return &echoResponse{Greeting: "hello " + req.Name, UserID: xcontext.RequestUserID(ctx)}, nil
}

func do(t *testing.T, h http.Handler, method, target, body string) response {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRouter_Envelope(t *testing.T) {
	r := New(context.Background())
	GET(r, "/echo", echo)
	POST(r, "/echo", echo)
	h := r.Handler([]string{"*"})

	resp := do(t, h, http.MethodGet, "/echo?name=alice", "")
	require.EqualValues(t, 0, resp.Code)
	require.Equal(t, map[string]any{"greeting": "hello alice"}, resp.Data)

	resp = do(t, h, http.MethodPost, "/echo", `{"name":"bob"}`)
	require.EqualValues(t, 0, resp.Code)
	require.Equal(t, map[string]any{"greeting": "hello bob"}, resp.Data)

	resp = do(t, h, http.MethodGet, "/echo", "")
	require.EqualValues(t, errorx.BadRequest, resp.Code)
	require.Equal(t, "Empty name", resp.Error)

	resp = do(t, h, http.MethodGet, "/echo?name=boom", "")
	require.EqualValues(t, errorx.Unknown.Code, resp.Code)
	require.Equal(t, errorx.Unknown.Message, resp.Error)

	resp = do(t, h, http.MethodPost, "/echo", `{"name":`)
	require.EqualValues(t, errorx.BadRequest, resp.Code)
}

func TestRouter_Middlewares(t *testing.T) {
	r := New(context.Background())

	closed := 0
	r.AddCloser(func(ctx context.Context) { closed++ })

	authed := r.Branch()
	authed.Before(func(ctx context.Context) (context.Context, error) {
		id := xcontext.HTTPRequest(ctx).Header.Get("X-User")
		if id == "" {
			return nil, errorx.New(errorx.Unauthenticated, "Unauthenticated")
		}

		return xcontext.WithRequestUserID(ctx, id), nil
	})

	var seen any
	authed.After(func(ctx context.Context) (context.Context, error) {
		seen = xcontext.Response(ctx)
		return nil, nil
	})

	GET(authed, "/me", echo)
	GET(r, "/public", echo)
	h := r.Handler([]string{"*"})

	resp := do(t, h, http.MethodGet, "/me?name=x", "")
	require.EqualValues(t, errorx.Unauthenticated, resp.Code)
	require.Nil(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/me?name=x", nil)
	req.Header.Set("X-User", "0xabc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `"user_id":"0xabc"`)
	require.Equal(t, &echoResponse{Greeting: "hello x", UserID: "0xabc"}, seen)

	// The branch middleware does not leak into the parent router.
	resp = do(t, h, http.MethodGet, "/public?name=y", "")
	require.EqualValues(t, 0, resp.Code)

	require.Equal(t, 3, closed)
}
