package middleware

import (
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "go.uber.org/zap/zaptest/observer"

    "github.com/iliyamo/event-reservation/internal/config"
    "github.com/iliyamo/event-reservation/internal/model"
    "github.com/iliyamo/event-reservation/internal/utils"
)

func TestClaimID(t *testing.T) {
    cases := []struct {
        in   interface{}
        want uint64
        ok   bool
    }{
        {float64(7), 7, true},
        {float64(0), 0, false},
        {float64(-3), 0, false},
        {int64(9), 9, true},
        {uint64(11), 11, true},
        {"12", 12, true},
        {"abc", 0, false},
        {nil, 0, false},
    }
    for _, tc := range cases {
        got, ok := claimID(tc.in)
        if ok != tc.ok || (ok && got != tc.want) {
            t.Errorf("claimID(%#v) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
        }
    }
}

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
    rec := httptest.NewRecorder()
    return echo.New().NewContext(req, rec), rec
}

func TestJWTAuth(t *testing.T) {
    valid, _ := utils.NewAccessToken("s", 5, "e@example.com", "Eve", model.RoleAdmin, 15)
    expired, _ := utils.NewAccessToken("s", 5, "", "", model.RoleUser, -5)

    cases := []struct {
        name   string
        header string
        want   int
    }{
        {"missing", "", http.StatusUnauthorized},
        {"not bearer", "Basic abc", http.StatusUnauthorized},
        {"expired", "Bearer " + expired.Token, http.StatusUnauthorized},
        {"valid", "Bearer " + valid.Token, http.StatusOK},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/", nil)
            if tc.header != "" {
                req.Header.Set(echo.HeaderAuthorization, tc.header)
            }
            c, rec := newContext(req)
            var actor model.Actor
            h := JWTAuth("s")(func(c echo.Context) error {
                actor, _ = ActorFrom(c)
                return c.NoContent(http.StatusOK)
            })
            if err := h(c); err != nil {
                t.Fatal(err)
            }
            if rec.Code != tc.want {
                t.Fatalf("status = %d, want %d", rec.Code, tc.want)
            }
            if tc.want == http.StatusOK {
                want := model.Actor{UserID: 5, Email: "e@example.com", Name: "Eve", Role: model.RoleAdmin}
                if actor != want {
                    t.Errorf("actor = %+v, want %+v", actor, want)
                }
            }
        })
    }
}

func TestRequireRole(t *testing.T) {
    cases := []struct {
        name string
        id   interface{}
        role interface{}
        want int
    }{
        {"anonymous", nil, nil, http.StatusUnauthorized},
        {"user", float64(2), model.RoleUser, http.StatusForbidden},
        {"admin", float64(1), model.RoleAdmin, http.StatusOK},
        {"missing role defaults to user", float64(3), nil, http.StatusForbidden},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
            c.Set("user_id", tc.id)
            c.Set("role", tc.role)
            h := RequireAdmin()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
            if err := h(c); err != nil {
                t.Fatal(err)
            }
            if rec.Code != tc.want {
                t.Errorf("status = %d, want %d", rec.Code, tc.want)
            }
        })
    }
}

func TestBuildRateKey(t *testing.T) {
    req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
    c, _ := newContext(req)
    c.SetPath("/v1/reservations")
    c.Set("user_id", float64(9))

    cases := map[string]string{
        "ip":            "rl:ip:10.0.0.1",
        "user":          "rl:user:9",
        "user_route":    "rl:user:9:route:POST /v1/reservations",
        "ip_user_route": "rl:ip:10.0.0.1:user:9:route:POST /v1/reservations",
        "bogus":         "rl:ip:10.0.0.1:user:9:route:POST /v1/reservations",
    }
    for strategy, want := range cases {
        got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
        if got != want {
            t.Errorf("%s: key = %q, want %q", strategy, got, want)
        }
    }
}

func TestCacheKeyFrom(t *testing.T) {
    key := func(target string, id string) string {
        c, _ := newContext(httptest.NewRequest(http.MethodGet, target, nil))
        c.SetPath("/v1/events/:id")
        c.SetParamNames("id")
        c.SetParamValues(id)
        return cacheKeyFrom(config.CacheConfig{Prefix: "cache:events", KeyStrategy: "route_query"}, c)
    }
    a := key("/v1/events/1", "1")
    if !strings.HasPrefix(a, "cache:events:") {
        t.Fatalf("key %q lacks prefix", a)
    }
    if a == key("/v1/events/2", "2") {
        t.Error("different events share a cache key")
    }
    if key("/v1/events/1?x=1", "1") == a {
        t.Error("query string ignored")
    }
    if key("/v1/events/1", "1") != a {
        t.Error("key is not stable")
    }
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
    next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
    for name, mw := range map[string]echo.MiddlewareFunc{
        "rate limit": NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
        "cache":      NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil),
    } {
        c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
        if err := mw(next)(c); err != nil || rec.Body.String() != "ok" {
            t.Errorf("%s without redis: err=%v body=%q", name, err, rec.Body.String())
        }
    }
}

func TestRecorderOverflow(t *testing.T) {
    r := &recorder{ResponseWriter: httptest.NewRecorder(), limit: 4}
    _, _ = r.Write([]byte("abc"))
    if r.overflow || r.buf.String() != "abc" {
        t.Fatalf("buf = %q overflow = %v", r.buf.String(), r.overflow)
    }
    _, _ = r.Write([]byte("de"))
    if !r.overflow || r.buf.Len() != 0 {
        t.Errorf("expected overflow, buf = %q", r.buf.String())
    }
}

func TestParseBucketResult(t *testing.T) {
    res, ok := parseBucketResult([]interface{}{int64(0), int64(0), int64(1500)})
    if !ok || res.allowed || res.retryAfter.Milliseconds() != 1500 {
        t.Errorf("result = %+v, %v", res, ok)
    }
    if _, ok := parseBucketResult("nope"); ok {
        t.Error("accepted malformed reply")
    }
}

func TestRequestLogger(t *testing.T) {
    core, logs := observer.New(zapcore.InfoLevel)
    e := echo.New()
    e.Use(RequestLogger(zap.New(core)))
    e.GET("/ok", func(c echo.Context) error {
        c.Set("user_id", float64(4))
        return c.NoContent(http.StatusNoContent)
    })
    e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "upstream") })

    for _, path := range []string{"/ok", "/boom"} {
        e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
    }
    entries := logs.All()
    if len(entries) != 2 {
        t.Fatalf("got %d log entries", len(entries))
    }
    first := entries[0].ContextMap()
    if first["status"] != int64(http.StatusNoContent) || first["user_id"] != "4" || first["path"] != "/ok" {
        t.Errorf("first entry = %v", first)
    }
    if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["status"] != int64(http.StatusBadGateway) {
        t.Errorf("second entry = %v %v", entries[1].Level, entries[1].ContextMap())
    }
}
