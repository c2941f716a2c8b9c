package handler

import (
    "context"      // bounded DB calls
    "database/sql" // sql.ErrNoRows on unknown users
    "errors"       // errors.Is on repository sentinels
    "net/http"     // HTTP status codes
    "strconv"      // string "sub" claims
    "strings"      // input normalization
    "time"         // token expiry and timeouts

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing
    "go.uber.org/zap"             // logs unexpected failures

    "github.com/iliyamo/event-reservation/internal/config"     // app configuration
    "github.com/iliyamo/event-reservation/internal/model"      // users and roles
    "github.com/iliyamo/event-reservation/internal/repository" // users and refresh tokens
    "github.com/iliyamo/event-reservation/internal/utils"      // hashing and token issuing
)

const authTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  *repository.UserRepo
    Tokens *repository.TokenRepo
    Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, log *zap.Logger) *AuthHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

type registerReq struct {
    Email    string `json:"email"`
    Name     string `json:"name"`
    Password string `json:"password"`
    Role     string `json:"role"` // USER | ADMIN
}

type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type userPart struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Name  string `json:"name"`
    Role  string `json:"role"`
}

type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// issued is a fresh token pair whose refresh half is not yet persisted.
type issued struct {
    access  utils.AccessToken
    refresh utils.RefreshToken
}

func (h *AuthHandler) issue(u model.User) (issued, error) {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Name, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return issued{}, err
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return issued{}, err
    }
    return issued{access: access, refresh: refresh}, nil
}

func (p issued) response(u model.User) authResp {
    return authResp{
        User:    userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
        Access:  tokenPart{Token: p.access.Token, Expires: p.access.Exp},
        Refresh: tokenPart{Token: p.refresh.Raw, Expires: p.refresh.Exp},
    }
}

// startSession issues a pair for u and stores the refresh token.
func (h *AuthHandler) startSession(ctx context.Context, u model.User) (authResp, error) {
    pair, err := h.issue(u)
    if err != nil {
        return authResp{}, err
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(pair.refresh.Raw), pair.refresh.Exp); err != nil {
        return authResp{}, err
    }
    return pair.response(u), nil
}

func (h *AuthHandler) internal(c echo.Context, op string, err error) error {
    h.Log.Error("auth failure", zap.String("op", op), zap.Error(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

func invalidRefresh(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
}

// Register creates a user and signs them in.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    email := strings.ToLower(strings.TrimSpace(req.Email))
    if email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }
    if err := utils.ValidatePassword(req.Password); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    role := strings.ToUpper(strings.TrimSpace(req.Role))
    if role != model.RoleAdmin {
        role = model.RoleUser
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    u := model.User{Email: email, Name: strings.TrimSpace(req.Name), Role: role, IsActive: true}
    id, err := h.Users.Create(ctx, u.Email, u.Name, req.Password, role, h.Cfg.BcryptCost)
    if errors.Is(err, repository.ErrEmailExists) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
    }
    if err != nil {
        return h.internal(c, "register", err)
    }
    u.ID = id

    resp, err := h.startSession(ctx, u)
    if err != nil {
        return h.internal(c, "register", err)
    }
    h.Log.Info("user registered", zap.Uint64("user_id", id), zap.String("role", role))
    return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    email := strings.ToLower(strings.TrimSpace(req.Email))
    if email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, email)
    if errors.Is(err, sql.ErrNoRows) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    if err != nil {
        return h.internal(c, "login", err)
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    if !u.IsActive {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "account is disabled"})
    }

    resp, err := h.startSession(ctx, u)
    if err != nil {
        return h.internal(c, "login", err)
    }
    return c.JSON(http.StatusOK, resp)
}

// refreshOwner resolves the user behind a refresh token in the body.
func (h *AuthHandler) refreshOwner(ctx context.Context, raw string) (model.User, string, error) {
    hash := utils.HashRefreshRaw(raw)
    id, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return model.User{}, hash, err
    }
    u, err := h.Users.GetByID(ctx, id)
    if errors.Is(err, sql.ErrNoRows) {
        return model.User{}, hash, repository.ErrRefreshInvalid
    }
    return u, hash, err
}

func bindRefresh(c echo.Context) (string, bool) {
    var req refreshReq
    if err := c.Bind(&req); err != nil {
        return "", false
    }
    raw := strings.TrimSpace(req.RefreshToken)
    return raw, raw != ""
}

// Refresh exchanges a refresh token for a new pair.  The old token is
// revoked in the same transaction the new one is stored in.
func (h *AuthHandler) Refresh(c echo.Context) error {
    raw, ok := bindRefresh(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    u, hash, err := h.refreshOwner(ctx, raw)
    if errors.Is(err, repository.ErrRefreshInvalid) {
        return invalidRefresh(c)
    }
    if err != nil {
        return h.internal(c, "refresh", err)
    }
    if !u.IsActive {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "account is disabled"})
    }

    pair, err := h.issue(u)
    if err != nil {
        return h.internal(c, "refresh", err)
    }
    err = h.Tokens.Rotate(ctx, u.ID, hash, utils.HashRefreshRaw(pair.refresh.Raw), pair.refresh.Exp)
    if errors.Is(err, repository.ErrRefreshInvalid) {
        return invalidRefresh(c)
    }
    if err != nil {
        return h.internal(c, "refresh", err)
    }
    return c.JSON(http.StatusOK, pair.response(u))
}

// RefreshAccess returns a new access token and leaves the refresh token as is.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    raw, ok := bindRefresh(c)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    u, _, err := h.refreshOwner(ctx, raw)
    if errors.Is(err, repository.ErrRefreshInvalid) {
        return invalidRefresh(c)
    }
    if err != nil {
        return h.internal(c, "refresh-access", err)
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Name, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return h.internal(c, "refresh-access", err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// bearerUser returns the user of a valid access token in the
// Authorization header, if any.
func (h *AuthHandler) bearerUser(c echo.Context) (uint64, bool) {
    header := c.Request().Header.Get(echo.HeaderAuthorization)
    if !strings.HasPrefix(header, "Bearer ") {
        return 0, false
    }
    claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
    if err != nil {
        return 0, false
    }
    switch sub := claims["sub"].(type) {
    case float64:
        if sub >= 1 {
            return uint64(sub), true
        }
    case string:
        if id, err := strconv.ParseUint(sub, 10, 64); err == nil && id > 0 {
            return id, true
        }
    }
    return 0, false
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
    raw, _ := bindRefresh(c)
    ctx, cancel := context.WithTimeout(c.Request().Context(), authTimeout)
    defer cancel()

    if raw != "" {
        hash := utils.HashRefreshRaw(raw)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            if errors.Is(err, repository.ErrRefreshInvalid) {
                return invalidRefresh(c)
            }
            return h.internal(c, "logout", err)
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return h.internal(c, "logout", err)
        }
        return c.NoContent(http.StatusNoContent)
    }

    if uid, ok := h.bearerUser(c); ok {
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return h.internal(c, "logout", err)
        }
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me returns the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
    a, err := currentActor(c)
    if err != nil {
        return unauthorized(c)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "user_id": a.UserID,
        "email":   a.Email,
        "name":    a.Name,
        "role":    a.Role,
    })
}
