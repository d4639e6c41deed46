package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"checkout/internal/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // string
	CtxTokenVersionKey = "token_version" // int
)

var errInvalidToken = errors.New("invalid token")

// アクセストークンから取り出した呼び出し元
type Principal struct {
	UserID       int64
	Role         string
	TokenVersion int
}

// bearerAuth用のJWT検証ミドルウェア。失敗理由はクライアントに返さない
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return unauthorized(c)
			}

			p, err := ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c)
			}

			c.Set(CtxUserIDKey, p.UserID)
			c.Set(CtxUserRoleKey, p.Role)
			c.Set(CtxTokenVersionKey, p.TokenVersion)

			return next(c)
		}
	}
}

// "Bearer xxx" のxxx
func bearerToken(authz string) (string, bool) {
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HS256だけ受け付ける。sub / role / tv が揃っていること
func ParseAccessToken(secret []byte, raw string) (Principal, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Principal{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errInvalidToken
	}

	userID, err := claimInt64(claims["sub"])
	if err != nil || userID <= 0 {
		return Principal{}, errInvalidToken
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return Principal{}, errInvalidToken
	}
	tv, err := claimInt64(claims["tv"])
	if err != nil || tv < 0 {
		return Principal{}, errInvalidToken
	}

	return Principal{UserID: userID, Role: role, TokenVersion: int(tv)}, nil
}

// handler.ErrorResponse と同じ形
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorJSON(msg, code string) errorResponse {
	return errorResponse{Error: msg, Code: code}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized", "UNAUTHORIZED"))
}

// JSONの数値はfloat64で来る。文字列のsubも許す
func claimInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errInvalidToken
	}
}
