package identity

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 身份凭证是一枚签名过的 token，subject 即不透明身份串。
// 凭证不过期：身份跨会话持久，校验签名只是防伪造的传输层护栏，
// 不承载任何用户级鉴权。

// New 铸造一个全新身份及其凭证。
func New(secret string) (identity, credential string, err error) {
	identity = uuid.NewString()
	credential, err = Sign(identity, secret)
	return identity, credential, err
}

// Sign 为给定身份签发凭证。
func Sign(identity, secret string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  identity,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse 校验凭证签名并取出身份。
func Parse(credential, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid credential")
	}
	return claims.Subject, nil
}

// Middleware 从 Authorization 头提取凭证并把身份放进 gin 上下文。
// 身份是否对应已知 User 行由业务层判定，这里不查库。
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer credential"})
			return
		}
		cred := strings.TrimSpace(authz[len("Bearer "):])
		id, err := Parse(cred, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}
		c.Set("identity", id)
		c.Next()
	}
}

// Get 取出 Middleware 放入的身份，没有则返回空串。
func Get(c *gin.Context) string {
	if v, ok := c.Get("identity"); ok {
		if id, ok2 := v.(string); ok2 {
			return id
		}
	}
	return ""
}

// FromWebSocket 供 WS 握手提取凭证，按暴露面从小到大依次尝试：
// Authorization 头；Sec-WebSocket-Protocol 子协议（浏览器客户端设不了
// 自定义头，可以把凭证作为 "bearer" 之后的第二项传进来，第二个返回值
// 是需要回写给客户端的子协议名）；最后是 credential 查询参数——查询串
// 会进访问日志和代理缓存，持久凭证放在这里有泄露面，仅作兼容保留。
func FromWebSocket(r *http.Request) (credential, subprotocol string) {
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:]), ""
	}
	var protos []string
	for _, part := range strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",") {
		if p := strings.TrimSpace(part); p != "" {
			protos = append(protos, p)
		}
	}
	if len(protos) >= 2 && strings.EqualFold(protos[0], "bearer") {
		return protos[1], "bearer"
	}
	return r.URL.Query().Get("credential"), ""
}
