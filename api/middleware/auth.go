package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/seyalabs/media-hub/database/models"
	accountsrepo "github.com/seyalabs/media-hub/database/repo/accounts"
)

// ContextAccountKey gin 上下文中已认证账户的键
const ContextAccountKey = "account"

// AccountAuth 管理接口认证。调用方以账户标识为路径参数,
// 以签名密钥为 Bearer 凭证。密钥比对使用常数时间。
func AccountAuth(accounts *accountsrepo.AccountsRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.Param("identifier")
		secret := bearerToken(c)
		if identifier == "" || secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"msg":    "Missing credentials",
			})
			return
		}

		account, err := accounts.GetByIdentifier(identifier)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"status": "error",
					"msg":    "Invalid credentials",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status": "error",
				"msg":    "Authentication failed",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(account.SigningSecret), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"msg":    "Invalid credentials",
			})
			return
		}

		c.Set(ContextAccountKey, account)
		c.Next()
	}
}

// AdminAuth 运维接口认证,凭证为部署时配置的管理令牌。
// 令牌为空时接口整体关闭。
func AdminAuth(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"status": "error",
				"msg":    "Not found",
			})
			return
		}
		token := bearerToken(c)
		if subtle.ConstantTimeCompare([]byte(adminToken), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"msg":    "Invalid credentials",
			})
			return
		}
		c.Next()
	}
}

// AccountFromContext 取出已认证账户
func AccountFromContext(c *gin.Context) *models.Account {
	val, ok := c.Get(ContextAccountKey)
	if !ok {
		return nil
	}
	account, _ := val.(*models.Account)
	return account
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
