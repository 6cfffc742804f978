package mongoutil

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// 认证类错误码：Unauthorized / AuthenticationFailed
const (
	codeUnauthorized = 13
	codeAuthFailed   = 18
)

func (c *Config) authSource() string {
	if c.AuthSource != "" {
		return c.AuthSource
	}
	return c.Database
}

// buildURI 由 Address 拼 mongodb:// 串，账号密码做转义
func (c *Config) buildURI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   strings.Join(c.Address, ","),
		Path:   "/" + c.Database,
	}
	if c.Username != "" && c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	q := url.Values{}
	q.Set("authSource", c.authSource())
	q.Set("maxPoolSize", strconv.Itoa(c.MaxPoolSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// Redacted 去掉密码，日志里用
func (c *Config) Redacted() string {
	u, err := url.Parse(c.Uri)
	if err != nil {
		return "mongodb://<invalid>"
	}
	return u.Redacted()
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code != codeUnauthorized && cmdErr.Code != codeAuthFailed
	}
	return true
}

// IsDuplicate 唯一索引冲突
func IsDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNotFound FindOne 没有结果
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
