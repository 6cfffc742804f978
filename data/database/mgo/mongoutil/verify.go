package mongoutil

import "ProjectHub/tools/errs"

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

// Validate 检查必填项并补默认值；没有 Uri 时按 Address 生成
func (c *Config) Validate() error {
	if c.Uri == "" && len(c.Address) == 0 {
		return errs.ErrArgs.WrapMsg("either Uri or Address must be provided")
	}
	if c.Database == "" {
		return errs.ErrArgs.WrapMsg("database is required")
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	if c.Uri == "" {
		c.Uri = c.buildURI()
	}
	return nil
}
