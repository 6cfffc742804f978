package mongoutil

import (
	"context"
	"time"

	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	selectTimeout = 5 * time.Second
	retryWait     = 500 * time.Millisecond
)

// Config 连接参数；Uri 优先，否则由 Address 拼出来
type Config struct {
	Uri         string
	Address     []string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
	MaxRetry    int
	AppName     string
}

func (c *Config) clientOptions() (*options.ClientOptions, error) {
	if c.Uri == "" {
		return nil, errs.ErrArgs.WrapMsg("mongo uri or address is required")
	}
	opts := options.Client().
		ApplyURI(c.Uri).
		SetMaxPoolSize(uint64(c.MaxPoolSize)).
		SetServerSelectionTimeout(selectTimeout)
	if c.AppName != "" {
		opts.SetAppName(c.AppName)
	}
	// 显式给了账号时覆盖 URI 里的认证
	if c.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   c.Username,
			Password:   c.Password,
			AuthSource: c.authSource(),
		})
	}
	return opts, nil
}

// Client 持有一个 mongo.Client 和业务库
type Client struct {
	cli *mongo.Client
	db  *mongo.Database
}

func (c *Client) GetDB() *mongo.Database { return c.db }

func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx, nil)
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.cli.Disconnect(ctx)
}

// Dial 连接并 ping，最多尝试 MaxRetry 次；认证错误不重试
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.clientOptions()
	if err != nil {
		return nil, err
	}

	var cli *mongo.Client
	for attempt := 1; ; attempt++ {
		cli, err = connect(ctx, opts)
		if err == nil || attempt >= cfg.MaxRetry || !retryable(ctx, err) {
			break
		}
		t := time.NewTimer(retryWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errs.WrapMsg(ctx.Err(), "mongo dial canceled", "uri", cfg.Redacted())
		case <-t.C:
		}
	}
	if err != nil {
		return nil, errs.ErrUnavailable.WrapMsg(err.Error(), "uri", cfg.Redacted(), "database", cfg.Database)
	}
	return &Client{cli: cli, db: cli.Database(cfg.Database)}, nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}
