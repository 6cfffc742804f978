package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongoutil "ProjectHub/data/database/mgo/mongoutil"
	"ProjectHub/global/config"
	"ProjectHub/logger"
	"ProjectHub/middleware"
	midsec "ProjectHub/middleware/security"
	chathandler "ProjectHub/module/chat/handler"
	chatservice "ProjectHub/module/chat/service"
	chatstore "ProjectHub/module/chat/store"
	nhandler "ProjectHub/module/notification/handler"
	nservice "ProjectHub/module/notification/service"
	nstore "ProjectHub/module/notification/store"
	phandler "ProjectHub/module/project/handler"
	pservice "ProjectHub/module/project/service"
	pstore "ProjectHub/module/project/store"
	uhandler "ProjectHub/module/user/handler"
	uservice "ProjectHub/module/user/service"
	ustore "ProjectHub/module/user/store"
	"ProjectHub/service/kafka"
	"ProjectHub/service/mgo"
	"ProjectHub/service/natsx"
	"ProjectHub/service/realtime"
	"ProjectHub/service/storage"
	redisx "ProjectHub/service/storage/redis"
	"ProjectHub/tools/ids"
	jwtlib "ProjectHub/tools/security"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.JSON, logger.FileOptions{
		Filename:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
	})
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ids.SetNodeID(cfg.Realtime.NodeID)
	nodeID := ids.NodeID()

	// mongo 后台连接，掉线自动重连；未就绪时 store 返回 503
	mgo.StartAsync(ctx, &mongoutil.Config{
		Uri:         cfg.Mongo.Uri,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		MaxRetry:    cfg.Mongo.MaxRetry,
		AppName:     "projecthub-" + nodeID,
	})
	defer mgo.Disconnect()

	userStore := ustore.NewMongo(mgo.DB)
	notifStore := nstore.NewMongo(mgo.DB)
	chatStore := chatstore.NewMongo(mgo.DB)
	projStore := pstore.NewMongo(mgo.DB)
	ensureIndexes(ctx, userStore, notifStore, chatStore, projStore)

	// realtime 核心
	reg := realtime.NewRegistry()
	rooms := realtime.NewRoomTable()
	disp := realtime.NewDispatcher(reg, rooms)

	var (
		events kafka.Emitter = kafka.Noop{}
		remote uservice.RemotePresence
	)

	if cfg.Redis.Enabled {
		rdb, err := redisx.NewClient(ctx, redisx.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn("[Boot] redis unavailable, presence mirror disabled", zap.Error(err))
		} else {
			defer closeRedis(rdb)
			mirror := storage.NewPresenceMirror(rdb, nodeID, cfg.Redis.PresenceTTL)
			reg.AddHook(mirror)
			remote = mirror
		}
	}

	if cfg.Nats.Enabled {
		bus, err := natsx.NewNatsxClient(natsx.NatsxConfig{
			Servers: cfg.Nats.Servers,
			Name:    cfg.Nats.Name,
		}, natsx.Recovery(), natsx.Logging())
		if err != nil {
			logger.Warn("[Boot] nats unavailable, cross-node relay disabled", zap.Error(err))
		} else {
			defer func() { _ = bus.Close() }()
			relay := natsx.NewRelay(bus, cfg.Nats.Subject, nodeID)
			if err := relay.Start(func(key string, payload []byte) bool {
				return disp.Deliver(key, payload).Delivered()
			}); err != nil {
				logger.Warn("[Boot] relay subscribe failed", zap.Error(err))
			} else {
				disp.SetRelay(relay)
			}
		}
	}

	if cfg.Kafka.Enabled {
		prod, err := kafka.NewSyncProducer(kafka.Config{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			Retries:     cfg.Kafka.Retries,
			EnsureTopic: cfg.Kafka.EnsureTopic,
			Partitions:  cfg.Kafka.Partitions,
		})
		if err != nil {
			logger.Warn("[Boot] kafka unavailable, activity feed disabled", zap.Error(err))
		} else {
			pub := kafka.NewPublisher(prod, cfg.Kafka.Topic)
			defer func() { _ = pub.Close() }()
			reg.AddHook(pub)
			events = pub
		}
	}

	jwtOpts := jwtlib.Options{Secret: []byte(cfg.Jwt.Secret), TTL: cfg.Jwt.TTL}

	userSvc := uservice.New(uservice.Deps{
		Store:  userStore,
		JWT:    jwtOpts,
		Local:  reg,
		Remote: remote,
		Events: events,
	})
	notifSvc := nservice.New(notifStore, disp, events)
	chatSvc := chatservice.New(chatservice.Deps{
		Store:     chatStore,
		Push:      disp,
		Rooms:     rooms,
		Names:     userSvc,
		Online:    reg,
		Events:    events,
		UploadDir: cfg.Upload.Dir,
		MaxUpload: cfg.Upload.MaxSize,
	})
	projSvc := pservice.New(pservice.Deps{
		Store:    projStore,
		Notifier: notifSvc,
		Push:     disp,
		Names:    userSvc,
		Events:   events,
	})

	if err := middleware.RegisterValidators(); err != nil {
		return err
	}

	ws := realtime.NewEndpoint(disp, realtime.EndpointConf{
		PingInterval:   cfg.Realtime.PingInterval,
		WriteWait:      cfg.Realtime.WriteWait,
		MaxMessageSize: cfg.Realtime.MaxMessageSize,
		RequireToken:   cfg.Realtime.RequireToken,
		AllowedOrigins: cfg.Server.CorsOrigins,
	}, func(token string) (string, error) {
		claims, err := jwtlib.Verify(jwtOpts, token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	})

	engine := newRouter(midsec.DefaultOptions(jwtOpts), reg, cfg.Server.CorsOrigins, handlers{
		user:         uhandler.New(userSvc),
		chat:         chathandler.New(chatSvc),
		notification: nhandler.New(notifSvc),
		project:      phandler.New(projSvc),
		ws:           ws,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("[Boot] http listening", zap.String("addr", cfg.Server.Addr), zap.String("node", nodeID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("[Boot] shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err := g.Wait()
	// 先断开 ws，presence 钩子还能把 offline 写出去；其余资源随 defer 关闭
	reg.Close()
	return err
}

// ensureIndexes 等 mongo 就绪后建索引；超时只告警，服务照常起
func ensureIndexes(ctx context.Context, stores ...indexer) {
	wctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := mgo.WaitReady(wctx, mgo.Manager()); err != nil {
		logger.Warn("[Boot] mongo not ready, skip index creation", zap.Error(err))
		return
	}
	for _, s := range stores {
		if err := s.EnsureIndexes(wctx); err != nil {
			logger.Warn("[Boot] ensure indexes failed", zap.Error(err))
		}
	}
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		logger.Warn("[Boot] close redis", zap.Error(err))
	}
}
