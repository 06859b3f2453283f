package redis

import (
	"context"
	"crypto/tls"
	"github.com/go-redis/redis/v8"
	"net"
)

const DefaultPoolSize = 10

type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TLS      bool
}

// InitRedis opens a client and pings it. The client is closed again if the
// ping fails.
func InitRedis(ctx context.Context, opts Options) (*redis.Client, error) {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	options := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		PoolSize: poolSize,
		DB:       opts.DB,
	}
	if opts.TLS {
		host, _, err := net.SplitHostPort(opts.Addr)
		if err != nil {
			host = opts.Addr
		}
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	redisClient := redis.NewClient(options)
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	return redisClient, nil
}
