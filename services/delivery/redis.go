package delivery

import (
	bootredis "callbackbroker/boot/redis"
	"callbackbroker/internals/models"
	"context"
	"fmt"
	"github.com/go-redis/redis/v8"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const defaultRedisPort = "6379"

// RedisDeliverer publishes the payload on a Redis channel named by the
// callback URL: redis://[:password@]host[:port]/<channel>[?db=N]. Clients are
// opened on first use and shared per server.
type RedisDeliverer struct {
	mu       sync.Mutex
	clients  map[redisServer]*redis.Client
	poolSize int
}

type redisServer struct {
	addr     string
	password string
	db       int
	tls      bool
}

type redisTarget struct {
	server  redisServer
	channel string
}

func NewRedisDeliverer(poolSize int) *RedisDeliverer {
	return &RedisDeliverer{
		clients:  make(map[redisServer]*redis.Client),
		poolSize: poolSize,
	}
}

func (d *RedisDeliverer) Deliver(ctx context.Context, callbackURL string, payload []byte) error {
	target, err := parseRedisTarget(callbackURL)
	if err != nil {
		return err
	}
	client, err := d.client(ctx, target.server)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", models.ErrDeliveryFailed, target.server.addr, err)
	}
	if err := client.Publish(ctx, target.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", models.ErrDeliveryFailed, target.channel, err)
	}
	return nil
}

func (d *RedisDeliverer) client(ctx context.Context, server redisServer) (*redis.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[server]; ok {
		return c, nil
	}
	c, err := bootredis.InitRedis(ctx, bootredis.Options{
		Addr:     server.addr,
		Password: server.password,
		DB:       server.db,
		PoolSize: d.poolSize,
		TLS:      server.tls,
	})
	if err != nil {
		return nil, err
	}
	d.clients[server] = c
	return c, nil
}

// Close closes every client opened so far.
func (d *RedisDeliverer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for server, c := range d.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.clients, server)
	}
	return firstErr
}

func parseRedisTarget(callbackURL string) (redisTarget, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return redisTarget{}, fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}

	var target redisTarget
	switch strings.ToLower(u.Scheme) {
	case "redis":
	case "rediss":
		target.server.tls = true
	default:
		return redisTarget{}, fmt.Errorf("%w: not a redis url: %s", models.ErrDeliveryFailed, callbackURL)
	}

	if u.Host == "" {
		return redisTarget{}, fmt.Errorf("%w: redis url has no host: %s", models.ErrDeliveryFailed, callbackURL)
	}
	target.server.addr = u.Host
	if u.Port() == "" {
		target.server.addr = net.JoinHostPort(u.Hostname(), defaultRedisPort)
	}
	if u.User != nil {
		target.server.password, _ = u.User.Password()
	}
	if db := u.Query().Get("db"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil || n < 0 {
			return redisTarget{}, fmt.Errorf("%w: bad redis db %q", models.ErrDeliveryFailed, db)
		}
		target.server.db = n
	}

	target.channel = strings.TrimPrefix(u.Path, "/")
	if target.channel == "" {
		return redisTarget{}, fmt.Errorf("%w: redis url has no channel: %s", models.ErrDeliveryFailed, callbackURL)
	}
	return target, nil
}
