// Package redis connects to Redis through go-redis/v9.
//
// Connect retries a ping until the server answers. Healthcheck returns a
// readiness probe that can also verify the server accepts writes, which the
// subscription index needs. Configuration comes from REDIS_* environment variables.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
