package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
)

var _ Store = (*RedisStore)(nil)

const defaultRedisPrefix = "schoolhost:session"

// bindScript refuses to rebind a session to another tenant.
var bindScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'tenant_id')
if current and current ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'tenant_id', ARGV[1], 'user_id', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// RedisStore keeps each session in a redis hash with fields tenant_id and
// user_id.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new RedisStore. Keys are "<prefix>:<id>"; a
// trailing colon on prefix is ignored and an empty prefix uses
// "schoolhost:session".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (Values, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Values{}, false, errs.Classify("session.Get", err)
	}
	if len(fields) == 0 {
		return Values{}, false, nil
	}

	var v Values
	if raw, ok := fields["tenant_id"]; ok {
		if v.TenantID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return Values{}, false, fmt.Errorf("session %s: invalid tenant_id %q: %w", id, raw, err)
		}
	}
	if raw, ok := fields["user_id"]; ok {
		if v.UserID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return Values{}, false, fmt.Errorf("session %s: invalid user_id %q: %w", id, raw, err)
		}
	}
	return v, true, nil
}

func (s *RedisStore) Bind(ctx context.Context, id string, v Values) error {
	applied, err := bindScript.Run(ctx, s.client, []string{s.key(id)},
		v.TenantID, v.UserID, s.ttl.Milliseconds()).Int()
	if err != nil {
		return errs.Classify("session.Bind", err)
	}
	if applied == 0 {
		return errs.Conflict("session.Bind", "session is bound to another tenant")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errs.Classify("session.Delete", err)
	}
	return nil
}
