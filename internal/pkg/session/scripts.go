// internal/pkg/session/scripts.go
package session

import "github.com/redis/go-redis/v9"

// The index TTL is only ever raised so an index never expires before one of
// its members. PTTL returns -1 for a key without expiry and -2 for a missing
// key, both of which are below any positive ttl.

// KEYS: session, user index, active users, stats cache
// ARGV: record, ttl ms, session id, user id
var createScript = redis.NewScript(`
local ttl = tonumber(ARGV[2])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
redis.call('SADD', KEYS[2], ARGV[3])
if redis.call('PTTL', KEYS[2]) < ttl then
	redis.call('PEXPIRE', KEYS[2], ttl)
end
redis.call('SADD', KEYS[3], ARGV[4])
redis.call('DEL', KEYS[4])
return 1
`)

// KEYS: session, user index
// ARGV: record, ttl ms
var touchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
local ttl = tonumber(ARGV[2])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
if redis.call('EXISTS', KEYS[2]) == 1 and redis.call('PTTL', KEYS[2]) < ttl then
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// KEYS: session, user index, active users, stats cache
// ARGV: session id, user id
var destroyScript = redis.NewScript(`
local removed = redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
if redis.call('SCARD', KEYS[2]) == 0 then
	redis.call('DEL', KEYS[2])
	redis.call('SREM', KEYS[3], ARGV[2])
end
if removed == 1 then
	redis.call('DEL', KEYS[4])
end
return removed
`)

// KEYS: user index, active users
// ARGV: user id, stale session ids...
var pruneScript = redis.NewScript(`
for i = 2, #ARGV do
	redis.call('SREM', KEYS[1], ARGV[i])
end
if redis.call('SCARD', KEYS[1]) == 0 then
	redis.call('DEL', KEYS[1])
	redis.call('SREM', KEYS[2], ARGV[1])
	return 1
end
return 0
`)
