package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notifyhub/core/internal/model"
)

// RedisStore is the distributed session directory of spec §4.6, keyed
// under a configured prefix:
//
//	{prefix}:conn:{connection_id}    string (JSON SessionInfo), TTL session_ttl
//	{prefix}:user:{user_id}          set<server_id>, TTL refreshed per mutation
//	{prefix}:channel:{channel}       set<server_id>
//	{prefix}:server:{server_id}      integer, local connection count
//	{prefix}:users                   set<user_id>
type RedisStore struct {
	client         *redis.Client
	prefix         string
	serverID       model.ServerId
	ttl            time.Duration
	routingChannel string

	mu    sync.Mutex
	owned map[model.ConnectionId]struct{} // connection ids registered by this process
}

func NewRedisStore(client *redis.Client, prefix string, serverID model.ServerId, ttl time.Duration, routingChannel string) *RedisStore {
	return &RedisStore{
		client: client, prefix: prefix, serverID: serverID, ttl: ttl, routingChannel: routingChannel,
		owned: make(map[model.ConnectionId]struct{}),
	}
}

func (s *RedisStore) connKey(id model.ConnectionId) string { return fmt.Sprintf("%s:conn:%s", s.prefix, id) }
func (s *RedisStore) userKey(id model.UserId) string       { return fmt.Sprintf("%s:user:%s", s.prefix, id) }
func (s *RedisStore) channelKey(c model.Channel) string    { return fmt.Sprintf("%s:channel:%s", s.prefix, c) }
func (s *RedisStore) serverKey(id model.ServerId) string   { return fmt.Sprintf("%s:server:%s", s.prefix, id) }
func (s *RedisStore) usersKey() string                     { return fmt.Sprintf("%s:users", s.prefix) }

// RegisterSession runs a single pipeline: set the conn key with TTL, add
// this server to the user's server set with TTL, add the user to the
// universe set, increment and TTL this server's local counter (spec §4.6).
func (s *RedisStore) RegisterSession(ctx context.Context, info model.SessionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.connKey(info.ConnectionID), data, s.ttl)
	pipe.SAdd(ctx, s.userKey(info.UserID), string(s.serverID))
	pipe.Expire(ctx, s.userKey(info.UserID), s.ttl)
	pipe.SAdd(ctx, s.usersKey(), string(info.UserID))
	for _, c := range info.Channels {
		pipe.SAdd(ctx, s.channelKey(c), string(s.serverID))
		pipe.Expire(ctx, s.channelKey(c), s.ttl)
	}
	pipe.Incr(ctx, s.serverKey(s.serverID))
	pipe.Expire(ctx, s.serverKey(s.serverID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.owned[info.ConnectionID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// UnregisterSession fetches the conn record to learn the channels, deletes
// the conn key, removes this server from the user set and each channel
// set, and decrements the server counter (spec §4.6).
func (s *RedisStore) UnregisterSession(ctx context.Context, connectionID model.ConnectionId) error {
	raw, err := s.client.Get(ctx, s.connKey(connectionID)).Result()
	s.mu.Lock()
	delete(s.owned, connectionID)
	s.mu.Unlock()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}

	var info model.SessionInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.connKey(connectionID))
	pipe.SRem(ctx, s.userKey(info.UserID), string(s.serverID))
	for _, c := range info.Channels {
		pipe.SRem(ctx, s.channelKey(c), string(s.serverID))
	}
	pipe.Decr(ctx, s.serverKey(s.serverID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UpdateSessionChannels(ctx context.Context, connectionID model.ConnectionId, channels []model.Channel) error {
	raw, err := s.client.Get(ctx, s.connKey(connectionID)).Result()
	if err != nil {
		return err
	}
	var info model.SessionInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, c := range info.Channels {
		pipe.SRem(ctx, s.channelKey(c), string(s.serverID))
	}
	for _, c := range channels {
		pipe.SAdd(ctx, s.channelKey(c), string(s.serverID))
		pipe.Expire(ctx, s.channelKey(c), s.ttl)
	}
	info.Channels = channels
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	pipe.Set(ctx, s.connKey(connectionID), data, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// RefreshSessions iterates the local bookkeeping set of connection ids
// owned by this process and issues EXPIRE for each conn key; entries that
// report "no such key" are dropped from local bookkeeping (spec §4.6).
func (s *RedisStore) RefreshSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	ids := make([]model.ConnectionId, 0, len(s.owned))
	for id := range s.owned {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	refreshed := 0
	var stale []model.ConnectionId
	for _, id := range ids {
		ok, err := s.client.Expire(ctx, s.connKey(id), s.ttl).Result()
		if err != nil {
			continue
		}
		if !ok {
			stale = append(stale, id)
			continue
		}
		refreshed++
	}

	if len(stale) > 0 {
		s.mu.Lock()
		for _, id := range stale {
			delete(s.owned, id)
		}
		s.mu.Unlock()
	}
	return refreshed, nil
}

func (s *RedisStore) FindUserServers(ctx context.Context, userID model.UserId) ([]model.ServerId, error) {
	members, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	return toServerIDs(members), nil
}

func (s *RedisStore) FindChannelServers(ctx context.Context, channel model.Channel) ([]model.ServerId, error) {
	members, err := s.client.SMembers(ctx, s.channelKey(channel)).Result()
	if err != nil {
		return nil, err
	}
	return toServerIDs(members), nil
}

func toServerIDs(members []string) []model.ServerId {
	out := make([]model.ServerId, len(members))
	for i, m := range members {
		out[i] = model.ServerId(m)
	}
	return out
}

func (s *RedisStore) ClusterConnectionCount(ctx context.Context) (int64, error) {
	var total int64
	pattern := fmt.Sprintf("%s:server:*", s.prefix)
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.Get(ctx, iter.Val()).Int64()
		if err != nil {
			continue
		}
		total += n
	}
	return total, iter.Err()
}

func (s *RedisStore) ClusterUserCount(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, s.usersKey()).Result()
}

func (s *RedisStore) GetAllSessions(ctx context.Context) ([]model.SessionInfo, error) {
	pattern := fmt.Sprintf("%s:conn:*", s.prefix)
	var out []model.SessionInfo
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var info model.SessionInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, iter.Err()
}

func (s *RedisStore) GetUserSessions(ctx context.Context, userID model.UserId) ([]model.SessionInfo, error) {
	all, err := s.GetAllSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SessionInfo, 0)
	for _, info := range all {
		if info.UserID == userID {
			out = append(out, info)
		}
	}
	return out, nil
}

// PublishRoutedMessage publishes to the server-targeted channel when
// msg.ToServer is set, otherwise to the broadcast routing channel (spec §4.6).
func (s *RedisStore) PublishRoutedMessage(ctx context.Context, msg model.RoutedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	channel := s.routingChannel
	if msg.ToServer != nil {
		channel = fmt.Sprintf("%s:%s", s.routingChannel, *msg.ToServer)
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *RedisStore) ServerID() model.ServerId { return s.serverID }
func (s *RedisStore) IsEnabled() bool          { return true }
func (s *RedisStore) BackendType() string      { return "redis" }
