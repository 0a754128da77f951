// Package cluster implements the distributed session directory and
// routing layer of spec §4.6–§4.7: which server hosts which user/channel,
// and how a server forwards a message to a peer holding the connection.
package cluster

import (
	"context"

	"github.com/notifyhub/core/internal/apperror"
	"github.com/notifyhub/core/internal/model"
)

// SessionStore is the cluster session directory contract (spec §4.6).
type SessionStore interface {
	RegisterSession(ctx context.Context, info model.SessionInfo) error
	UnregisterSession(ctx context.Context, connectionID model.ConnectionId) error
	UpdateSessionChannels(ctx context.Context, connectionID model.ConnectionId, channels []model.Channel) error
	RefreshSessions(ctx context.Context) (int, error)
	FindUserServers(ctx context.Context, userID model.UserId) ([]model.ServerId, error)
	FindChannelServers(ctx context.Context, channel model.Channel) ([]model.ServerId, error)
	PublishRoutedMessage(ctx context.Context, msg model.RoutedMessage) error
	ClusterConnectionCount(ctx context.Context) (int64, error)
	ClusterUserCount(ctx context.Context) (int64, error)
	GetAllSessions(ctx context.Context) ([]model.SessionInfo, error)
	GetUserSessions(ctx context.Context, userID model.UserId) ([]model.SessionInfo, error)

	ServerID() model.ServerId
	IsEnabled() bool
	BackendType() string
}

// LocalStore is the disabled/single-process variant of spec §4.6: every
// mutator is a no-op, lookups resolve to "only this server". It lets the
// rest of the system be written unconditionally against SessionStore.
type LocalStore struct {
	serverID model.ServerId
}

func NewLocalStore(serverID model.ServerId) *LocalStore {
	return &LocalStore{serverID: serverID}
}

func (s *LocalStore) RegisterSession(ctx context.Context, info model.SessionInfo) error { return nil }
func (s *LocalStore) UnregisterSession(ctx context.Context, connectionID model.ConnectionId) error {
	return nil
}
func (s *LocalStore) UpdateSessionChannels(ctx context.Context, connectionID model.ConnectionId, channels []model.Channel) error {
	return nil
}
func (s *LocalStore) RefreshSessions(ctx context.Context) (int, error) { return 0, nil }

func (s *LocalStore) FindUserServers(ctx context.Context, userID model.UserId) ([]model.ServerId, error) {
	return []model.ServerId{s.serverID}, nil
}

func (s *LocalStore) FindChannelServers(ctx context.Context, channel model.Channel) ([]model.ServerId, error) {
	return []model.ServerId{s.serverID}, nil
}

func (s *LocalStore) PublishRoutedMessage(ctx context.Context, msg model.RoutedMessage) error {
	return apperror.ErrBackendDisabled
}

func (s *LocalStore) ClusterConnectionCount(ctx context.Context) (int64, error) {
	return 0, apperror.ErrBackendDisabled
}

func (s *LocalStore) ClusterUserCount(ctx context.Context) (int64, error) {
	return 0, apperror.ErrBackendDisabled
}

func (s *LocalStore) GetAllSessions(ctx context.Context) ([]model.SessionInfo, error) {
	return nil, apperror.ErrBackendDisabled
}

func (s *LocalStore) GetUserSessions(ctx context.Context, userID model.UserId) ([]model.SessionInfo, error) {
	return nil, apperror.ErrBackendDisabled
}

func (s *LocalStore) ServerID() model.ServerId { return s.serverID }
func (s *LocalStore) IsEnabled() bool          { return false }
func (s *LocalStore) BackendType() string      { return "local" }
