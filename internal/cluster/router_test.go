package cluster

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/registry"
)

// fakeStore is an in-memory SessionStore stand-in used only to drive
// Router's branching; it has no connection to any real backend.
type fakeStore struct {
	self      model.ServerId
	enabled   bool
	userHosts []model.ServerId
	published []model.RoutedMessage
	findErr   error
}

func (s *fakeStore) RegisterSession(ctx context.Context, info model.SessionInfo) error { return nil }
func (s *fakeStore) UnregisterSession(ctx context.Context, connectionID model.ConnectionId) error {
	return nil
}
func (s *fakeStore) UpdateSessionChannels(ctx context.Context, connectionID model.ConnectionId, channels []model.Channel) error {
	return nil
}
func (s *fakeStore) RefreshSessions(ctx context.Context) (int, error) { return 0, nil }

func (s *fakeStore) FindUserServers(ctx context.Context, userID model.UserId) ([]model.ServerId, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.userHosts, nil
}

func (s *fakeStore) FindChannelServers(ctx context.Context, channel model.Channel) ([]model.ServerId, error) {
	return nil, nil
}

func (s *fakeStore) PublishRoutedMessage(ctx context.Context, msg model.RoutedMessage) error {
	s.published = append(s.published, msg)
	return nil
}

func (s *fakeStore) ClusterConnectionCount(ctx context.Context) (int64, error) { return 0, nil }
func (s *fakeStore) ClusterUserCount(ctx context.Context) (int64, error)       { return 0, nil }
func (s *fakeStore) GetAllSessions(ctx context.Context) ([]model.SessionInfo, error) {
	return nil, nil
}
func (s *fakeStore) GetUserSessions(ctx context.Context, userID model.UserId) ([]model.SessionInfo, error) {
	return nil, nil
}

func (s *fakeStore) ServerID() model.ServerId { return s.self }
func (s *fakeStore) IsEnabled() bool          { return s.enabled }
func (s *fakeStore) BackendType() string      { return "fake" }

func TestPublishToRemoteServers_SkipsSelfAndDisabledStore(t *testing.T) {
	store := &fakeStore{self: "srv-1", enabled: false, userHosts: []model.ServerId{"srv-1", "srv-2"}}
	reg := registry.New(registry.Limits{})
	router := NewRouter(store, reg, zerolog.Nop())

	routed := router.PublishToRemoteServers(context.Background(), "u1", model.DefaultTenant, []byte("{}"))
	if routed != 0 {
		t.Fatalf("expected no publishes while the store is disabled, got %d", routed)
	}

	store.enabled = true
	routed = router.PublishToRemoteServers(context.Background(), "u1", model.DefaultTenant, []byte("{}"))
	if routed != 1 {
		t.Fatalf("expected exactly one publish (srv-2, excluding self), got %d", routed)
	}
	if len(store.published) != 1 || store.published[0].ToServer == nil || *store.published[0].ToServer != "srv-2" {
		t.Fatalf("expected the routed message to target srv-2, got %+v", store.published)
	}
}

func TestPublishToRemoteServers_LookupErrorYieldsZero(t *testing.T) {
	store := &fakeStore{self: "srv-1", enabled: true, findErr: context.DeadlineExceeded}
	reg := registry.New(registry.Limits{})
	router := NewRouter(store, reg, zerolog.Nop())

	routed := router.PublishToRemoteServers(context.Background(), "u1", model.DefaultTenant, []byte("{}"))
	if routed != 0 {
		t.Fatalf("expected zero publishes on a lookup error, got %d", routed)
	}
}

func TestRouteToUser_DeliversLocallyAndRoutesRemotely(t *testing.T) {
	store := &fakeStore{self: "srv-1", enabled: true, userHosts: []model.ServerId{"srv-1", "srv-2", "srv-3"}}
	reg := registry.New(registry.Limits{})
	router := NewRouter(store, reg, zerolog.Nop())

	if _, err := reg.Register("c1", "u1", model.DefaultTenant, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	result := router.RouteToUser(context.Background(), "u1", model.DefaultTenant, []byte(`{"type":"ping"}`))
	if result.LocalDelivered != 1 {
		t.Fatalf("expected one local delivery, got %d", result.LocalDelivered)
	}
	if result.RoutedServers != 2 {
		t.Fatalf("expected two remote servers routed to, got %d", result.RoutedServers)
	}
}

func TestHandleRoutedMessage_DropsWhenAddressedToAnotherServer(t *testing.T) {
	store := &fakeStore{self: "srv-1", enabled: true}
	reg := registry.New(registry.Limits{})
	router := NewRouter(store, reg, zerolog.Nop())

	h, err := reg.Register("c1", "u1", model.DefaultTenant, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	other := model.ServerId("srv-9")
	router.HandleRoutedMessage(model.RoutedMessage{
		UserID: "u1", FromServer: "srv-2", ToServer: &other, Payload: `{"type":"ping"}`,
	})

	select {
	case <-h.Outbound():
		t.Fatal("expected no delivery for a message addressed to a different server")
	default:
	}
}

func TestHandleRoutedMessage_DropsOwnEcho(t *testing.T) {
	store := &fakeStore{self: "srv-1", enabled: true}
	reg := registry.New(registry.Limits{})
	router := NewRouter(store, reg, zerolog.Nop())

	h, err := reg.Register("c1", "u1", model.DefaultTenant, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	router.HandleRoutedMessage(model.RoutedMessage{
		UserID: "u1", FromServer: "srv-1", Payload: `{"type":"ping"}`,
	})

	select {
	case <-h.Outbound():
		t.Fatal("expected no delivery for a message this server originated")
	default:
	}
}

func TestHandleRoutedMessage_DeliversToLocalConnections(t *testing.T) {
	store := &fakeStore{self: "srv-1", enabled: true}
	reg := registry.New(registry.Limits{})
	router := NewRouter(store, reg, zerolog.Nop())

	h, err := reg.Register("c1", "u1", model.DefaultTenant, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	router.HandleRoutedMessage(model.RoutedMessage{
		UserID: "u1", FromServer: "srv-2", Payload: `{"type":"ping"}`,
	})

	select {
	case <-h.Outbound():
	default:
		t.Fatal("expected the routed message to be delivered to the local connection")
	}
}
