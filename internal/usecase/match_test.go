package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-direct/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-direct/internal/discovery"
	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
	"github.com/rocketscienceinc/tictactoe-direct/testing/mocks"
)

var errRadioOff = errors.New("radio off")

func newTestMatch(transport discovery.Transport) *Match {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMatch(logger, transport, discovery.Config{DiscoverAttempts: 1}, nil)
}

// activeMatch returns a match whose session subscribed to a mocked transport.
func activeMatch(t *testing.T) (*Match, *mocks.Transport, *mocks.Subscription) {
	t.Helper()

	transport := &mocks.Transport{}
	subscription := &mocks.Subscription{}

	transport.On("Subscribe", mock.Anything, mock.Anything).Return(subscription, nil).Once()
	transport.On("DiscoverPeers", mock.Anything).Return(nil).Once()

	match := newTestMatch(transport)
	require.NoError(t, match.Activate(context.Background()))

	return match, transport, subscription
}

func play(t *testing.T, match *Match, moves ...entity.Location) Snapshot {
	t.Helper()

	var snapshot Snapshot
	for _, loc := range moves {
		var err error
		snapshot, err = match.RequestMove(MoveRequested{Player: match.Snapshot().Turn, Location: loc})
		require.NoError(t, err)
	}

	return snapshot
}

func TestMatch_RequestMove(t *testing.T) {
	t.Run("Applies a legal move", func(t *testing.T) {
		// Given: a new match
		match := newTestMatch(&mocks.Transport{})

		// When: X takes the center
		snapshot, err := match.RequestMove(MoveRequested{Player: entity.PlayerX, Location: entity.MiddleCenter})

		// Then: the board shows it and O is to move
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, snapshot.Board[entity.MiddleCenter])
		assert.Equal(t, entity.PlayerO, snapshot.Turn)
		assert.False(t, snapshot.Over)
	})

	t.Run("Rejects an occupied cell", func(t *testing.T) {
		match := newTestMatch(&mocks.Transport{})
		play(t, match, entity.MiddleCenter)

		snapshot, err := match.RequestMove(MoveRequested{Player: entity.PlayerO, Location: entity.MiddleCenter})

		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, entity.PlayerO, snapshot.Turn)
	})

	t.Run("Rejects the wrong player", func(t *testing.T) {
		match := newTestMatch(&mocks.Transport{})

		_, err := match.RequestMove(MoveRequested{Player: entity.PlayerO, Location: entity.UpperLeft})

		require.ErrorIs(t, err, apperror.ErrWrongTurn)
		assert.Equal(t, entity.EmptyCell, match.Snapshot().Board[entity.UpperLeft])
	})

	t.Run("Reports the winner and refuses further moves", func(t *testing.T) {
		// Given: X completes the top row
		match := newTestMatch(&mocks.Transport{})
		snapshot := play(t, match,
			entity.UpperLeft, entity.MiddleLeft,
			entity.UpperCenter, entity.MiddleCenter,
			entity.UpperRight,
		)

		// Then: X has won
		assert.True(t, snapshot.Over)
		assert.Equal(t, entity.PlayerX, snapshot.Winner)

		// When: O tries to keep playing into an empty cell
		_, err := match.RequestMove(MoveRequested{Player: entity.PlayerO, Location: entity.LowerRight})

		// Then: the match refuses and the board is unchanged
		require.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Equal(t, entity.EmptyCell, match.Snapshot().Board[entity.LowerRight])
	})

	t.Run("Reports a tie", func(t *testing.T) {
		match := newTestMatch(&mocks.Transport{})

		// X O X / X O O / O X X
		snapshot := play(t, match,
			entity.UpperLeft, entity.UpperCenter,
			entity.UpperRight, entity.MiddleCenter,
			entity.MiddleLeft, entity.MiddleRight,
			entity.LowerCenter, entity.LowerLeft,
			entity.LowerRight,
		)

		assert.True(t, snapshot.Over)
		assert.Equal(t, entity.EmptyCell, snapshot.Winner)
	})
}

func TestMatch_NewGame(t *testing.T) {
	// Given: a finished game
	match := newTestMatch(&mocks.Transport{})
	play(t, match,
		entity.UpperLeft, entity.MiddleLeft,
		entity.UpperCenter, entity.MiddleCenter,
		entity.UpperRight,
	)

	// When: a new game is started
	snapshot := match.NewGame()

	// Then: the board is empty and X moves first
	assert.Equal(t, entity.Board{}, snapshot.Board)
	assert.Equal(t, entity.PlayerX, snapshot.Turn)
	assert.False(t, snapshot.Over)
}

func TestMatch_Activate(t *testing.T) {
	t.Run("Starts discovery", func(t *testing.T) {
		match, transport, _ := activeMatch(t)

		assert.True(t, match.IsActive())
		assert.True(t, match.Snapshot().Discovery.Active)
		transport.AssertExpectations(t)
	})

	t.Run("Error when already active", func(t *testing.T) {
		match, _, _ := activeMatch(t)

		err := match.Activate(context.Background())

		require.ErrorIs(t, err, apperror.ErrAlreadyActive)
	})

	t.Run("Stays inactive when the transport refuses", func(t *testing.T) {
		transport := &mocks.Transport{}
		transport.On("Subscribe", mock.Anything, mock.Anything).Return(nil, errRadioOff).Once()

		match := newTestMatch(transport)

		err := match.Activate(context.Background())

		require.ErrorIs(t, err, errRadioOff)
		assert.False(t, match.IsActive())
	})
}

func TestMatch_Events(t *testing.T) {
	t.Run("Transport events reach the session", func(t *testing.T) {
		// Given: an active match
		match, transport, _ := activeMatch(t)
		ctx := context.Background()

		// When: the transport reports the radio and a connection
		transport.Handler()(ctx, discovery.RadioStateChanged{Enabled: true})
		match.HandleEvent(ctx, discovery.ConnectionChanged{Connected: true, GroupOwnerAddress: "192.168.49.1"})

		// Then: the snapshot shows both
		state := match.Snapshot().Discovery
		assert.True(t, state.RadioEnabled)
		assert.Equal(t, discovery.Connected("192.168.49.1"), state.Connection)
	})

	t.Run("Dropped when inactive", func(t *testing.T) {
		match := newTestMatch(&mocks.Transport{})

		match.HandleEvent(context.Background(), discovery.RadioStateChanged{Enabled: true})

		assert.False(t, match.Snapshot().Discovery.RadioEnabled)
	})

	t.Run("A detached session's events do not reach its successor", func(t *testing.T) {
		// Given: a match that was deactivated and activated again
		match, transport, subscription := activeMatch(t)
		staleHandler := transport.Handler()

		subscription.On("Close").Return(nil).Once()
		require.NoError(t, match.Deactivate())

		transport.On("Subscribe", mock.Anything, mock.Anything).Return(&mocks.Subscription{}, nil).Once()
		transport.On("DiscoverPeers", mock.Anything).Return(nil).Once()
		require.NoError(t, match.Activate(context.Background()))

		// When: the old subscription still delivers an event
		staleHandler(context.Background(), discovery.RadioStateChanged{Enabled: true})

		// Then: the new session ignores it
		assert.False(t, match.Snapshot().Discovery.RadioEnabled)
	})

	t.Run("Concurrent events and moves are serialized", func(t *testing.T) {
		match, transport, _ := activeMatch(t)
		transport.On("RequestPeers", mock.Anything, mock.Anything).Return(nil)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				transport.Handler()(context.Background(), discovery.PeerListChanged{})
			}()
			go func() {
				defer wg.Done()
				_ = match.Snapshot()
			}()
		}
		wg.Wait()

		transport.AssertNumberOfCalls(t, "RequestPeers", 50)
	})
}

func TestMatch_Deactivate(t *testing.T) {
	t.Run("Stops the session and discards its state", func(t *testing.T) {
		// Given: an active match that knows a peer
		match, _, subscription := activeMatch(t)
		match.HandleEvent(context.Background(), discovery.PeersAvailable{Peers: []entity.Peer{{ID: "p1"}}})
		subscription.On("Close").Return(nil).Once()

		// When: the match is deactivated
		err := match.Deactivate()

		// Then: the subscription is released and the peers are gone
		require.NoError(t, err)
		subscription.AssertExpectations(t)
		assert.False(t, match.IsActive())
		assert.Empty(t, match.Snapshot().Discovery.Peers)
	})

	t.Run("Keeps the game", func(t *testing.T) {
		match, _, subscription := activeMatch(t)
		play(t, match, entity.MiddleCenter)
		subscription.On("Close").Return(nil).Once()

		require.NoError(t, match.Deactivate())

		assert.Equal(t, entity.PlayerX, match.Snapshot().Board[entity.MiddleCenter])
	})

	t.Run("No-op when inactive", func(t *testing.T) {
		match := newTestMatch(&mocks.Transport{})

		require.NoError(t, match.Deactivate())
	})
}

func TestMatch_ActivateDoesNotBlockOnDiscovery(t *testing.T) {
	// Given: a transport whose discovery hangs until released
	transport := &mocks.Transport{}
	transport.On("Subscribe", mock.Anything, mock.Anything).Return(&mocks.Subscription{}, nil).Once()

	discovering := make(chan struct{})
	release := make(chan struct{})
	transport.On("DiscoverPeers", mock.Anything).Run(func(mock.Arguments) {
		close(discovering)
		<-release
	}).Return(nil).Once()

	match := newTestMatch(transport)

	activated := make(chan error, 1)
	go func() {
		activated <- match.Activate(context.Background())
	}()

	<-discovering

	// When: a move is made while discovery is still running
	moved := make(chan error, 1)
	go func() {
		_, err := match.RequestMove(MoveRequested{Player: entity.PlayerX, Location: entity.MiddleCenter})
		moved <- err
	}()

	// Then: the move goes through and the session is already active
	select {
	case err := <-moved:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("move blocked by peer discovery")
	}
	assert.True(t, match.IsActive())

	close(release)
	require.NoError(t, <-activated)
}

func TestMatch_Connect(t *testing.T) {
	t.Run("Connects to a nearby peer", func(t *testing.T) {
		// Given: an active match that knows p1
		match, transport, _ := activeMatch(t)
		match.HandleEvent(context.Background(), discovery.PeersAvailable{Peers: []entity.Peer{{ID: "p1"}}})
		transport.On("Connect", mock.Anything, "p1").Return(nil).Once()

		// When: connecting to p1
		err := match.Connect(context.Background(), "p1")

		// Then: the transport was asked
		require.NoError(t, err)
		transport.AssertExpectations(t)
	})

	t.Run("Disconnects", func(t *testing.T) {
		match, transport, _ := activeMatch(t)
		match.HandleEvent(context.Background(), discovery.ConnectionChanged{Connected: true, GroupOwnerAddress: "10.0.0.7"})
		transport.On("Disconnect", mock.Anything).Return(nil).Once()

		require.NoError(t, match.Disconnect(context.Background()))
		transport.AssertExpectations(t)
	})

	t.Run("Error when inactive", func(t *testing.T) {
		match := newTestMatch(&mocks.Transport{})

		require.ErrorIs(t, match.Connect(context.Background(), "p1"), apperror.ErrNotActive)
		require.ErrorIs(t, match.Disconnect(context.Background()), apperror.ErrNotActive)
	})
}
