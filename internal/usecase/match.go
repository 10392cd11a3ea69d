package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-direct/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-direct/internal/discovery"
	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
)

// MoveRequested is the command a UI emits when a player picks a cell.
type MoveRequested struct {
	Player   entity.Mark     `json:"player"`
	Location entity.Location `json:"location"`
}

// Snapshot is a consistent view of the match for a UI.
type Snapshot struct {
	Board     entity.Board    `json:"board"`
	Turn      entity.Mark     `json:"turn"`
	Winner    entity.Mark     `json:"winner,omitempty"`
	Over      bool            `json:"over"`
	Discovery discovery.State `json:"discovery"`
}

// Match owns one game and, while active, one discovery session.
// Every call into either of them runs under mu.
type Match struct {
	logger    *slog.Logger
	transport discovery.Transport
	config    discovery.Config
	notify    discovery.NoticeFunc

	mu      sync.Mutex
	game    *entity.Game
	session *discovery.Session
}

// NewMatch wires a match to a transport. notify receives session notices while mu is held,
// so it must not call back into the match.
func NewMatch(logger *slog.Logger, transport discovery.Transport, config discovery.Config, notify discovery.NoticeFunc) *Match {
	return &Match{
		logger:    logger.With("component", "match"),
		transport: transport,
		config:    config,
		notify:    notify,
		game:      entity.NewGame(),
	}
}

// RequestMove applies a move. Moves after a win or a draw fail with ErrGameFinished.
func (that *Match) RequestMove(cmd MoveRequested) (Snapshot, error) {
	log := that.logger.With("method", "RequestMove", "player", cmd.Player, "location", cmd.Location)

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.game.IsOver() {
		return that.snapshot(), apperror.ErrGameFinished
	}

	if err := that.game.ApplyMove(cmd.Player, cmd.Location); err != nil {
		log.Info("move rejected", "error", err)
		return that.snapshot(), fmt.Errorf("failed to apply move: %w", err)
	}

	if winner, ok := that.game.Winner(); ok {
		log.Info("game won", "winner", winner)
	} else if that.game.IsOver() {
		log.Info("game tied")
	}

	return that.snapshot(), nil
}

// NewGame discards the current game and starts another one with X to move.
func (that *Match) NewGame() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.game = entity.NewGame()
	that.logger.Info("new game started")

	return that.snapshot()
}

// Activate attaches a fresh discovery session, then discovers peers outside mu so
// the discovery retries do not hold up moves or event delivery.
func (that *Match) Activate(ctx context.Context) error {
	session, err := that.attach(ctx)
	if err != nil {
		return err
	}

	session.Discover(ctx)

	return nil
}

func (that *Match) attach(ctx context.Context) (*discovery.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session != nil {
		return nil, apperror.ErrAlreadyActive
	}

	session := discovery.NewSession(that.logger, that.transport, that.config, that.notify)

	dispatch := func(ctx context.Context, event discovery.Event) {
		that.dispatch(ctx, session, event)
	}

	if err := session.Attach(ctx, dispatch); err != nil {
		return nil, fmt.Errorf("failed to start discovery: %w", err)
	}

	that.session = session

	return session, nil
}

// Connect asks the active session to connect to a nearby peer.
func (that *Match) Connect(ctx context.Context, peerID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session == nil {
		return apperror.ErrNotActive
	}

	return that.session.Connect(ctx, peerID)
}

// Disconnect asks the active session to leave its group.
func (that *Match) Disconnect(ctx context.Context) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.session == nil {
		return apperror.ErrNotActive
	}

	return that.session.Disconnect(ctx)
}

// Deactivate stops the discovery session. It is safe to call on an inactive match.
// The session is detached under mu and stopped outside it: stopping waits for the
// transport's delivery goroutine, which may itself be waiting for mu.
func (that *Match) Deactivate() error {
	that.mu.Lock()
	session := that.session
	that.session = nil
	that.mu.Unlock()

	if session == nil {
		return nil
	}

	if err := session.Stop(); err != nil {
		return fmt.Errorf("failed to stop discovery: %w", err)
	}

	return nil
}

// HandleEvent feeds an event to the active session. Without one the event is dropped.
func (that *Match) HandleEvent(ctx context.Context, event discovery.Event) {
	that.mu.Lock()
	session := that.session
	that.mu.Unlock()

	if session == nil {
		that.logger.Debug("event dropped, no active session")
		return
	}

	that.dispatch(ctx, session, event)
}

func (that *Match) dispatch(ctx context.Context, session *discovery.Session, event discovery.Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	// events of a detached session must not reach its successor
	if that.session != session {
		that.logger.Debug("event dropped, session detached")
		return
	}

	session.HandleEvent(ctx, event)
}

func (that *Match) IsActive() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.session != nil
}

func (that *Match) Snapshot() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshot()
}

func (that *Match) snapshot() Snapshot {
	winner, _ := that.game.Winner()

	state := discovery.State{
		Peers:      []entity.Peer{},
		Connection: discovery.Disconnected(),
	}
	if that.session != nil {
		state = that.session.State()
	}

	return Snapshot{
		Board:     that.game.Board(),
		Turn:      that.game.CurrentTurn(),
		Winner:    winner,
		Over:      that.game.IsOver(),
		Discovery: state,
	}
}
