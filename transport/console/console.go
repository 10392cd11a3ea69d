package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/rocketscienceinc/tictactoe-direct/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-direct/internal/discovery"
	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
	"github.com/rocketscienceinc/tictactoe-direct/internal/usecase"
)

type match interface {
	RequestMove(cmd usecase.MoveRequested) (usecase.Snapshot, error)
	NewGame() usecase.Snapshot
	Snapshot() usecase.Snapshot
	Connect(ctx context.Context, peerID string) error
	Disconnect(ctx context.Context) error
}

// Console is a line-oriented UI. Each line is a cell (a location name such as
// "upper-left" or a number from 1 to 9) or one of the commands in help.
type Console struct {
	logger *slog.Logger
	in     io.Reader

	mu  sync.Mutex
	out io.Writer
}

const help = `Commands:
  <cell>  move for the player whose turn it is, e.g. "middle-center" or "5"
  board   show the board
  peers   list nearby peers
  connect <peer-id>
          connect to a nearby peer
  disconnect
          leave the current connection
  new     start a new game
  quit    leave`

func New(logger *slog.Logger, in io.Reader, out io.Writer) *Console {
	return &Console{
		logger: logger.With("component", "console"),
		in:     in,
		out:    out,
	}
}

// Notify prints a discovery notice. It never calls back into the match.
func (that *Console) Notify(notice discovery.Notice) {
	that.println(notice.Message)
}

// Run reads commands until quit, end of input or ctx is done.
func (that *Console) Run(ctx context.Context, match match) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		readErr <- that.scan(ctx, lines)
	}()

	that.println("Welcome to Tic-Tac-Toe!")
	that.printBoard(match.Snapshot())
	that.printf("It's %s's turn\n", match.Snapshot().Turn)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				return nil
			}

			if quit := that.handleLine(ctx, match, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (that *Console) scan(ctx context.Context, lines chan<- string) error {
	scanner := bufio.NewScanner(that.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return nil
		}
	}

	return scanner.Err()
}

func (that *Console) handleLine(ctx context.Context, match match, line string) bool {
	if peerID, ok := strings.CutPrefix(line, "connect "); ok {
		that.connect(ctx, match, strings.TrimSpace(peerID))
		return false
	}

	switch strings.ToLower(line) {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help":
		that.println(help)
	case "board":
		that.printBoard(match.Snapshot())
	case "peers":
		that.printPeers(match.Snapshot().Discovery)
	case "disconnect":
		that.disconnect(ctx, match)
	case "new":
		snapshot := match.NewGame()
		that.printBoard(snapshot)
		that.printf("It's %s's turn\n", snapshot.Turn)
	default:
		that.move(match, line)
	}

	return false
}

func (that *Console) move(match match, input string) {
	log := that.logger.With("method", "move")

	location, err := parseCell(input)
	if err != nil {
		that.printf("Unknown command %q, type help\n", input)
		return
	}

	// the UI always moves for the player whose turn it is
	player := match.Snapshot().Turn
	log.Info("player moved", "player", player, "location", location)

	snapshot, err := match.RequestMove(usecase.MoveRequested{Player: player, Location: location})
	switch {
	case errors.Is(err, apperror.ErrGameFinished):
		that.println("The game is over, type new to play again")
		return
	case err != nil:
		log.Debug("move rejected", "error", err)
		that.println("ILLEGAL MOVE! BAD PLAYER!")
		return
	}

	that.printBoard(snapshot)

	switch {
	case snapshot.Winner != entity.EmptyCell:
		that.printf("%s has won the game!\n", snapshot.Winner)
	case snapshot.Over:
		that.println("We have a tie game")
	default:
		that.printf("It is now %s's move\n", snapshot.Turn)
	}
}

func (that *Console) connect(ctx context.Context, match match, peerID string) {
	err := match.Connect(ctx, peerID)
	switch {
	case err == nil:
		that.printf("Connecting to %s\n", peerID)
	case errors.Is(err, apperror.ErrNotActive):
		that.println("Discovery is not active")
	case errors.Is(err, apperror.ErrUnknownPeer):
		that.printf("No peer %s nearby, type peers to list them\n", peerID)
	case errors.Is(err, apperror.ErrAlreadyConnected):
		that.println("Already connected, type disconnect first")
	default:
		that.logger.Warn("connect failed", "peer", peerID, "error", err)
		that.printf("Could not connect to %s\n", peerID)
	}
}

func (that *Console) disconnect(ctx context.Context, match match) {
	err := match.Disconnect(ctx)
	switch {
	case err == nil:
		that.println("Disconnecting")
	case errors.Is(err, apperror.ErrNotActive):
		that.println("Discovery is not active")
	case errors.Is(err, apperror.ErrNotConnected):
		that.println("Not connected")
	default:
		that.logger.Warn("disconnect failed", "error", err)
		that.println("Could not disconnect")
	}
}

func parseCell(input string) (entity.Location, error) {
	if number, err := strconv.Atoi(input); err == nil {
		location := entity.Location(number - 1)
		if !location.IsValid() {
			return 0, fmt.Errorf("%w: %d", entity.ErrInvalidLocation, number)
		}
		return location, nil
	}

	return entity.ParseLocation(strings.ToLower(input))
}

func (that *Console) printBoard(snapshot usecase.Snapshot) {
	var sb strings.Builder

	for row := 0; row < 3; row++ {
		if row > 0 {
			sb.WriteString("---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			if col > 0 {
				sb.WriteString("|")
			}

			mark := snapshot.Board[row*3+col]
			if mark == entity.EmptyCell {
				fmt.Fprintf(&sb, " %d ", row*3+col+1)
				continue
			}
			fmt.Fprintf(&sb, " %s ", mark)
		}
		sb.WriteString("\n")
	}

	that.printf("%s", sb.String())
}

func (that *Console) printPeers(state discovery.State) {
	if !state.Active {
		that.println("Discovery is not active")
		return
	}

	if len(state.Peers) == 0 {
		that.println("No peers found")
		return
	}

	for _, peer := range state.Peers {
		if peer.Name == "" {
			that.printf("Found %s\n", peer.ID)
			continue
		}
		that.printf("Found %s (%s)\n", peer.Name, peer.ID)
	}
}

func (that *Console) println(text string) {
	that.printf("%s\n", text)
}

func (that *Console) printf(format string, args ...any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, err := fmt.Fprintf(that.out, format, args...); err != nil {
		that.logger.Error("failed to write output", "error", err)
	}
}
