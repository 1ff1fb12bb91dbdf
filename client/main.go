package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/network"
	"github.com/wfunc/liargame/services"
)

const help = `commands:
  start <name> [bots]      start a round (joins as <name>)
  watch <sessionId>        follow another session
  say <text>               describe or discuss, depending on the phase
  check <suspect> [0-100]  mid-round check
  vote <name>              vote for the liar
  guess <word>             final guess, when you are the caught liar
  next [n]                 let up to n bots speak (default 1)
  view                     refresh the view
  quit`

// state is what the client remembers between replies.
type state struct {
	mu        sync.Mutex
	sessionID string
	phase     game.Phase
}

func (s *state) update(res services.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.SessionID != "" {
		s.sessionID = res.SessionID
	}
	s.phase = res.View.Phase
}

func (s *state) get() (string, game.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.phase
}

type client struct {
	conn  *network.WSConnection
	state *state
}

func (c *client) send(msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.Send(msgID, data)
}

func (c *client) step(action services.Action) error {
	sessionID, _ := c.state.get()
	if sessionID == "" {
		return fmt.Errorf("no session yet, use start")
	}
	return c.send(network.MsgTypeStep, services.StepRequest{SessionID: sessionID, Action: action})
}

// readLoop prints every packet until the connection closes.
func (c *client) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		p, err := c.conn.ReadPacket()
		if err != nil {
			log.Println("Read error:", err)
			return
		}
		switch p.MsgID {
		case network.MsgTypeHeartbeat:
		case network.MsgTypeView:
			var res services.StepResult
			if err := json.Unmarshal(p.Data, &res); err != nil {
				log.Printf("Bad view: %v", err)
				continue
			}
			c.state.update(res)
			printView(res)
		case network.MsgTypeMessages:
			var update services.Update
			if err := json.Unmarshal(p.Data, &update); err != nil {
				log.Printf("Bad update: %v", err)
				continue
			}
			for _, m := range update.Messages {
				fmt.Printf("  [%s] %s: %s\n", m.Phase, m.Name, m.Content)
			}
		case network.MsgTypeRoundEnded:
			var result game.Result
			if err := json.Unmarshal(p.Data, &result); err != nil {
				log.Printf("Bad result: %v", err)
				continue
			}
			fmt.Printf("== round over: %s win. liar %s, suspect %s, keyword %q votes %v\n",
				result.WinnerSide, result.Liar, result.Suspect, result.Keyword, result.Votes)
		case network.MsgTypeError:
			var body network.ErrorBody
			_ = json.Unmarshal(p.Data, &body)
			fmt.Printf("!! %s\n", body.Error)
		default:
			log.Printf("<- RECV (ID: %d): %s", p.MsgID, string(p.Data))
		}
	}
}

func printView(res services.StepResult) {
	v := res.View
	fmt.Printf("-- session %s, round %d, %s, category %s\n", res.SessionID, v.Public.Round, v.Phase, v.Public.Category)
	fmt.Printf("   you are %s (%s), keyword %s\n", v.Private.Name, v.Private.Role, v.Private.Keyword)
	if v.Public.Current != "" {
		fmt.Printf("   turn: %s\n", v.Public.Current)
	}
	if res.Need == services.NeedMidCheck {
		fmt.Println("   mid-check needed: check <suspect> [confidence]")
	}
}

// handle runs one input line. It returns false on quit.
func (c *client) handle(line string) (bool, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "":
		return true, nil
	case "quit", "exit":
		return false, nil
	case "help":
		fmt.Println(help)
		return true, nil
	case "start":
		name, bots, _ := strings.Cut(rest, " ")
		req := services.StartRequest{ParticipantName: name}
		if bots != "" {
			n, err := strconv.Atoi(bots)
			if err != nil {
				return true, fmt.Errorf("bots: %w", err)
			}
			req.AICount = n
		}
		return true, c.send(network.MsgTypeStartRound, req)
	case "watch":
		c.state.mu.Lock()
		c.state.sessionID = rest
		c.state.mu.Unlock()
		if err := c.send(network.MsgTypeWatch, network.WatchRequest{SessionID: rest}); err != nil {
			return true, err
		}
		return true, c.send(network.MsgTypeView, network.ViewRequest{SessionID: rest})
	case "view":
		sessionID, _ := c.state.get()
		return true, c.send(network.MsgTypeView, network.ViewRequest{SessionID: sessionID})
	case "say":
		actionType := services.ActionDescription
		if _, phase := c.state.get(); phase == game.PhaseDiscussion {
			actionType = services.ActionDiscussion
		}
		return true, c.step(services.Action{Type: actionType, Text: rest})
	case "check":
		suspect, conf, _ := strings.Cut(rest, " ")
		action := services.Action{Type: services.ActionMidCheck, SuspectName: suspect}
		if conf != "" {
			n, err := strconv.Atoi(conf)
			if err != nil {
				return true, fmt.Errorf("confidence: %w", err)
			}
			action.Confidence = &n
		}
		return true, c.step(action)
	case "vote":
		return true, c.step(services.Action{Type: services.ActionVote, TargetName: rest})
	case "guess":
		return true, c.step(services.Action{Type: services.ActionFinalGuess, Guess: rest})
	case "next":
		action := services.Action{Type: services.ActionNoop}
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return true, fmt.Errorf("steps: %w", err)
			}
			action.MaxAISteps = &n
		}
		return true, c.step(action)
	default:
		return true, fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func run(addr string) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())
	raw, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	c := &client{conn: network.NewWSConnection(raw), state: &state{}}
	defer c.conn.Close()

	done := make(chan struct{})
	go c.readLoop(done)

	// Keep the server's read deadline fresh.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.conn.Send(network.MsgTypeHeartbeat, nil); err != nil {
					return
				}
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println(help)
	for {
		select {
		case <-done:
			return nil
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			if err := c.conn.SendClose(); err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			more, err := c.handle(line)
			if err != nil {
				fmt.Printf("!! %v\n", err)
			}
			if !more {
				return nil
			}
		}
	}
}

func main() {
	var addr string
	cmd := &cobra.Command{
		Use:   "liarclient",
		Short: "Play the liar game from a terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:8080", "game server host:port")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
