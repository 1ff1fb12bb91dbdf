// Package textgen provides the turn.TextGenerator implementations: an
// offline scripted one and an OpenAI-compatible chat client.
package textgen

import (
	"fmt"

	"github.com/wfunc/liargame/config"
	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/turn"
)

var (
	_ turn.TextGenerator = (*Scripted)(nil)
	_ turn.TextGenerator = (*Chat)(nil)
)

// New builds the generator named by cfg.Provider.
func New(cfg config.TextGenConfig, rnd game.Random) (turn.TextGenerator, error) {
	switch cfg.Provider {
	case "", "scripted":
		logger.Log.Info("Using scripted text generator")
		return NewScripted(), nil
	case "chat":
		if cfg.APIKey == "" {
			logger.Log.Warnf("textgen.api_key is empty, requests to %s are unauthenticated", cfg.BaseURL)
		}
		logger.Log.Infof("Using chat text generator %s at %s", cfg.Model, cfg.BaseURL)
		return NewChat(cfg, rnd), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
