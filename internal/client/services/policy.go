package services

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
)

// ConflictPolicy decides a URL that the server and the caller changed in
// opposite directions during one cycle. It returns true to keep the local
// decision.
type ConflictPolicy func(url string, side models.ConflictSide) (localWins bool)

// ServerWins applies the server's change. It is the default: the server is
// authoritative for the account's global state.
func ServerWins(string, models.ConflictSide) bool { return false }

// LocalWins keeps the caller's change and pushes it back to the server.
func LocalWins(string, models.ConflictSide) bool { return true }

// ParseConflictPolicy maps a config value ("server-wins", "local-wins") to a policy.
func ParseConflictPolicy(name string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "server", "server-wins", "server_wins":
		return ServerWins, nil
	case "local", "local-wins", "local_wins":
		return LocalWins, nil
	}
	return nil, fmt.Errorf("%w: unknown conflict policy %q", common.ErrValidation, name)
}
