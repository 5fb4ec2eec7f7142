// Package domain holds the core entities the rest of the system operates on:
// games, stadiums, teams, feature vectors, edges, recommendations and the
// bankroll state. Nothing here talks to a database or network; persistence
// and transport live in internal/persistence and internal/orchestrator.
package domain

import (
	"fmt"
	"time"
)

// Roof describes a stadium's covering.
type Roof string

const (
	RoofOutdoor    Roof = "outdoor"
	RoofDome       Roof = "dome"
	RoofRetractable Roof = "retractable"
)

// GameStatus tracks a game through its lifecycle.
type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameCompleted GameStatus = "completed"
)

// GameID is the composite primary key for a Game: season, week, away, home.
type GameID struct {
	Season int
	Week   int
	Away   string
	Home   string
}

func (id GameID) String() string {
	return fmt.Sprintf("%d-W%02d-%s@%s", id.Season, id.Week, id.Away, id.Home)
}

// Score is a final score pair. Nil until the game completes.
type Score struct {
	Home int
	Away int
}

// Margin returns home score minus away score.
func (s Score) Margin() int { return s.Home - s.Away }

// Game is immutable once Status is GameCompleted, except that completion
// itself is the one mutation allowed (attaching FinalScore/Result).
type Game struct {
	ID          GameID
	Kickoff     time.Time // UTC
	StadiumRef  string
	Status      GameStatus
	FinalScore  *Score
	Result      *int // home margin, nil until completed
}

// Complete attaches a final outcome. Callers must not call this on an
// already-completed game; Games are immutable once completed.
func (g *Game) Complete(final Score) error {
	if g.Status == GameCompleted {
		return fmt.Errorf("game %s already completed", g.ID)
	}
	g.FinalScore = &final
	margin := final.Margin()
	g.Result = &margin
	g.Status = GameCompleted
	return nil
}

// MicroclimateHints captures qualitative wind behavior not derivable from
// lat/lon/elevation alone.
type MicroclimateHints struct {
	PrevailingWindMPH float64
	WindTunnel        bool
	SwirlingWinds     bool
}

// Stadium is static reference data, created once.
type Stadium struct {
	Name        string // canonical key
	Lat, Lon    float64
	ElevationFt float64
	Roof        Roof
	Surface     string
	Timezone    string
	Microclimate MicroclimateHints
}

// Team is mutated only by Elo updates following completed games.
type Team struct {
	Code       string // key
	Conference string
	Division   string
	Elo        float64
}
