package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/discovery"
	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/jmoiron/sqlx"
)

// GameHistoryRepo implements discovery.GameHistory by joining completed
// games with their as-of-kickoff feature snapshot and result, read from the
// games and feature_snapshots tables. Home and away are labeled from the
// final margin alone (the outright winner); no spread or total line is
// applied, and over/under are not labeled.
type GameHistoryRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewGameHistoryRepo(db *sqlx.DB) *GameHistoryRepo {
	return &GameHistoryRepo{db: db, timeout: 30 * time.Second}
}

func (r *GameHistoryRepo) Since(ctx context.Context, sinceSeason int) ([]discovery.LabeledGame, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []struct {
		Season     int       `db:"season"`
		Week       int       `db:"week"`
		Away       string    `db:"away"`
		Home       string    `db:"home"`
		Kickoff    time.Time `db:"kickoff"`
		StadiumRef string    `db:"stadium_ref"`
		HomeScore  int       `db:"home_score"`
		AwayScore  int       `db:"away_score"`

		HomeEloDiff       float64 `db:"home_elo_diff"`
		HomeOffEfficiency float64 `db:"home_off_efficiency"`
		HomeDefEfficiency float64 `db:"home_def_efficiency"`
		AwayOffEfficiency float64 `db:"away_off_efficiency"`
		AwayDefEfficiency float64 `db:"away_def_efficiency"`
		HomeRestDays      int     `db:"home_rest_days"`
		AwayRestDays      int     `db:"away_rest_days"`
		ForecastWindMPH   float64 `db:"forecast_wind_mph"`
		ForecastGustMPH   float64 `db:"forecast_gust_mph"`
		ForecastTempF     float64 `db:"forecast_temp_f"`
		ForecastPrecipPct float64 `db:"forecast_precip_pct"`
		RefereeHomeWinRate float64 `db:"referee_home_win_rate"`
		RefereePenaltyRate float64 `db:"referee_penalty_rate"`
		HomeInjuryImpact  float64 `db:"home_injury_impact"`
		AwayInjuryImpact  float64 `db:"away_injury_impact"`
		FeatureAsOf       time.Time `db:"feature_as_of"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT g.season, g.week, g.away, g.home, g.kickoff, g.stadium_ref,
		       g.home_score, g.away_score,
		       f.home_elo_diff, f.home_off_efficiency, f.home_def_efficiency,
		       f.away_off_efficiency, f.away_def_efficiency,
		       f.home_rest_days, f.away_rest_days,
		       f.forecast_wind_mph, f.forecast_gust_mph, f.forecast_temp_f, f.forecast_precip_pct,
		       f.referee_home_win_rate, f.referee_penalty_rate,
		       f.home_injury_impact, f.away_injury_impact, f.feature_as_of
		FROM games g
		JOIN feature_snapshots f ON f.game_key = g.game_key AND f.is_pregame_snapshot
		WHERE g.season >= $1 AND g.status = 'completed'
		ORDER BY g.kickoff
	`, sinceSeason)
	if err != nil {
		return nil, fmt.Errorf("postgres: game history since season %d: %w", sinceSeason, err)
	}

	out := make([]discovery.LabeledGame, len(rows))
	for i, row := range rows {
		id := domain.GameID{Season: row.Season, Week: row.Week, Away: row.Away, Home: row.Home}
		margin := row.HomeScore - row.AwayScore

		fv := domain.FeatureVector{
			GameID:             id,
			AsOf:               row.FeatureAsOf,
			HomeEloDiff:        row.HomeEloDiff,
			HomeOffEfficiency:  row.HomeOffEfficiency,
			HomeDefEfficiency:  row.HomeDefEfficiency,
			AwayOffEfficiency:  row.AwayOffEfficiency,
			AwayDefEfficiency:  row.AwayDefEfficiency,
			HomeRestDays:       row.HomeRestDays,
			AwayRestDays:       row.AwayRestDays,
			ForecastWindMPH:    row.ForecastWindMPH,
			ForecastGustMPH:    row.ForecastGustMPH,
			ForecastTempF:      row.ForecastTempF,
			ForecastPrecipPct:  row.ForecastPrecipPct,
			RefereeHomeWinRate: row.RefereeHomeWinRate,
			RefereePenaltyRate: row.RefereePenaltyRate,
			HomeInjuryImpact:   row.HomeInjuryImpact,
			AwayInjuryImpact:   row.AwayInjuryImpact,
		}

		out[i] = discovery.LabeledGame{
			Game: domain.Game{
				ID:         id,
				Kickoff:    row.Kickoff,
				StadiumRef: row.StadiumRef,
				Status:     domain.GameCompleted,
				FinalScore: &domain.Score{Home: row.HomeScore, Away: row.AwayScore},
				Result:     &margin,
			},
			Features: fv,
			SideWon: map[domain.Side]bool{
				domain.SideHome: margin > 0,
				domain.SideAway: margin < 0,
			},
		}
	}
	return out, nil
}
