package domain

// Table names an entity table that participates in sync.
type Table string

const (
	TableSeasons        Table = "seasons"
	TableTeams          Table = "teams"
	TablePlayers        Table = "players"
	TablePlayerTeams    Table = "player_teams"
	TableMatches        Table = "matches"
	TableLineups        Table = "lineups"
	TableDefaultLineups Table = "default_lineups"
	TableEvents         Table = "events"
	TableMatchPeriods   Table = "match_periods"
	TableMatchState     Table = "match_state"
)

// AllTables lists every syncable table in foreign-key dependency order.
var AllTables = []Table{
	TableSeasons,
	TableTeams,
	TablePlayers,
	TablePlayerTeams,
	TableMatches,
	TableLineups,
	TableDefaultLineups,
	TableEvents,
	TableMatchPeriods,
	TableMatchState,
}

// Valid reports whether t is a known table.
func (t Table) Valid() bool {
	for _, known := range AllTables {
		if t == known {
			return true
		}
	}
	return false
}
