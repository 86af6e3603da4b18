// Package tables describes how each local entity table maps onto the remote
// API and how its rows are turned into payloads.
package tables

import (
	"context"

	"github.com/vietddude/teamsync/internal/core/domain"
)

// Remote is the subset of the remote API the sync engine calls.
type Remote interface {
	// Create stores a new entity and returns its remote id
	Create(ctx context.Context, resource string, payload map[string]any) (string, error)

	// Update replaces an existing entity
	Update(ctx context.Context, resource, id string, payload map[string]any) error

	// Upsert creates or replaces an entity under a client-chosen id
	Upsert(ctx context.Context, resource, id string, payload map[string]any) error

	// Delete removes an entity
	Delete(ctx context.Context, resource, id string) error
}

// SerializeFunc turns a record's entity fields into the table-specific part
// of a remote payload.
type SerializeFunc func(data map[string]any) (map[string]any, error)

// Descriptor declares one syncable table.
type Descriptor struct {
	Table     domain.Table
	Resource  string         // remote collection, e.g. "player-teams"
	DependsOn []domain.Table // tables whose rows must reach the remote first
	Serialize SerializeFunc

	// Upsert sends creates as PUT with the local id (singleton-like rows).
	Upsert bool
}

// DefaultDescriptors returns every table of the team-management app.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Table:     domain.TableSeasons,
			Resource:  "seasons",
			Serialize: serializeSeason,
		},
		{
			Table:     domain.TableTeams,
			Resource:  "teams",
			DependsOn: []domain.Table{domain.TableSeasons},
			Serialize: serializeTeam,
		},
		{
			Table:     domain.TablePlayers,
			Resource:  "players",
			DependsOn: []domain.Table{domain.TableTeams},
			Serialize: serializePlayer,
		},
		{
			Table:     domain.TablePlayerTeams,
			Resource:  "player-teams",
			DependsOn: []domain.Table{domain.TablePlayers, domain.TableTeams},
			Serialize: serializePlayerTeam,
		},
		{
			Table:     domain.TableMatches,
			Resource:  "matches",
			DependsOn: []domain.Table{domain.TableTeams, domain.TableSeasons},
			Serialize: serializeMatch,
		},
		{
			Table:     domain.TableLineups,
			Resource:  "lineups",
			DependsOn: []domain.Table{domain.TableMatches, domain.TablePlayers},
			Serialize: serializeLineup,
		},
		{
			Table:     domain.TableDefaultLineups,
			Resource:  "default-lineups",
			DependsOn: []domain.Table{domain.TableTeams, domain.TablePlayers},
			Serialize: serializeDefaultLineup,
		},
		{
			Table:     domain.TableEvents,
			Resource:  "events",
			DependsOn: []domain.Table{domain.TableMatches, domain.TablePlayers},
			Serialize: serializeEvent,
		},
		{
			Table:     domain.TableMatchPeriods,
			Resource:  "match-periods",
			DependsOn: []domain.Table{domain.TableMatches},
			Serialize: serializeMatchPeriod,
		},
		{
			Table:     domain.TableMatchState,
			Resource:  "match-state",
			DependsOn: []domain.Table{domain.TableMatches},
			Serialize: serializeMatchState,
			Upsert:    true,
		},
	}
}
