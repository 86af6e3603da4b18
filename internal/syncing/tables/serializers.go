package tables

import (
	"fmt"
	"sort"
	"strings"
)

func serializeSeason(data map[string]any) (map[string]any, error) {
	f := fields(data)
	name, err := f.requireStr("name")
	if err != nil {
		return nil, err
	}
	start, err := f.date("startDate")
	if err != nil {
		return nil, err
	}
	end, err := f.date("endDate")
	if err != nil {
		return nil, err
	}
	if s, ok := start.(string); ok {
		if e, ok := end.(string); ok && e < s {
			return nil, invalid("endDate %s is before startDate %s", e, s)
		}
	}
	return map[string]any{
		"name":      name,
		"startDate": start,
		"endDate":   end,
	}, nil
}

func serializeTeam(data map[string]any) (map[string]any, error) {
	f := fields(data)
	name, err := f.requireStr("name")
	if err != nil {
		return nil, err
	}
	opponent, err := f.boolOr("isOpponent", false)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":       name,
		"seasonId":   f.optStr("seasonId"),
		"color":      f.optStr("color"),
		"isOpponent": opponent,
	}, nil
}

func serializePlayer(data map[string]any) (map[string]any, error) {
	f := fields(data)
	first, last := f.str("firstName"), f.str("lastName")
	if first == "" && last == "" {
		parts := strings.Fields(f.str("name"))
		if len(parts) > 0 {
			first = parts[0]
			last = strings.Join(parts[1:], " ")
		}
	}
	if first == "" {
		return nil, invalid("firstName is required")
	}
	active, err := f.boolOr("active", true)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"firstName": first,
		"lastName":  last,
		"position":  f.optStr("position"),
		"active":    active,
	}, nil
}

func serializePlayerTeam(data map[string]any) (map[string]any, error) {
	f := fields(data)
	playerID, err := f.requireStr("playerId")
	if err != nil {
		return nil, err
	}
	teamID, err := f.requireStr("teamId")
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"playerId":     playerID,
		"teamId":       teamID,
		"jerseyNumber": nil,
	}
	n, ok, err := f.integer("jerseyNumber")
	if err != nil {
		return nil, err
	}
	if ok {
		if n < 0 || n > 999 {
			return nil, invalid("jerseyNumber %d out of range", n)
		}
		payload["jerseyNumber"] = n
	}
	return payload, nil
}

func serializeMatch(data map[string]any) (map[string]any, error) {
	f := fields(data)
	teamID, err := f.requireStr("teamId")
	if err != nil {
		return nil, err
	}
	kickoff, err := f.timestamp("kickoffAt")
	if err != nil {
		return nil, err
	}
	home, err := f.intOr("homeScore", 0)
	if err != nil {
		return nil, err
	}
	away, err := f.intOr("awayScore", 0)
	if err != nil {
		return nil, err
	}
	if home < 0 || away < 0 {
		return nil, invalid("scores must not be negative")
	}
	return map[string]any{
		"teamId":    teamID,
		"seasonId":  f.optStr("seasonId"),
		"opponent":  f.str("opponent", "opponentName"),
		"kickoffAt": kickoff,
		"homeScore": home,
		"awayScore": away,
		"venue":     f.optStr("venue"),
	}, nil
}

func serializeLineup(data map[string]any) (map[string]any, error) {
	f := fields(data)
	matchID, err := f.requireStr("matchId")
	if err != nil {
		return nil, err
	}
	positions, err := normalizePositions(f["positions"])
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"matchId":   matchID,
		"teamId":    f.optStr("teamId"),
		"formation": f.optStr("formation"),
		"positions": positions,
	}, nil
}

func serializeDefaultLineup(data map[string]any) (map[string]any, error) {
	f := fields(data)
	teamID, err := f.requireStr("teamId")
	if err != nil {
		return nil, err
	}
	positions, err := normalizePositions(f["positions"])
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"teamId":    teamID,
		"formation": f.optStr("formation"),
		"positions": positions,
	}, nil
}

// normalizePositions accepts either a list of slot objects or an object
// keyed by position name whose values are player ids.
func normalizePositions(raw any) ([]map[string]any, error) {
	out := []map[string]any{}

	switch v := raw.(type) {
	case nil:
		return out, nil
	case []map[string]any:
		for i, slot := range v {
			s, err := normalizeSlot(fields(slot), "")
			if err != nil {
				return nil, fmt.Errorf("positions[%d]: %w", i, err)
			}
			out = append(out, s)
		}
	case []any:
		for i, item := range v {
			slot, ok := item.(map[string]any)
			if !ok {
				return nil, invalid("positions[%d] is not an object", i)
			}
			s, err := normalizeSlot(fields(slot), "")
			if err != nil {
				return nil, fmt.Errorf("positions[%d]: %w", i, err)
			}
			out = append(out, s)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, pos := range keys {
			switch slot := v[pos].(type) {
			case string:
				out = append(out, map[string]any{"playerId": slot, "position": pos, "x": 0.0, "y": 0.0})
			case map[string]any:
				s, err := normalizeSlot(fields(slot), pos)
				if err != nil {
					return nil, fmt.Errorf("positions.%s: %w", pos, err)
				}
				out = append(out, s)
			default:
				return nil, invalid("positions.%s has unsupported value", pos)
			}
		}
	default:
		return nil, invalid("positions must be a list or an object")
	}
	return out, nil
}

func normalizeSlot(f fields, position string) (map[string]any, error) {
	playerID, err := f.requireStr("playerId")
	if err != nil {
		return nil, err
	}
	if p := f.str("position"); p != "" {
		position = p
	}
	x, err := f.float("x")
	if err != nil {
		return nil, err
	}
	y, err := f.float("y")
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"playerId": playerID,
		"position": position,
		"x":        x,
		"y":        y,
	}, nil
}

const (
	eventGoal         = "goal"
	eventSubstitution = "substitution"
	eventCard         = "card"
	eventGeneric      = "generic"
)

func serializeEvent(data map[string]any) (map[string]any, error) {
	f := fields(data)
	matchID, err := f.requireStr("matchId")
	if err != nil {
		return nil, err
	}
	kind := f.str("kind", "type")
	if kind == "" {
		kind = eventGeneric
	}
	kind, err = oneOf("kind", kind, eventGoal, eventSubstitution, eventCard, eventGeneric)
	if err != nil {
		return nil, err
	}
	minute, err := f.intOr("minute", 0)
	if err != nil {
		return nil, err
	}
	period, err := f.intOr("periodNumber", 1)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"matchId":      matchID,
		"kind":         kind,
		"minute":       minute,
		"periodNumber": period,
		"teamId":       f.optStr("teamId"),
	}

	switch kind {
	case eventGoal:
		scorer, err := f.requireStr("scorerId")
		if err != nil {
			return nil, err
		}
		payload["scorerId"] = scorer
		payload["assistId"] = f.optStr("assistId")
	case eventSubstitution:
		off, err := f.requireStr("playerOffId")
		if err != nil {
			return nil, err
		}
		on, err := f.requireStr("playerOnId")
		if err != nil {
			return nil, err
		}
		if off == on {
			return nil, invalid("substitution replaces a player with themselves")
		}
		payload["playerOffId"] = off
		payload["playerOnId"] = on
	case eventCard:
		player, err := f.requireStr("playerId")
		if err != nil {
			return nil, err
		}
		color, err := oneOf("color", f.str("color"), "yellow", "red")
		if err != nil {
			return nil, err
		}
		payload["playerId"] = player
		payload["color"] = color
	case eventGeneric:
		payload["notes"] = f.str("notes")
	}
	return payload, nil
}

func serializeMatchPeriod(data map[string]any) (map[string]any, error) {
	f := fields(data)
	matchID, err := f.requireStr("matchId")
	if err != nil {
		return nil, err
	}
	number, err := f.requireInt("periodNumber")
	if err != nil {
		return nil, err
	}
	if number < 1 {
		return nil, invalid("periodNumber must be positive, got %d", number)
	}

	started, hasStart, err := f.timeValue("startedAt")
	if err != nil {
		return nil, err
	}
	ended, hasEnd, err := f.timeValue("endedAt")
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"matchId":         matchID,
		"periodNumber":    number,
		"startedAt":       nil,
		"endedAt":         nil,
		"durationSeconds": nil,
	}
	if hasStart {
		payload["startedAt"] = formatTimestamp(started)
	}
	if hasEnd {
		payload["endedAt"] = formatTimestamp(ended)
	}
	if hasStart && hasEnd {
		if ended.Before(started) {
			return nil, invalid("endedAt is before startedAt")
		}
		payload["durationSeconds"] = int(ended.Sub(started).Seconds())
	}
	return payload, nil
}

func serializeMatchState(data map[string]any) (map[string]any, error) {
	f := fields(data)
	matchID, err := f.requireStr("matchId")
	if err != nil {
		return nil, err
	}
	status := f.str("status")
	if status == "" {
		status = "not_started"
	}
	status, err = oneOf("status", status, "not_started", "in_progress", "paused", "completed")
	if err != nil {
		return nil, err
	}
	clock, err := f.intOr("clockMs", 0)
	if err != nil {
		return nil, err
	}
	if clock < 0 {
		return nil, invalid("clockMs must not be negative")
	}
	period, err := f.intOr("currentPeriod", 1)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"matchId":       matchID,
		"status":        status,
		"clockMs":       clock,
		"currentPeriod": period,
	}, nil
}
