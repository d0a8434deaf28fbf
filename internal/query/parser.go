package query

import (
	"errors"
	"fmt"

	"github.com/zanlist/zanlist/internal/protocol"
)

var errFlagDependency = errors.New("flag set without its prerequisite section")

// parseInfo decodes a full (single or reassembled) server response
// payload, starting at the timestamp that follows the response code.
//
// The section order is fixed by the legacy protocol. Every section is
// consumed if and only if its flag bit is set; nothing here may assume a
// fixed offset.
func parseInfo(payload []byte) (ServerInfo, error) {
	var (
		info   ServerInfo
		reader = protocol.NewReader(payload)
		err    error
	)

	if info.Time, err = reader.Long(); err != nil {
		return info, err
	}
	if info.Version, err = reader.String(); err != nil {
		return info, err
	}
	if info.Flags, err = reader.Long(); err != nil {
		return info, err
	}

	if err = parseBaseSections(reader, &info); err != nil {
		return info, err
	}

	if info.Flags&FlagExtendedInfo != 0 {
		if info.ExtFlags, err = reader.Long(); err != nil {
			return info, err
		}
		if err = parseExtendedSections(reader, &info); err != nil {
			return info, err
		}
	}

	return info, nil
}

func parseBaseSections(reader *protocol.Reader, info *ServerInfo) error {
	var err error

	if info.Flags&FlagName != 0 {
		if info.Name, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagURL != 0 {
		if info.URL, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagEmail != 0 {
		if info.Email, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagMapName != 0 {
		if info.MapName, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagMaxClients != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.MaxClients = int(value)
	}
	if info.Flags&FlagMaxPlayers != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.MaxPlayers = int(value)
	}
	if info.Flags&FlagPWads != 0 {
		if err = parsePWads(reader, info); err != nil {
			return err
		}
	}
	if info.Flags&FlagGameType != 0 {
		if err = parseGameType(reader, info); err != nil {
			return err
		}
	}
	if info.Flags&FlagGameName != 0 {
		if info.GameName, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagIWad != 0 {
		if info.IWad, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagForcePassword != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.ForcePassword = value != 0
	}
	if info.Flags&FlagForceJoinPass != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.ForceJoinPassword = value != 0
	}
	if info.Flags&FlagGameSkill != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.GameSkill = int(value)
	}
	if info.Flags&FlagBotSkill != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.BotSkill = int(value)
	}
	if info.Flags&FlagDMFlags != 0 {
		if info.DMFlags, err = reader.Long(); err != nil {
			return err
		}
	}
	if info.Flags&FlagLimits != 0 {
		if err = parseLimits(reader, info); err != nil {
			return err
		}
	}
	if info.Flags&FlagTeamDamage != 0 {
		if info.TeamDamage, err = reader.Float(); err != nil {
			return err
		}
	}
	if info.Flags&FlagNumPlayers != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.NumPlayers = int(value)
	}
	if info.Flags&FlagPlayerData != 0 {
		if info.Flags&FlagNumPlayers == 0 {
			return fmt.Errorf("%w: player data without player count", errFlagDependency)
		}
		if err = parsePlayers(reader, info); err != nil {
			return err
		}
	}
	if err = parseTeams(reader, info); err != nil {
		return err
	}
	if info.Flags&FlagTestingServer != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.TestingServer = value != 0
		if info.TestingArchive, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagDataMD5 != 0 {
		if info.DataMD5, err = reader.String(); err != nil {
			return err
		}
	}
	if info.Flags&FlagAllDMFlags != 0 {
		count, errCount := reader.Byte()
		if errCount != nil {
			return errCount
		}
		for range count {
			value, errValue := reader.Long()
			if errValue != nil {
				return errValue
			}
			info.AllDMFlags = append(info.AllDMFlags, value)
		}
	}
	if info.Flags&FlagSecuritySettings != 0 {
		value, errValue := reader.Byte()
		if errValue != nil {
			return errValue
		}
		info.SecuritySettings = value != 0
	}
	if info.Flags&FlagOptionalWads != 0 {
		if err = parseOptionalWads(reader, info); err != nil {
			return err
		}
	}
	if info.Flags&FlagDeh != 0 {
		count, errCount := reader.Byte()
		if errCount != nil {
			return errCount
		}
		for range count {
			patch, errPatch := reader.String()
			if errPatch != nil {
				return errPatch
			}
			info.DehPatches = append(info.DehPatches, patch)
		}
	}

	return nil
}

func parsePWads(reader *protocol.Reader, info *ServerInfo) error {
	count, errCount := reader.Byte()
	if errCount != nil {
		return errCount
	}

	for range count {
		name, errName := reader.String()
		if errName != nil {
			return errName
		}
		info.PWads = append(info.PWads, PWad{Name: name})
	}

	return nil
}

func parseGameType(reader *protocol.Reader, info *ServerInfo) error {
	mode, errMode := reader.Byte()
	if errMode != nil {
		return errMode
	}
	instagib, errInstagib := reader.Byte()
	if errInstagib != nil {
		return errInstagib
	}
	buckshot, errBuckshot := reader.Byte()
	if errBuckshot != nil {
		return errBuckshot
	}

	info.GameType = int(mode)
	info.Instagib = instagib != 0
	info.Buckshot = buckshot != 0

	return nil
}

// parseLimits reads the win-condition block. The time-left field is only
// present when a time limit is active.
func parseLimits(reader *protocol.Reader, info *ServerInfo) error {
	var err error
	if info.Limits.Frag, err = reader.Short(); err != nil {
		return err
	}
	if info.Limits.Time, err = reader.Short(); err != nil {
		return err
	}
	if info.Limits.Time > 0 {
		if info.Limits.TimeLeft, err = reader.Short(); err != nil {
			return err
		}
	}
	if info.Limits.Duel, err = reader.Short(); err != nil {
		return err
	}
	if info.Limits.Point, err = reader.Short(); err != nil {
		return err
	}
	if info.Limits.Win, err = reader.Short(); err != nil {
		return err
	}

	return nil
}

func parsePlayers(reader *protocol.Reader, info *ServerInfo) error {
	// The team byte is only present for team-aware responses, which is
	// deterministic from the flag word alone.
	hasTeams := info.Flags&FlagTeamInfoNumber != 0

	for range info.NumPlayers {
		var (
			player Player
			err    error
		)
		player.Team = NoTeam

		if player.Name, err = reader.String(); err != nil {
			return err
		}

		score, errScore := reader.Short()
		if errScore != nil {
			return errScore
		}
		player.Score = int16(score)

		if player.Ping, err = reader.Short(); err != nil {
			return err
		}

		spectator, errSpectator := reader.Byte()
		if errSpectator != nil {
			return errSpectator
		}
		player.Spectator = spectator != 0

		bot, errBot := reader.Byte()
		if errBot != nil {
			return errBot
		}
		player.Bot = bot != 0

		if hasTeams {
			team, errTeam := reader.Byte()
			if errTeam != nil {
				return errTeam
			}
			player.Team = int(team)
		}

		minutes, errMinutes := reader.Byte()
		if errMinutes != nil {
			return errMinutes
		}
		player.Minutes = int(minutes)

		info.Players = append(info.Players, player)
	}

	return nil
}

func parseTeams(reader *protocol.Reader, info *ServerInfo) error {
	teamFields := FlagTeamInfoName | FlagTeamInfoColor | FlagTeamInfoScore
	if info.Flags&FlagTeamInfoNumber == 0 {
		if info.Flags&teamFields != 0 {
			return fmt.Errorf("%w: team fields without team count", errFlagDependency)
		}

		return nil
	}

	count, errCount := reader.Byte()
	if errCount != nil {
		return errCount
	}
	info.Teams = make([]Team, count)

	if info.Flags&FlagTeamInfoName != 0 {
		for i := range info.Teams {
			name, errName := reader.String()
			if errName != nil {
				return errName
			}
			info.Teams[i].Name = name
		}
	}
	if info.Flags&FlagTeamInfoColor != 0 {
		for i := range info.Teams {
			color, errColor := reader.Long()
			if errColor != nil {
				return errColor
			}
			info.Teams[i].Color = color
		}
	}
	if info.Flags&FlagTeamInfoScore != 0 {
		for i := range info.Teams {
			score, errScore := reader.Short()
			if errScore != nil {
				return errScore
			}
			info.Teams[i].Score = int16(score)
		}
	}

	return nil
}

// parseOptionalWads reads the indices of PWADs the server considers
// optional and marks the matching entries of the PWAD list.
func parseOptionalWads(reader *protocol.Reader, info *ServerInfo) error {
	count, errCount := reader.Byte()
	if errCount != nil {
		return errCount
	}

	for range count {
		index, errIndex := reader.Byte()
		if errIndex != nil {
			return errIndex
		}
		if int(index) < len(info.PWads) {
			info.PWads[index].Optional = true
		}
	}

	return nil
}

func parseExtendedSections(reader *protocol.Reader, info *ServerInfo) error {
	var err error

	if info.ExtFlags&FlagExtPWadHashes != 0 {
		count, errCount := reader.Byte()
		if errCount != nil {
			return errCount
		}
		for i := range int(count) {
			hash, errHash := reader.String()
			if errHash != nil {
				return errHash
			}
			if i < len(info.PWads) {
				info.PWads[i].Hash = hash
			}
		}
	}
	if info.ExtFlags&FlagExtCountry != 0 {
		raw, errCountry := reader.Bytes(3)
		if errCountry != nil {
			return errCountry
		}
		info.Country = string(raw)
	}
	if info.ExtFlags&FlagExtGameModeName != 0 {
		if info.GameModeName, err = reader.String(); err != nil {
			return err
		}
	}
	if info.ExtFlags&FlagExtGameModeShortName != 0 {
		if info.GameModeShortName, err = reader.String(); err != nil {
			return err
		}
	}

	return nil
}
