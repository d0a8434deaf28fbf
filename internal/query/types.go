package query

import "time"

// NoTeam is the sentinel for a player that belongs to no team. Any team
// index outside the team table also means no team.
const NoTeam = 255

// PWad is one patch WAD advertised by a server.
type PWad struct {
	Name     string
	Hash     string
	Optional bool
}

// Player is one connected client as reported by the server.
type Player struct {
	Name      string
	Score     int16
	Ping      uint16
	Spectator bool
	Bot       bool
	Team      int
	Minutes   int
}

// Team is one entry of the team table. Player.Team indexes into it by
// position.
type Team struct {
	Name  string
	Color uint32
	Score int16
}

// Limits are the win-condition settings of a server.
type Limits struct {
	Frag     uint16
	Time     uint16
	TimeLeft uint16
	Duel     uint16
	Point    uint16
	Win      uint16
}

// ServerInfo is the decoded state of one game server at one instant.
type ServerInfo struct {
	Time              uint32
	Version           string
	Flags             uint32
	ExtFlags          uint32
	Name              string
	URL               string
	Email             string
	MapName           string
	MaxClients        int
	MaxPlayers        int
	PWads             []PWad
	GameType          int
	Instagib          bool
	Buckshot          bool
	GameName          string
	IWad              string
	ForcePassword     bool
	ForceJoinPassword bool
	GameSkill         int
	BotSkill          int
	DMFlags           uint32
	Limits            Limits
	TeamDamage        float32
	NumPlayers        int
	Players           []Player
	Teams             []Team
	TestingServer     bool
	TestingArchive    string
	DataMD5           string
	AllDMFlags        []uint32
	SecuritySettings  bool
	DehPatches        []string
	Country           string
	GameModeName      string
	GameModeShortName string
	Ping              time.Duration
}

// PlayerCount is the number of human, non-spectating players.
func (s ServerInfo) PlayerCount() int {
	count := 0
	for _, player := range s.Players {
		if !player.Bot && !player.Spectator {
			count++
		}
	}

	return count
}

// BotCount is the number of bots in the player list.
func (s ServerInfo) BotCount() int {
	count := 0
	for _, player := range s.Players {
		if player.Bot {
			count++
		}
	}

	return count
}

// SpectatorCount is the number of spectating humans.
func (s ServerInfo) SpectatorCount() int {
	count := 0
	for _, player := range s.Players {
		if player.Spectator && !player.Bot {
			count++
		}
	}

	return count
}
