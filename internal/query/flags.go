package query

// Field flags of the server query request. Each set bit asks the server
// to include one payload section, emitted in exactly this order. An
// unset bit means the section is entirely absent from the byte stream,
// so the parser must branch on every bit and never assume offsets.
const (
	FlagName             uint32 = 0x00000001
	FlagURL              uint32 = 0x00000002
	FlagEmail            uint32 = 0x00000004
	FlagMapName          uint32 = 0x00000008
	FlagMaxClients       uint32 = 0x00000010
	FlagMaxPlayers       uint32 = 0x00000020
	FlagPWads            uint32 = 0x00000040
	FlagGameType         uint32 = 0x00000080
	FlagGameName         uint32 = 0x00000100
	FlagIWad             uint32 = 0x00000200
	FlagForcePassword    uint32 = 0x00000400
	FlagForceJoinPass    uint32 = 0x00000800
	FlagGameSkill        uint32 = 0x00001000
	FlagBotSkill         uint32 = 0x00002000
	FlagDMFlags          uint32 = 0x00004000
	FlagLimits           uint32 = 0x00010000
	FlagTeamDamage       uint32 = 0x00020000
	FlagNumPlayers       uint32 = 0x00080000
	FlagPlayerData       uint32 = 0x00100000
	FlagTeamInfoNumber   uint32 = 0x00200000
	FlagTeamInfoName     uint32 = 0x00400000
	FlagTeamInfoColor    uint32 = 0x00800000
	FlagTeamInfoScore    uint32 = 0x01000000
	FlagTestingServer    uint32 = 0x02000000
	FlagDataMD5          uint32 = 0x04000000
	FlagAllDMFlags       uint32 = 0x08000000
	FlagSecuritySettings uint32 = 0x10000000
	FlagOptionalWads     uint32 = 0x20000000
	FlagDeh              uint32 = 0x40000000
	FlagExtendedInfo     uint32 = 0x80000000
)

// Extended field flags, unlocked by FlagExtendedInfo.
const (
	FlagExtPWadHashes        uint32 = 0x00000001
	FlagExtCountry           uint32 = 0x00000002
	FlagExtGameModeName      uint32 = 0x00000004
	FlagExtGameModeShortName uint32 = 0x00000008
)

// DefaultFlags requests every section a server browser renders.
const DefaultFlags = FlagName | FlagURL | FlagEmail | FlagMapName |
	FlagMaxClients | FlagMaxPlayers | FlagPWads | FlagGameType |
	FlagGameName | FlagIWad | FlagForcePassword | FlagForceJoinPass |
	FlagGameSkill | FlagBotSkill | FlagLimits | FlagTeamDamage |
	FlagNumPlayers | FlagPlayerData | FlagTeamInfoNumber |
	FlagTeamInfoName | FlagTeamInfoColor | FlagTeamInfoScore |
	FlagTestingServer | FlagDataMD5 | FlagAllDMFlags |
	FlagSecuritySettings | FlagOptionalWads | FlagDeh | FlagExtendedInfo

// DefaultExtFlags requests every extended section.
const DefaultExtFlags = FlagExtPWadHashes | FlagExtCountry |
	FlagExtGameModeName | FlagExtGameModeShortName
