package protocol

// ClientTag identifies a client-to-server message.
type ClientTag int32

// Client-to-server message tags.
const (
	ClientHandshake ClientTag = iota
	ClientPrimaryPluginUpdate
	ClientSecondaryPluginUpdate
	ClientTextMessage
	ClientScreenWatchPlayer
	ClientScreenshotShare
	ClientKeepalive
	ClientConnectionEnd
	ClientUDPProbe
	ClientShareCraftFile
	ClientActivityUpdateInGame
	ClientActivityUpdateInFlight
	ClientPing

	// ClientNull is the invalid/unknown tag. It must stay last so the
	// known-tag range check in ClientTagOf holds.
	ClientNull
)

// ServerTag identifies a server-to-client message.
type ServerTag int32

// Server-to-client message tags.
const (
	ServerHandshake ServerTag = iota
	ServerHandshakeRefusal
	ServerServerMessage
	ServerTextMessage
	ServerPluginUpdate
	ServerServerSettings
	ServerScreenshotShare
	ServerKeepalive
	ServerConnectionEnd
	ServerUDPAcknowledge
	ServerCraftFile
	ServerPingReply

	// ServerNull is the invalid/unknown tag. It must stay last so the
	// known-tag range check in ServerTagOf holds.
	ServerNull
)

// ClientTagOf maps a raw wire id to a ClientTag. Out-of-range values map to
// ClientNull rather than failing, so a decoder never halts on garbage ids.
func ClientTagOf(id int32) ClientTag {
	if id < 0 || id >= int32(ClientNull) {
		return ClientNull
	}
	return ClientTag(id)
}

// ServerTagOf maps a raw wire id to a ServerTag, with the same NULL fallback
// as ClientTagOf.
func ServerTagOf(id int32) ServerTag {
	if id < 0 || id >= int32(ServerNull) {
		return ServerNull
	}
	return ServerTag(id)
}

var clientTagNames = [...]string{
	"HANDSHAKE",
	"PRIMARY_PLUGIN_UPDATE",
	"SECONDARY_PLUGIN_UPDATE",
	"TEXT_MESSAGE",
	"SCREEN_WATCH_PLAYER",
	"SCREENSHOT_SHARE",
	"KEEPALIVE",
	"CONNECTION_END",
	"UDP_PROBE",
	"SHARE_CRAFT_FILE",
	"ACTIVITY_UPDATE_IN_GAME",
	"ACTIVITY_UPDATE_IN_FLIGHT",
	"PING",
	"NULL",
}

var serverTagNames = [...]string{
	"HANDSHAKE",
	"HANDSHAKE_REFUSAL",
	"SERVER_MESSAGE",
	"TEXT_MESSAGE",
	"PLUGIN_UPDATE",
	"SERVER_SETTINGS",
	"SCREENSHOT_SHARE",
	"KEEPALIVE",
	"CONNECTION_END",
	"UDP_ACKNOWLEDGE",
	"CRAFT_FILE",
	"PING_REPLY",
	"NULL",
}

func (t ClientTag) String() string {
	if t < 0 || int(t) >= len(clientTagNames) {
		return clientTagNames[ClientNull]
	}
	return clientTagNames[t]
}

func (t ServerTag) String() string {
	if t < 0 || int(t) >= len(serverTagNames) {
		return serverTagNames[ServerNull]
	}
	return serverTagNames[t]
}
