package protocol

// Client → server commands. Each command is one ASCII frame; SEND is
// followed by a second frame carrying the encoded message record.
const (
	CmdSend       = "SEND:"
	CmdListUsers  = "LIST_USERS"
	CmdGetLog     = "GET_LOG"
	CmdDisconnect = "DISCONNECT"
)

// Server → client reply prefixes.
const (
	ReplyOK     = "OK:"
	ReplyError  = "ERROR:"
	ReplyNotify = "NOTIFY:"
	ReplyUsers  = "USERS:"
	ReplyLog    = "LOG:"

	// ReplyMessage prefixes an encoded message record delivered to a
	// recipient; header and record travel in a single frame.
	ReplyMessage = "MSG:"
)

// BroadcastRecipient is the reserved recipient name that addresses a
// message to every online user except the sender.
const BroadcastRecipient = "all"
