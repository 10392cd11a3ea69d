package discovery

// NoticeKind classifies an advisory notice for the UI.
type NoticeKind string

const (
	NoticeRadioEnabled      NoticeKind = "radio-enabled"
	NoticeRadioDisabled     NoticeKind = "radio-disabled"
	NoticePeersUpdated      NoticeKind = "peers-updated"
	NoticeConnecting        NoticeKind = "connecting"
	NoticeConnected         NoticeKind = "connected"
	NoticeDisconnected      NoticeKind = "disconnected"
	NoticeThisDeviceChanged NoticeKind = "this-device-changed"
)

// Notice is advisory only; nothing in the session depends on it being delivered.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// NoticeFunc consumes notices.
type NoticeFunc func(notice Notice)
