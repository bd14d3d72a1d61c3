// Package at holds the RAK3172 AT command vocabulary: command strings,
// response markers, the line splitter and the classifiers for replies
// and unsolicited events.
package at

const (
	// Terminal Control
	CRLF = "\r\n"
	LF   = "\n"

	// Commands
	CmdAt      = "AT"
	CmdJoinABP = "AT+NJM=0"
	CmdJoinOTA = "AT+NJM=1"
	CmdClass   = "AT+CLASS="
	CmdBand    = "AT+BAND="
	CmdDevAddr = "AT+DEVADDR="
	CmdAppSKey = "AT+APPSKEY="
	CmdNwkSKey = "AT+NWKSKEY="
	CmdJoin    = "AT+JOIN"
	CmdSend    = "AT+SEND="

	// Response Codes
	OK                 = "OK"
	Error              = "AT_ERROR"
	ParamError         = "AT_PARAM_ERROR"
	BusyError          = "AT_BUSY_ERROR"
	ParamOverflow      = "AT_TEST_PARAM_OVERFLOW"
	NoClassBEnable     = "AT_NO_CLASSB_ENABLE"
	NoNetworkJoined    = "AT_NO_NETWORK_JOINED"
	RxError            = "AT_RX_ERROR"
	ErrorCodePrefix    = "AT_"
	EventPrefix        = "+EVT:"
	FieldSeparator     = ":"
	SendPortSeparator  = ":"
	DefaultUplinkFPort = 2

	// Events (unsolicited)
	EvtTxDone   = "+EVT:TX_DONE"
	EvtRx       = "+EVT:RX_"
	EvtJoined   = "+EVT:JOINED"
	EvtJoinFail = "+EVT:JOIN_FAILED"
)

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK
	TypeError                     // AT_ERROR, AT_PARAM_ERROR, ...
	TypeEvent                     // +EVT:... notifications
	TypeData                      // echo and intermediate output
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeError:
		return "error"
	case TypeEvent:
		return "event"
	default:
		return "data"
	}
}
