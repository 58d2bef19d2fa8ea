package model

// RawLog is one log entry exactly as a provider returned it: hex-encoded
// topics and data. Immutable once constructed.
type RawLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// Topic0 returns the event signature topic, or "" when the log has no topics.
func (l RawLog) Topic0() string {
	if len(l.Topics) == 0 {
		return ""
	}
	return l.Topics[0]
}

// Receipt is the execution record of one transaction. It is a value type:
// the fetch layer returns either a complete valid receipt or none at all.
type Receipt struct {
	TxHash      string
	Chain       Chain
	Status      TxStatus
	Logs        []RawLog
	MethodSig   string // 4-byte selector as 0x-prefixed hex, "" when unknown
	NativeValue string // wei as decimal string
	From        string
	To          string
}

func (r Receipt) Failed() bool {
	return r.Status == TxStatusFailed
}
