package ui

// Field names one mirrored UI element.
type Field string

const (
	FieldFace       Field = "face"
	FieldName       Field = "name"
	FieldChannel    Field = "channel"
	FieldAPs        Field = "aps"
	FieldUptime     Field = "uptime"
	FieldMode       Field = "mode"
	FieldHandshakes Field = "handshakes"
	FieldStatus     Field = "status"
)

// Snapshot is the host UI at one tick. Values are the host's own renderings:
// face glyph, "HH:MM:SS" uptime, "MANU"/"AUTO"/"AI" mode, and so on.
type Snapshot struct {
	Face       string `toml:"face" json:"face"`
	Name       string `toml:"name" json:"name"`
	Channel    string `toml:"channel" json:"channel"`
	APs        string `toml:"aps" json:"aps"`
	Uptime     string `toml:"uptime" json:"uptime"`
	Mode       string `toml:"mode" json:"mode"`
	Handshakes string `toml:"handshakes" json:"handshakes"`
	Status     string `toml:"status" json:"status"`
}

// Value returns the current value of f.
func (s Snapshot) Value(f Field) string {
	switch f {
	case FieldFace:
		return s.Face
	case FieldName:
		return s.Name
	case FieldChannel:
		return s.Channel
	case FieldAPs:
		return s.APs
	case FieldUptime:
		return s.Uptime
	case FieldMode:
		return s.Mode
	case FieldHandshakes:
		return s.Handshakes
	case FieldStatus:
		return s.Status
	default:
		return ""
	}
}
