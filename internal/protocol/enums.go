package protocol

import "strings"

// Face is the one-byte face enumerant understood by the peripheral.
type Face byte

const (
	FaceNone Face = iota + 0x04
	FaceDefault
	FaceLookR
	FaceLookL
	FaceLookRHappy
	FaceLookLHappy
	FaceSleep
	FaceSleep2
	FaceAwake
	FaceBored
	FaceIntense
	FaceCool
	FaceHappy
	FaceGrateful
	FaceExcited
	FaceMotivated
	FaceDemotivated
	FaceSmart
	FaceLonely
	FaceSad
	FaceAngry
	FaceFriend
	FaceBroken
	FaceDebug
	FaceUpload
	FaceUpload1
	FaceUpload2
)

type faceInfo struct {
	name  string
	glyph string
}

// faces is the closed set. NO_FACE and DEFAULT_FACE have no host glyph.
var faces = map[Face]faceInfo{
	FaceNone:        {name: "NO_FACE"},
	FaceDefault:     {name: "DEFAULT_FACE"},
	FaceLookR:       {name: "LOOK_R", glyph: "( ⚆_⚆)"},
	FaceLookL:       {name: "LOOK_L", glyph: "(☉_☉ )"},
	FaceLookRHappy:  {name: "LOOK_R_HAPPY", glyph: "( ◕‿◕)"},
	FaceLookLHappy:  {name: "LOOK_L_HAPPY", glyph: "(◕‿◕ )"},
	FaceSleep:       {name: "SLEEP", glyph: "(⇀‿‿↼)"},
	FaceSleep2:      {name: "SLEEP2", glyph: "(≖‿‿≖)"},
	FaceAwake:       {name: "AWAKE", glyph: "(◕‿‿◕)"},
	FaceBored:       {name: "BORED", glyph: "(-__-)"},
	FaceIntense:     {name: "INTENSE", glyph: "(°▃▃°)"},
	FaceCool:        {name: "COOL", glyph: "(⌐■_■)"},
	FaceHappy:       {name: "HAPPY", glyph: "(•‿‿•)"},
	FaceGrateful:    {name: "GRATEFUL", glyph: "(^‿‿^)"},
	FaceExcited:     {name: "EXCITED", glyph: "(ᵔ◡◡ᵔ)"},
	FaceMotivated:   {name: "MOTIVATED", glyph: "(☼‿‿☼)"},
	FaceDemotivated: {name: "DEMOTIVATED", glyph: "(≖__≖)"},
	FaceSmart:       {name: "SMART", glyph: "(✜‿‿✜)"},
	FaceLonely:      {name: "LONELY", glyph: "(ب__ب)"},
	FaceSad:         {name: "SAD", glyph: "(╥☁╥ )"},
	FaceAngry:       {name: "ANGRY", glyph: "(-_-')"},
	FaceFriend:      {name: "FRIEND", glyph: "(♥‿‿♥)"},
	FaceBroken:      {name: "BROKEN", glyph: "(☓‿‿☓)"},
	FaceDebug:       {name: "DEBUG", glyph: "(#__#)"},
	FaceUpload:      {name: "UPLOAD", glyph: "(1__0)"},
	FaceUpload1:     {name: "UPLOAD1", glyph: "(1__1)"},
	FaceUpload2:     {name: "UPLOAD2", glyph: "(0__1)"},
}

var facesByKey = func() map[string]Face {
	out := make(map[string]Face, 2*len(faces))
	for f, info := range faces {
		out[info.name] = f
		if info.glyph != "" {
			out[info.glyph] = f
		}
	}
	return out
}()

func (f Face) String() string {
	if info, ok := faces[f]; ok {
		return info.name
	}
	return "UNKNOWN_FACE"
}

// Glyph returns the host rendering of f, empty for faces without one.
func (f Face) Glyph() string {
	return faces[f].glyph
}

// ParseFace maps a host face value onto the enumerant. The value may be the
// host glyph or the canonical name. An empty value is NO_FACE; anything else
// outside the closed set is not ok.
func ParseFace(v string) (Face, bool) {
	if v == "" {
		return FaceNone, true
	}
	if f, ok := facesByKey[v]; ok {
		return f, true
	}
	f, ok := facesByKey[strings.ToUpper(strings.TrimSpace(v))]
	return f, ok
}

// Faces lists the enumerants in wire order.
func Faces() []Face {
	out := make([]Face, 0, len(faces))
	for f := FaceNone; f <= FaceUpload2; f++ {
		out = append(out, f)
	}
	return out
}

// Mode is the one-byte operating mode enumerant.
type Mode byte

const (
	ModeManual Mode = 0x04
	ModeAuto   Mode = 0x05
	ModeAI     Mode = 0x06
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "MANU"
	case ModeAuto:
		return "AUTO"
	case ModeAI:
		return "AI"
	default:
		return "UNKNOWN_MODE"
	}
}

// ParseMode maps the host mode label (MANU, AUTO, AI) onto the enumerant.
func ParseMode(v string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "MANU":
		return ModeManual, true
	case "AUTO":
		return ModeAuto, true
	case "AI":
		return ModeAI, true
	default:
		return 0, false
	}
}
