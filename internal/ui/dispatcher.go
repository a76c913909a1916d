package ui

import (
	"errors"

	"github.com/SolidHal/pwnagotchi-flipper/internal/observability"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Sender writes one command to the peripheral and waits for its ACK.
type Sender interface {
	SendCommand(cmd byte, body []byte) error
}

// Outcome is what happened to one field during a dispatch.
type Outcome string

const (
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeSent        Outcome = "sent"
	OutcomePlaceholder Outcome = "placeholder"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeFailed      Outcome = "failed"
)

type fieldSpec struct {
	field       Field
	opcode      byte
	encode      func(string) ([]byte, error)
	placeholder bool
}

// fields is sent in this order on every dispatch.
var fields = []fieldSpec{
	{field: FieldFace, opcode: protocol.OpUIFace, encode: encodeFace},
	{field: FieldName, opcode: protocol.OpUIName, encode: encodeName},
	{field: FieldChannel, opcode: protocol.OpUIChannel, encode: encodeText},
	{field: FieldAPs, opcode: protocol.OpUIAPs, encode: encodeText, placeholder: true},
	{field: FieldUptime, opcode: protocol.OpUIUptime, encode: encodeUptime},
	{field: FieldMode, opcode: protocol.OpUIMode, encode: encodeMode},
	{field: FieldHandshakes, opcode: protocol.OpUIHandshakes, encode: encodeText, placeholder: true},
	{field: FieldStatus, opcode: protocol.OpUIStatus, encode: encodeText},
}

// Fields lists the mirrored fields in dispatch order.
func Fields() []Field {
	out := make([]Field, len(fields))
	for i, spec := range fields {
		out[i] = spec.field
	}
	return out
}

func (s fieldSpec) changed(prev *Snapshot, cur Snapshot) bool {
	if prev == nil {
		return true
	}
	return prev.Value(s.field) != cur.Value(s.field)
}

// FieldResult records the outcome for one field.
type FieldResult struct {
	Field   Field
	Outcome Outcome
	Err     error
}

// Report lists one result per field, in dispatch order.
type Report struct {
	Results []FieldResult
}

// Count returns how many fields ended with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Result returns the entry for f.
func (r Report) Result(f Field) (FieldResult, bool) {
	for _, res := range r.Results {
		if res.Field == f {
			return res, true
		}
	}
	return FieldResult{}, false
}

// Err joins every per-field failure, or nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

type Options struct {
	// SendPlaceholders sends the aps and handshakes fields as raw text.
	// Off by default: the peripheral renders its own counters.
	SendPlaceholders bool
}

// Dispatcher sends the fields that differ between two snapshots.
type Dispatcher struct {
	opts Options
}

func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{opts: opts}
}

// Dispatch sends every field of cur that differs from prev, or every field
// when prev is nil. A failing field is logged and recorded; the remaining
// fields are still sent.
func (d *Dispatcher) Dispatch(sender Sender, prev *Snapshot, cur Snapshot) Report {
	report := Report{Results: make([]FieldResult, 0, len(fields))}
	for _, spec := range fields {
		res := d.dispatchField(sender, spec, prev, cur)
		observability.RecordFieldDispatch(string(spec.field), string(res.Outcome))
		report.Results = append(report.Results, res)
	}
	return report
}

func (d *Dispatcher) dispatchField(sender Sender, spec fieldSpec, prev *Snapshot, cur Snapshot) FieldResult {
	res := FieldResult{Field: spec.field}
	if !spec.changed(prev, cur) {
		res.Outcome = OutcomeUnchanged
		return res
	}

	value := cur.Value(spec.field)
	if spec.placeholder && !d.opts.SendPlaceholders {
		res.Outcome = OutcomePlaceholder
		log.Trace().
			Str("field", string(spec.field)).
			Str("value", value).
			Msg("ui.Dispatcher.Dispatch placeholder skipped")
		return res
	}

	body, err := spec.encode(value)
	if err != nil {
		res.Outcome = OutcomeInvalid
		res.Err = err
		log.Warn().
			Err(err).
			Str("field", string(spec.field)).
			Str("value", value).
			Msg("ui.Dispatcher.Dispatch invalid value")
		return res
	}

	if err := sender.SendCommand(spec.opcode, body); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		log.Warn().
			Err(err).
			Str("field", string(spec.field)).
			Str("class", protocol.Classify(err).String()).
			Msg("ui.Dispatcher.Dispatch send failed")
		return res
	}

	res.Outcome = OutcomeSent
	log.Debug().
		Str("field", string(spec.field)).
		Str("value", value).
		Msg("ui.Dispatcher.Dispatch sent")
	return res
}
