package eventlog

import "github.com/rzbill/tideline/pkg/id"

// TrimReason names the retention rule that removed entries.
type TrimReason string

const (
	TrimMaxLen TrimReason = "maxlen"
	TrimMinID  TrimReason = "minid"
)

// TrimHook is an optional callback invoked when retention deletes a range.
// first and last are the oldest and newest removed ids.
type TrimHook interface {
	OnTrim(stream string, reason TrimReason, first, last id.ID, removed int64)
}

type noopTrimHook struct{}

func (noopTrimHook) OnTrim(string, TrimReason, id.ID, id.ID, int64) {}
