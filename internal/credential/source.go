package credential

import (
	"encoding/json"
	"strings"
)

// SourceTag records where a credential came from.
type SourceTag string

const (
	SourceManual   SourceTag = "manual"
	SourceImported SourceTag = "imported"
	SourcePrivate  SourceTag = "private"
	SourceLocal    SourceTag = "local"
	SourceRemote   SourceTag = "remote"
)

type sourceStyle struct {
	label string
	color string
}

var sourceStyles = map[SourceTag]sourceStyle{
	SourceManual:   {label: "手动添加", color: "blue"},
	SourceImported: {label: "导入", color: "green"},
	SourcePrivate:  {label: "私有", color: "purple"},
	SourceLocal:    {label: "本地", color: "gray"},
	SourceRemote:   {label: "远程", color: "indigo"},
}

// ParseSource normalizes a raw source value; unknown or empty values map to manual.
func ParseSource(raw string) SourceTag {
	tag := SourceTag(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := sourceStyles[tag]; ok {
		return tag
	}
	return SourceManual
}

// Normalized returns the tag itself when known, manual otherwise.
func (s SourceTag) Normalized() SourceTag {
	return ParseSource(string(s))
}

// Label returns the fixed display label.
func (s SourceTag) Label() string {
	return sourceStyles[s.Normalized()].label
}

// Color returns the fixed badge color.
func (s SourceTag) Color() string {
	return sourceStyles[s.Normalized()].color
}

// UnmarshalJSON accepts any string and normalizes it.
func (s *SourceTag) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = SourceManual
		return nil
	}
	*s = ParseSource(*raw)
	return nil
}
