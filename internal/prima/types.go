package prima

import "encoding/json"

// Channel is one entry of the provider channel list (epg.channel.list).
// The list order is meaningful: callers resolve names first-match-wins in
// provider order.
type Channel struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Program is one guide entry of a per-day programme listing
// (epg.program.bulk.list). The provider emits two generations of field
// names for times and play identifiers; accessors below pick whichever is
// set.
type Program struct {
	Title            string `json:"title"`
	ProgramStartTime string `json:"programStartTime"`
	StartTime        string `json:"startTime"`
	ProgramEndTime   string `json:"programEndTime"`
	EndTime          string `json:"endTime"`
	IsPlayable       bool   `json:"isPlayable"`
	PlayID           string `json:"playId"`
	ID               string `json:"id"`
}

// Start returns the raw start timestamp string, preferring the newer field.
func (p Program) Start() string {
	if p.ProgramStartTime != "" {
		return p.ProgramStartTime
	}
	return p.StartTime
}

// End returns the raw end timestamp string, preferring the newer field.
func (p Program) End() string {
	if p.ProgramEndTime != "" {
		return p.ProgramEndTime
	}
	return p.EndTime
}

// PlayRef returns the archive play identifier, preferring playId over id.
func (p Program) PlayRef() string {
	if p.PlayID != "" {
		return p.PlayID
	}
	return p.ID
}

// StreamInfo is one stream entry of a play-info response.
type StreamInfo struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// PlayInfo is the products/id-*/play response. Error carries an embedded
// provider error payload when the product cannot be played; its shape is
// not stable (string or object), so it is kept raw.
type PlayInfo struct {
	StreamInfos []StreamInfo    `json:"streamInfos"`
	Error       json.RawMessage `json:"error"`
}

// ErrorPayload returns the embedded provider error as a compact string, or
// "" when the response carries none.
func (p PlayInfo) ErrorPayload() string {
	if len(p.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Error, &s); err == nil {
		return s
	}
	return string(p.Error)
}
