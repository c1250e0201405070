package gong

import "time"

// Wire shapes of the /v2/calls endpoints. Only the fields the engine reads are declared.

type records struct {
	TotalRecords int    `json:"totalRecords"`
	Cursor       string `json:"cursor"`
}

type callsPage struct {
	Records records `json:"records"`
	Calls   []struct {
		ID string `json:"id"`
	} `json:"calls"`
}

type callFilter struct {
	CallIDs      []string `json:"callIds"`
	FromDateTime string   `json:"fromDateTime"`
	ToDateTime   string   `json:"toDateTime"`
}

type contentFields struct {
	Structure bool `json:"structure"`
	Topics    bool `json:"topics"`
	Trackers  bool `json:"trackers"`
	Brief     bool `json:"brief"`
	KeyPoints bool `json:"keyPoints"`
}

type exposedFields struct {
	Parties bool          `json:"parties"`
	Content contentFields `json:"content"`
}

type contentSelector struct {
	Context       string        `json:"context"`
	ExposedFields exposedFields `json:"exposedFields"`
}

type extensiveRequest struct {
	Filter          callFilter      `json:"filter"`
	ContentSelector contentSelector `json:"contentSelector"`
	Cursor          string          `json:"cursor,omitempty"`
}

type transcriptRequest struct {
	Filter callFilter `json:"filter"`
	Cursor string     `json:"cursor,omitempty"`
}

type metaData struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Started    time.Time `json:"started"`
	Duration   int64     `json:"duration"`
	MeetingURL string    `json:"meetingUrl"`
	Scope      string    `json:"scope"`
}

type contextField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type contextObject struct {
	ObjectType string         `json:"objectType"`
	ObjectID   string         `json:"objectId"`
	Fields     []contextField `json:"fields"`
}

type callContext struct {
	System  string          `json:"system"`
	Objects []contextObject `json:"objects"`
}

type party struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	SpeakerID   string `json:"speakerId"`
	Affiliation string `json:"affiliation"`
}

type extensiveCall struct {
	MetaData metaData      `json:"metaData"`
	Context  []callContext `json:"context"`
	Parties  []party       `json:"parties"`
	Content  struct {
		Trackers []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"trackers"`
		Topics []struct {
			Name     string  `json:"name"`
			Duration float64 `json:"duration"`
		} `json:"topics"`
		Brief     string `json:"brief"`
		KeyPoints []struct {
			Text string `json:"text"`
		} `json:"keyPoints"`
	} `json:"content"`
}

type extensivePage struct {
	Records records         `json:"records"`
	Calls   []extensiveCall `json:"calls"`
}

type sentence struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

type monologue struct {
	SpeakerID string     `json:"speakerId"`
	Topic     string     `json:"topic"`
	Sentences []sentence `json:"sentences"`
}

type transcriptPage struct {
	Records         records `json:"records"`
	CallTranscripts []struct {
		CallID     string      `json:"callId"`
		Transcript []monologue `json:"transcript"`
	} `json:"callTranscripts"`
}
