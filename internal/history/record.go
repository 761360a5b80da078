package history

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

type Status string

const (
	StatusOK        Status = "ok"
	StatusError     Status = "error"
	StatusInProcess Status = "in process"
	StatusNotSent   Status = "not send"
)

func (s Status) Terminal() bool {
	return s == StatusOK || s == StatusError
}

// Record is the persisted audit entry for one send. Duration is in
// milliseconds; weights are UTF-8 byte counts.
type Record struct {
	ID             string              `json:"id"`
	Method         string              `json:"method"`
	Path           string              `json:"path"`
	URLWithVars    string              `json:"urlWithVars"`
	Status         Status              `json:"status"`
	Code           int                 `json:"code"`
	Duration       int64               `json:"duration"`
	RequestWeight  int                 `json:"requestWeight"`
	ResponseWeight int                 `json:"responseWeight"`
	Response       *restmodel.Response `json:"response,omitempty"`
	Headers        []restmodel.Header  `json:"headers"`
	Body           string              `json:"body"`
	Variables      map[string]string   `json:"variables"`
	ErrorDetails   string              `json:"errorDetails"`
	Base64URL      string              `json:"base64Url"`
	RequestID      string              `json:"requestId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Initial holds the fields known before the network call.
type Initial struct {
	Method        string
	Path          string
	URLWithVars   string
	Headers       []restmodel.Header
	Body          string
	Variables     map[string]string
	Base64URL     string
	RequestID     string
	RequestWeight int
}

// Terminal holds the fields written by the single finalize update.
type Terminal struct {
	Status         Status              `json:"status"`
	Code           int                 `json:"code"`
	Duration       int64               `json:"duration"`
	ResponseWeight int                 `json:"responseWeight"`
	Response       *restmodel.Response `json:"response,omitempty"`
	ErrorDetails   string              `json:"errorDetails"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// toDocument goes through JSON so every backend sees the same plain shape
// that a document read back from disk or SQL would have.
func toDocument(v any) (docstore.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "encode history record")
	}
	var doc docstore.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "encode history record")
	}
	return doc, nil
}

func fromDocument(doc docstore.Document) (Record, error) {
	var rec Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:           &rec,
	})
	if err != nil {
		return Record{}, errdef.Wrap(errdef.CodeHistory, err, "build record decoder")
	}
	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return Record{}, errdef.Wrap(errdef.CodeHistory, err, "decode history record")
	}
	return rec, nil
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return newerFirst(records[i], records[j])
	})
}

func newerFirst(a, b Record) bool {
	ai := a.CreatedAt
	bi := b.CreatedAt
	switch {
	case ai.IsZero() && bi.IsZero():
		return a.ID > b.ID
	case ai.IsZero():
		return false
	case bi.IsZero():
		return true
	case ai.Equal(bi):
		return a.ID > b.ID
	default:
		return ai.After(bi)
	}
}
