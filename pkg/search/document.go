package search

import (
	"strconv"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/records"
)

const (
	FIELD_ID           = "id"
	FIELD_TYPE         = "type"
	FIELD_DATE_CREATED = "date_created"
)

// Document is the engine neutral representation of an indexed record
type Document map[string]interface{}

// NewDocument flattens a record into a document. The record's fields are copied as is.
func NewDocument(rec records.Record) Document {
	doc := make(Document, len(rec.Fields)+3)
	for k, v := range rec.Fields {
		doc[k] = v
	}
	doc[FIELD_ID] = rec.ID
	doc[FIELD_TYPE] = rec.Type.String()
	if !rec.DateCreated.IsZero() {
		doc[FIELD_DATE_CREATED] = rec.DateCreated.UTC().Format(time.RFC3339)
	}
	return doc
}

// ID returns the document id as the string key engines use
func (d Document) ID() string {
	switch v := d[FIELD_ID].(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

// DocumentIDs converts record ids into document ids
func DocumentIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
