package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BulkBody builds a newline delimited elasticsearch / opensearch bulk request body
type BulkBody struct {
	data       bytes.Buffer
	numRecords int
}

// Length returns the number of actions in the body
func (b *BulkBody) Length() int {
	return b.numRecords
}

// Index appends an index (upsert) action for doc
func (b *BulkBody) Index(doc Document) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", doc.ID(), err)
	}
	meta := []byte(fmt.Sprintf(`{ "index" : { "_id" : %q } }%s`, doc.ID(), "\n"))
	b.data.Grow(len(meta) + len(value) + 1)
	b.data.Write(meta)
	b.data.Write(value)
	b.data.WriteByte('\n')
	b.numRecords++
	return nil
}

// Delete appends a delete action for id
func (b *BulkBody) Delete(id int64) {
	b.data.WriteString(fmt.Sprintf(`{ "delete" : { "_id" : %q } }%s`, strconv.FormatInt(id, 10), "\n"))
	b.numRecords++
}

// Bytes returns the body
func (b *BulkBody) Bytes() []byte {
	return b.data.Bytes()
}

// BulkResponse represents the bulk API response object
type BulkResponse struct {
	Errors bool                          `json:"errors"`
	Items  []map[string]BulkResponseItem `json:"items"`
}

type BulkResponseItem struct {
	ID     string `json:"_id"`
	Result string `json:"result"`
	Status int    `json:"status"`
	Error  struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
		Cause  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"caused_by"`
	} `json:"error"`
}

// Failures returns an error describing every failed item, or nil. A delete of a missing
// document (404) is not a failure.
func (r *BulkResponse) Failures() (failed int, err error) {
	var msgs []string
	for _, item := range r.Items {
		for action, d := range item {
			if d.Status <= 201 || (action == "delete" && d.Status == 404) {
				continue
			}
			failed++
			if len(msgs) < 5 {
				msgs = append(msgs, fmt.Sprintf("[%d] %s %s: %s: %s", d.Status, action, d.ID, d.Error.Type, d.Error.Reason))
			}
		}
	}
	if failed == 0 {
		return 0, nil
	}
	return failed, fmt.Errorf("%d bulk actions failed: %s", failed, strings.Join(msgs, "; "))
}

// DecodeError does its best to extract a message from an error response body
func DecodeError(status int, body []byte) string {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Sprintf("%d %s", status, strings.TrimSpace(string(body)))
	}
	switch e := raw["error"].(type) {
	case string:
		return fmt.Sprintf("%d %s", status, e)
	case map[string]interface{}:
		return fmt.Sprintf("%d %v: %v", status, e["type"], e["reason"])
	}
	return fmt.Sprintf("%d %v", status, raw)
}
