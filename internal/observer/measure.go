package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// payloadDecoder turns a response body into a record count.
type payloadDecoder func(body []byte) (count int, note string, err error)

// measure issues req and times it. Duration runs from dispatch until the body
// is fully read; TTFB stops at the first response byte.
func measure(ctx context.Context, client *http.Client, req *http.Request, decode payloadDecoder) MeasurementResult {
	var (
		start     time.Time
		firstByte time.Time
	)
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(ctx, trace))

	start = time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(errors.Wrap(err, "read body"))
	}
	end := time.Now()

	count, note, err := decode(body)
	if err != nil {
		return failed(err)
	}

	if firstByte.IsZero() {
		firstByte = end
	}
	duration := end.Sub(start).Seconds()
	ttfb := firstByte.Sub(start).Seconds()
	size := int64(len(body))
	status := resp.StatusCode

	return MeasurementResult{
		Duration:   &duration,
		TTFB:       &ttfb,
		Payload:    body,
		Count:      count,
		Size:       &size,
		StatusCode: &status,
		Headers:    flattenHeaders(resp.Header),
		Error:      note,
		Success:    true,
	}
}

func failed(err error) MeasurementResult {
	msg := err.Error()
	if msg == "" {
		msg = "request failed"
	}
	return MeasurementResult{
		Headers: map[string]string{},
		Error:   msg,
	}
}

func decodeRESTUsers(body []byte) (int, string, error) {
	var users []json.RawMessage
	if err := json.Unmarshal(body, &users); err != nil {
		return 0, "", errors.Wrap(err, "decode users array")
	}
	return len(users), "", nil
}

type graphqlEnvelope struct {
	Data *struct {
		Users []json.RawMessage `json:"users"`
	} `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

// decodeGraphQLUsers counts data.users. A response carrying only errors is
// still a completed request: the count is 0 and the messages become the note.
// Errors may be objects with a message or bare strings.
func decodeGraphQLUsers(body []byte) (int, string, error) {
	var env graphqlEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, "", errors.Wrap(err, "decode graphql response")
	}

	var note string
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, raw := range env.Errors {
			msgs = append(msgs, graphqlErrorMessage(raw))
		}
		note = "graphql: " + strings.Join(msgs, "; ")
	}
	if env.Data == nil {
		return 0, note, nil
	}
	return len(env.Data.Users), note, nil
}

func graphqlErrorMessage(raw json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(bytes.TrimSpace(raw))
}

func newRESTRequest(url string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build rest request")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func newGraphQLRequest(url, query string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, errors.Wrap(err, "encode graphql query")
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build graphql request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
