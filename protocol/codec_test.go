package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSeveralRequestsShareOneReader(t *testing.T) {
	var buf bytes.Buffer
	for _, typ := range []string{CmdPing, CmdModuleLoad} {
		req := &Request{Type: typ, Auth: &Auth{User: "oper", Token: "t"}, Data: ModuleRequest{Name: "oftc"}}
		if err := WriteRequest(&buf, req); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	r := NewReader(&buf)
	first, err := ReadRequest(r)
	if err != nil || first.Type != CmdPing {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := ReadRequest(r)
	if err != nil || second.Type != CmdModuleLoad || second.Auth.User != "oper" {
		t.Fatalf("second = %+v, %v", second, err)
	}

	var payload ModuleRequest
	if err := DecodeData(second.Data, &payload); err != nil || payload.Name != "oftc" {
		t.Fatalf("payload = %+v, %v", payload, err)
	}

	if _, err := ReadRequest(r); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestResponseDecoding(t *testing.T) {
	var buf bytes.Buffer
	resp := &Response{Status: StatusOK, Data: CommandStatsResponse{
		Commands: []CommandStats{{Name: "PING", Count: 3, Bytes: 27}},
	}}
	if err := WriteResponse(&buf, resp); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadResponse(NewReader(&buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var stats CommandStatsResponse
	if err := DecodeData(got.Data, &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stats.Commands) != 1 || stats.Commands[0].Name != "PING" || stats.Commands[0].Count != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := ReadRequest(NewReader(strings.NewReader("{not json}\n"))); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := ReadRequest(NewReader(strings.NewReader(`{"type":"system.ping"}`))); err == nil || err == io.EOF {
		t.Fatalf("unterminated line = %v", err)
	}
	huge := strings.Repeat("x", MaxMessageSize+10) + "\n"
	if _, err := ReadRequest(NewReader(strings.NewReader(huge))); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}
