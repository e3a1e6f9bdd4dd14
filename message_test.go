package originserver

import "testing"

func TestMessageRequestLine(t *testing.T) {
	m := NewHttpMessage()
	if err := m.SetRequestLine(MethodGet, "/echo", ProtocolHTTP11); err != nil {
		t.Fatalf("SetRequestLine: unexpected error: %v", err)
	}
	if !m.IsRequest() || m.IsResponse() {
		t.Fatalf("IsRequest/IsResponse = %v/%v, want true/false", m.IsRequest(), m.IsResponse())
	}
	if m.Method() != MethodGet || m.Target() != "/echo" || m.RequestProtocol() != ProtocolHTTP11 {
		t.Fatalf("request line fields not round-tripped: %v %v %v", m.Method(), m.Target(), m.RequestProtocol())
	}
}

func TestMessageResponseLineClearsRequestFields(t *testing.T) {
	m := NewHttpMessage()
	mustOK(t, m.SetRequestLine(MethodPost, "/echo", ProtocolHTTP11))
	mustOK(t, m.SetResponseLine(ProtocolHTTP11, StatusOK, "OK"))

	if !m.IsResponse() || m.IsRequest() {
		t.Fatalf("IsResponse/IsRequest = %v/%v, want true/false", m.IsResponse(), m.IsRequest())
	}
	if m.Target() != "" || m.Method() != MethodUnknown {
		t.Fatalf("request fields not cleared after SetResponseLine: target=%q method=%v", m.Target(), m.Method())
	}
}

func TestMessageAddHeaderAndGetHeader(t *testing.T) {
	m := NewHttpMessage()
	mustOK(t, m.AddHeader("Content-Type", "text/plain"))
	v, ok := m.GetHeader("content-type")
	if !ok || v != "text/plain" {
		t.Fatalf("GetHeader = (%q, %v), want (\"text/plain\", true)", v, ok)
	}
}

func TestMessageResetClearsEverything(t *testing.T) {
	m := NewHttpMessage()
	mustOK(t, m.SetRequestLine(MethodGet, "/", ProtocolHTTP11))
	mustOK(t, m.AddHeader("Host", "example.com"))
	mustOK(t, m.OpenTemp(0))

	m.Reset()

	if m.IsRequest() || m.IsResponse() {
		t.Fatalf("message still has a start line after Reset")
	}
	if m.HeaderCount() != 0 {
		t.Fatalf("HeaderCount after Reset = %d, want 0", m.HeaderCount())
	}
	if m.Body() != nil {
		t.Fatalf("Body after Reset = %v, want nil", m.Body())
	}
}

func TestMessageBuildErrorProducesJSONBody(t *testing.T) {
	m := NewHttpMessage()
	body := []byte(`{"error":"not found"}`)
	if err := m.BuildError(StatusNotFound, "Not Found", body); err != nil {
		t.Fatalf("BuildError: unexpected error: %v", err)
	}
	if m.StatusCode() != StatusNotFound {
		t.Fatalf("StatusCode = %d, want %d", m.StatusCode(), StatusNotFound)
	}
	ct, ok := m.GetHeader("Content-Type")
	if !ok || ct != "application/json" {
		t.Fatalf("Content-Type = (%q, %v), want (\"application/json\", true)", ct, ok)
	}
	if m.BodyLength() != int64(len(body)) {
		t.Fatalf("BodyLength = %d, want %d", m.BodyLength(), len(body))
	}
}

func TestMessageOpenExistingRejectsDirectory(t *testing.T) {
	m := NewHttpMessage()
	if err := m.OpenExisting(".", 0, false); err == nil {
		t.Fatalf("expected error opening a directory as a body")
	}
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
