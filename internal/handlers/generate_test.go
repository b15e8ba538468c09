package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medscribe-backend/internal/agent"
	"github.com/yungbote/medscribe-backend/internal/platform/apierr"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

type stubInvoker struct {
	state    *agent.State
	err      error
	threadID string
	query    string
}

func (s *stubInvoker) Invoke(ctx context.Context, threadID, query string) (*agent.State, error) {
	s.threadID = threadID
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	return s.state, nil
}

func generateRequest(t *testing.T, h *GenerateHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Generate(c)
	return w
}

func TestGenerateHappyPath(t *testing.T) {
	inv := &stubInvoker{state: &agent.State{GeneratedAnswer: "Metformin 500 mg."}}
	h := NewGenerateHandler(logger.NewNop(), inv)

	w := generateRequest(t, h, `{"unique_id":"thread-1","query":"what was prescribed?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", w.Code, w.Body)
	}
	var resp GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "Metformin 500 mg." {
		t.Fatalf("answer: got=%q", resp.Answer)
	}
	if inv.threadID != "thread-1" || inv.query != "what was prescribed?" {
		t.Fatalf("invoker args: thread=%q query=%q", inv.threadID, inv.query)
	}
}

func TestGenerateMissingFields(t *testing.T) {
	h := NewGenerateHandler(logger.NewNop(), &stubInvoker{})
	for _, body := range []string{
		`{}`,
		`{"unique_id":"thread-1"}`,
		`{"query":"hello"}`,
		`not json`,
	} {
		w := generateRequest(t, h, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: want=400 got=%d", body, w.Code)
		}
		var envelope ErrorEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode error envelope: %v", err)
		}
		if envelope.Detail == "" {
			t.Fatalf("error detail must not be empty")
		}
	}
}

func TestGenerateEmptyAnswerPlaceholder(t *testing.T) {
	h := NewGenerateHandler(logger.NewNop(), &stubInvoker{state: &agent.State{}})

	w := generateRequest(t, h, `{"unique_id":"t","query":"q"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	var resp GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "No answer generated." {
		t.Fatalf("placeholder: got=%q", resp.Answer)
	}
}

func TestGenerateErrorStatusMapping(t *testing.T) {
	h := NewGenerateHandler(logger.NewNop(), &stubInvoker{
		err: apierr.New(http.StatusServiceUnavailable, "index_unavailable", nil),
	})
	w := generateRequest(t, h, `{"unique_id":"t","query":"q"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: want=503 got=%d", w.Code)
	}
}
