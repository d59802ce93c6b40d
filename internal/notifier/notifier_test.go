package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarlonX-a/serverless/internal/config"
	"github.com/MarlonX-a/serverless/internal/models"
)

func envelope(event string, data string) *models.EventEnvelope {
	return &models.EventEnvelope{
		Event:          event,
		Version:        "1.0",
		IdempotencyKey: "k-1",
		Data:           json.RawMessage(data),
	}
}

func TestRender_DefaultTemplates(t *testing.T) {
	tmpls, err := LoadTemplates("")
	require.NoError(t, err)

	text := tmpls.Render(envelope("servicio.creado", `{"servicio_id":1234567,"nombre_servicio":"Corte_de_pelo","duracion":30}`))
	assert.Contains(t, text, "*Nuevo Servicio Creado*")
	assert.Contains(t, text, "ID: 1234567")
	assert.Contains(t, text, `Corte\_de\_pelo`)
	assert.Contains(t, text, "30 minutos")

	text = tmpls.Render(envelope("comentario.creado", `{"servicio_id":7,"cliente_id":3,"texto":"Excelente"}`))
	assert.Contains(t, text, "Servicio ID: 7")
	assert.Contains(t, text, "Cliente ID: 3")
	assert.Contains(t, text, "Excelente")
}

func TestRender_UnknownEventFallsBack(t *testing.T) {
	tmpls, err := LoadTemplates("")
	require.NoError(t, err)
	assert.Equal(t, GenericNotice, tmpls.Render(envelope("reserva.cancelada", `{}`)))
}

func TestLoadTemplates_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
servicio.creado: "Servicio {{ .Data.servicio_id }} listo"
reserva.creada: "Reserva {{ .IdempotencyKey }}"
`), 0o600))

	tmpls, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, "Servicio 9 listo", tmpls.Render(envelope("servicio.creado", `{"servicio_id":9}`)))
	assert.Equal(t, "Reserva k-1", tmpls.Render(envelope("reserva.creada", `{}`)))
	assert.Contains(t, tmpls.Render(envelope("comentario.creado", `{"texto":"x"}`)), "Nuevo Comentario")
}

func TestLoadTemplates_RejectsBrokenTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`servicio.creado: "{{ .Data.x "`), 0o600))

	_, err := LoadTemplates(path)
	assert.Error(t, err)
}

type fakeSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *fakeSender) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func TestForwarder_SendsRenderedText(t *testing.T) {
	tmpls, err := LoadTemplates("")
	require.NoError(t, err)
	sender := &fakeSender{}
	f := NewForwarder(tmpls, sender, zap.NewNop())

	body := []byte(`{"event":"comentario.creado","version":"1.0","idempotency_key":"comentario-1-creado","timestamp":"t","data":{"servicio_id":7,"cliente_id":3,"texto":"hola"}}`)
	require.NoError(t, f.HandleMessage(context.Background(), amqp.Delivery{Body: body}))

	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "hola")
}

func TestForwarder_SendFailureIsNotAnError(t *testing.T) {
	tmpls, err := LoadTemplates("")
	require.NoError(t, err)
	f := NewForwarder(tmpls, &fakeSender{err: errors.New("telegram down")}, zap.NewNop())

	body := []byte(`{"event":"servicio.creado","data":{}}`)
	assert.NoError(t, f.HandleMessage(context.Background(), amqp.Delivery{Body: body}))
}

func TestForwarder_MalformedBodyIsAnError(t *testing.T) {
	tmpls, err := LoadTemplates("")
	require.NoError(t, err)
	sender := &fakeSender{}
	f := NewForwarder(tmpls, sender, zap.NewNop())

	assert.Error(t, f.HandleMessage(context.Background(), amqp.Delivery{Body: []byte(`nope`)}))
	assert.Empty(t, sender.texts)
}

func TestTelegramClient_PostsSendMessage(t *testing.T) {
	var gotPath string
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewTelegramClient(config.TelegramConfig{APIURL: srv.URL, BotToken: "123:abc", ChatID: "-100", Timeout: time.Second})
	require.NoError(t, c.Send(context.Background(), "hola"))

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, sendMessageRequest{ChatID: "-100", Text: "hola", ParseMode: "Markdown"}, got)
}

func TestTelegramClient_ReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := NewTelegramClient(config.TelegramConfig{APIURL: srv.URL, BotToken: "t", ChatID: "1"})
	err := c.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramClient_ErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewTelegramClient(config.TelegramConfig{APIURL: url, BotToken: "very-secret-token", ChatID: "1", Timeout: time.Second})
	err := c.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "very-secret-token")
}
