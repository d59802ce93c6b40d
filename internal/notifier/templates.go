package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/MarlonX-a/serverless/internal/models"
)

// GenericNotice is sent for events without a template.
const GenericNotice = "📢 Evento recibido"

var defaultTemplates = map[string]string{
	string(models.ServicioCreado): `🆕 *Nuevo Servicio Creado*
📌 ID: {{ .Data.servicio_id }}
📝 Nombre: {{ md .Data.nombre_servicio }}
⏱ Duración: {{ .Data.duracion }} minutos`,
	string(models.ComentarioCreado): `💬 *Nuevo Comentario*
📌 Servicio ID: {{ .Data.servicio_id }}
🧑 Cliente ID: {{ .Data.cliente_id }}
📝 {{ md .Data.texto }}`,
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

var funcs = template.FuncMap{
	"md": func(v any) string {
		if v == nil {
			return ""
		}
		return markdownEscaper.Replace(fmt.Sprint(v))
	},
}

// Templates renders notification text per event name.
type Templates struct {
	byEvent map[string]*template.Template
}

// templateData is what templates see: the envelope with data decoded.
type templateData struct {
	Event          string
	Version        string
	IdempotencyKey string
	Timestamp      string
	Data           map[string]any
	Metadata       models.EnvelopeMetadata
}

// LoadTemplates parses the built-in templates and, when path is set, a YAML
// file mapping event names to templates that override or add to them.
func LoadTemplates(path string) (*Templates, error) {
	sources := make(map[string]string, len(defaultTemplates))
	for event, text := range defaultTemplates {
		sources[event] = text
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read templates file: %w", err)
		}
		var overrides map[string]string
		if err := yaml.Unmarshal(raw, &overrides); err != nil {
			return nil, fmt.Errorf("failed to parse templates file: %w", err)
		}
		for event, text := range overrides {
			sources[event] = text
		}
	}

	t := &Templates{byEvent: make(map[string]*template.Template, len(sources))}
	for event, text := range sources {
		tmpl, err := template.New(event).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid template for %s: %w", event, err)
		}
		t.byEvent[event] = tmpl
	}
	return t, nil
}

// Render formats env. Unknown events, and templates that fail to execute,
// yield GenericNotice.
func (t *Templates) Render(env *models.EventEnvelope) string {
	tmpl, ok := t.byEvent[env.Event]
	if !ok {
		return GenericNotice
	}

	data := templateData{
		Event:          env.Event,
		Version:        env.Version,
		IdempotencyKey: env.IdempotencyKey,
		Timestamp:      env.Timestamp,
		Metadata:       env.Metadata,
	}
	if len(env.Data) > 0 {
		// Numbers stay json.Number so ids print as integers
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		_ = dec.Decode(&data.Data)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return GenericNotice
	}
	return strings.TrimSpace(buf.String())
}
