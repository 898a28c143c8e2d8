package views

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
)

func TestTemplates_RenderEveryPage(t *testing.T) {
	tmpl, err := Templates()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	type fieldError struct{ Field, Message string }

	pages := map[string]map[string]any{
		"login.tmpl":           {"pagina": "Iniciar Sesión", "csrfToken": "tok"},
		"registro.tmpl":        {"pagina": "Crear Cuenta", "csrfToken": "tok", "usuario": map[string]any{"nombre": "Ana", "email": "ana@x.com"}},
		"olvide-password.tmpl": {"pagina": "Recupera tu Acceso a Bienes Raices", "csrfToken": "tok"},
		"reset-password.tmpl":  {"pagina": "Reestablece tu Password", "csrfToken": "tok", "token": "abc"},
		"mensaje.tmpl":         {"pagina": "Cuenta Confirmada", "mensaje": "ok", "error": false},
		"error.tmpl":           {"pagina": "Forbidden", "mensaje": "no", "requestId": "rid"},
		"mis-propiedades.tmpl": {"pagina": "Mis Propiedades", "csrfToken": "tok", "nombre": "Ana"},
	}

	for name, data := range pages {
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(buf.String(), "<title>BienesRaices | ") {
			t.Fatalf("%s: missing layout", name)
		}
	}

	var buf bytes.Buffer
	err = tmpl.ExecuteTemplate(&buf, "registro.tmpl", map[string]any{
		"pagina":  "Crear Cuenta",
		"errores": []fieldError{{"nombre", "El Nombre no puede ir vacio"}, {"email", "<b>"}},
	})
	if err != nil {
		t.Fatalf("errores: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "El Nombre no puede ir vacio") || strings.Contains(out, "<b>") {
		t.Fatalf("errors must render escaped:\n%s", out)
	}
}

func TestPublic(t *testing.T) {
	pub, err := Public()
	if err != nil {
		t.Fatalf("Public: %v", err)
	}
	if _, err := fs.Stat(pub, "css/app.css"); err != nil {
		t.Fatalf("missing stylesheet: %v", err)
	}
}
