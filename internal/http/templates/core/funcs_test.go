package core

import (
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/microshop-ui/internal/domain/model"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "badge--pending", statusClass(model.OrderStatusPending))
	assert.Equal(t, "badge--completed", statusClass(model.OrderStatusCompleted))
	assert.Equal(t, "badge--cancelled", statusClass(model.OrderStatusCancelled))
	assert.Equal(t, "badge--unknown", statusClass("SHIPPED"))
}

func TestFriendlyTime(t *testing.T) {
	ts := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Jan 2, 2025 9:30 AM", friendlyTime(model.LocalTime{Time: ts}))
	assert.Equal(t, "Jan 2, 2025 9:30 AM", friendlyTime(&ts))
	assert.Empty(t, friendlyTime((*time.Time)(nil)))
	assert.Empty(t, friendlyTime("2025-01-02"))
}

func TestRenderSection(t *testing.T) {
	var tmpl *template.Template
	funcs := Funcs(Deps{
		Template:           &tmpl,
		ContentTemplateFor: func(page string) string { return page + "-content" },
	})
	tmpl = template.Must(template.New("root").Funcs(funcs).Parse(
		`{{define "home-content"}}<p>{{.}}</p>{{end}}{{define "page"}}{{renderSection "home" .}}{{end}}`,
	))

	var sb strings.Builder
	require.NoError(t, tmpl.ExecuteTemplate(&sb, "page", "<b>"))
	assert.Equal(t, "<p>&lt;b&gt;</p>", sb.String())
}
