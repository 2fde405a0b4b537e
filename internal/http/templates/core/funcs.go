package core

import (
	"bytes"
	"errors"
	"html/template"
	"strconv"
	"time"

	"github.com/target/microshop-ui/internal/domain/model"
	"github.com/target/microshop-ui/internal/http/uiutil"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
}

// Funcs returns a template.FuncMap containing helpers shared by all storefront templates.
func Funcs(deps Deps) template.FuncMap {
	funcs := template.FuncMap{
		"sectionTmpl":  deps.ContentTemplateFor,
		"friendlyTime": friendlyTime,
		"formatPrice":  uiutil.FormatPrice,
		"statusClass":  statusClass,
		"plural":       uiutil.Plural,
		"add":          func(a, b int) int { return a + b },
		"idString":     func(id int64) string { return strconv.FormatInt(id, 10) },
	}

	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - rendered by our own html/template set; values were escaped during ExecuteTemplate.
		return template.HTML(buf.String()), nil
	}
	return funcs
}

func friendlyTime(ts any) string {
	switch v := ts.(type) {
	case time.Time:
		return uiutil.FormatFriendlyDateTime(v)
	case model.LocalTime:
		return uiutil.FormatFriendlyDateTime(v.Time)
	case *time.Time:
		if v != nil {
			return uiutil.FormatFriendlyDateTime(*v)
		}
	}
	return ""
}

// statusClass maps an order status to its badge modifier. Unknown statuses get a neutral badge.
func statusClass(status model.OrderStatus) string {
	switch status {
	case model.OrderStatusPending:
		return "badge--pending"
	case model.OrderStatusCompleted:
		return "badge--completed"
	case model.OrderStatusCancelled:
		return "badge--cancelled"
	default:
		return "badge--unknown"
	}
}
